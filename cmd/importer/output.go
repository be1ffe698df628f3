package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/FACorreiaa/transaction-importer/internal/domain/balance"
	importservice "github.com/FACorreiaa/transaction-importer/internal/domain/import/service"
	"github.com/FACorreiaa/transaction-importer/pkg/money"
)

func writeImportResult(w io.Writer, result *importservice.ImportResult, currency string) {
	b := balance.FromTransactions(result.Transactions)

	fmt.Fprintf(w, "%s: %d imported, %d skipped, %d new categories, net %s\n",
		result.FileName,
		result.RowsImported,
		result.RowsSkipped,
		result.CategoriesCreated,
		money.Format(b.Total, currency),
	)

	created := make([]string, 0, len(result.Hints))
	for title := range result.Hints {
		created = append(created, title)
	}
	slices.Sort(created)
	for _, title := range created {
		fmt.Fprintf(w, "  %q looks like %s\n", title, quoteAll(result.Hints[title]))
	}
}

func writeBalance(w io.Writer, b balance.Balance, currency string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "income\t%s\t\n", money.Format(b.Income, currency))
	fmt.Fprintf(tw, "outcome\t%s\t\n", money.Format(b.Outcome, currency))
	fmt.Fprintf(tw, "total\t%s\t\n", money.Format(b.Total, currency))
	tw.Flush()
}

func writeCategoryBalances(w io.Writer, total balance.Balance, categories []balance.CategoryBalance, currency string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTRANSACTIONS\tINCOME\tOUTCOME\tTOTAL")
	for _, c := range categories {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			displayTitle(c.Category),
			c.Transactions,
			money.Format(c.Income, currency),
			money.Format(c.Outcome, currency),
			money.Format(c.Total, currency),
		)
	}
	fmt.Fprintf(tw, "\t\t%s\t%s\t%s\n",
		money.Format(total.Income, currency),
		money.Format(total.Outcome, currency),
		money.Format(total.Total, currency),
	)
	return tw.Flush()
}

func writeCategories(w io.Writer, titles []string, hints map[string][]string) {
	for _, title := range titles {
		similar, ok := hints[title]
		if !ok {
			fmt.Fprintln(w, displayTitle(title))
			continue
		}
		fmt.Fprintf(w, "%s (similar: %s)\n", displayTitle(title), quoteAll(similar))
	}
}

// displayTitle makes the empty category visible
func displayTitle(title string) string {
	if title == "" {
		return `""`
	}
	return title
}

func quoteAll(titles []string) string {
	quoted := make([]string, len(titles))
	for i, t := range titles {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return strings.Join(quoted, ", ")
}
