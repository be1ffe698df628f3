package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/transaction-importer/internal/domain/balance"
	"github.com/FACorreiaa/transaction-importer/pkg/config"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"import", "watch", "export", "balance", "categories", "migrate"}, names)
}

func TestImportFlags_ParserOptions(t *testing.T) {
	cfg := &config.Config{Import: config.ImportConfig{Delimiter: ',', HeaderLines: 1}}

	newCmd := func(f *importFlags) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "")
		cmd.Flags().IntVar(&f.headerLines, "header-lines", 0, "")
		return cmd
	}

	t.Run("defaults from config", func(t *testing.T) {
		var f importFlags
		cmd := newCmd(&f)
		require.NoError(t, cmd.Flags().Parse(nil))

		opts, err := f.parserOptions(cmd, cfg)
		require.NoError(t, err)
		assert.Equal(t, ',', opts.Delimiter)
		assert.Equal(t, 1, opts.HeaderLines)
	})

	t.Run("explicit zero header lines wins", func(t *testing.T) {
		var f importFlags
		cmd := newCmd(&f)
		require.NoError(t, cmd.Flags().Parse([]string{"--delimiter", `\t`, "--header-lines", "0"}))

		opts, err := f.parserOptions(cmd, cfg)
		require.NoError(t, err)
		assert.Equal(t, '\t', opts.Delimiter)
		assert.Equal(t, 0, opts.HeaderLines)
	})

	t.Run("rejects bad values", func(t *testing.T) {
		var f importFlags
		cmd := newCmd(&f)
		require.NoError(t, cmd.Flags().Parse([]string{"--delimiter", ";;"}))
		_, err := f.parserOptions(cmd, cfg)
		assert.ErrorContains(t, err, "--delimiter")

		f = importFlags{}
		cmd = newCmd(&f)
		require.NoError(t, cmd.Flags().Parse([]string{"--header-lines", "-2"}))
		_, err = f.parserOptions(cmd, cfg)
		assert.Error(t, err)
	})
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CURRENCY_CODE", "USD")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportCmd_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.csv")
	content := "title,type,value,category\nBus,outcome,50,Transport\nSalary,income,3000,Salary\n,outcome,10,Transport\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := runRoot(t, "import", "--dry-run", path)
	require.NoError(t, err)

	assert.Contains(t, out, "2 imported, 1 skipped, 2 new categories")
	assert.Contains(t, out, "$2,950.00")
	assert.FileExists(t, path, "dry runs keep the source")
}

func TestImportCmd_DryRun_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("title,type,value,category\nBus,outcome,5,Transport\n"), 0o644))

	out, err := runRoot(t, "import", "--dry-run", good, filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	assert.Contains(t, out, "good.csv: 1 imported")
}

func TestImportCmd_DetectLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	content := "Exported by bank\ntitle;type;value;category\nRent;outcome;1200.50;Home\nGift;income;100;Home\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := runRoot(t, "import", "--dry-run", "--detect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 imported, 0 skipped, 1 new categories")
	assert.Contains(t, out, "-$1,100.50")
}

func TestImportCmd_RequiresFiles(t *testing.T) {
	_, err := runRoot(t, "import")
	assert.Error(t, err)
}

func TestWriteBalance(t *testing.T) {
	var buf bytes.Buffer
	writeBalance(&buf, balance.Balance{
		Income:  decimal.NewFromInt(3000),
		Outcome: decimal.RequireFromString("1250.5"),
		Total:   decimal.RequireFromString("1749.5"),
	}, "USD")

	out := buf.String()
	assert.Contains(t, out, "$3,000.00")
	assert.Contains(t, out, "$1,250.50")
	assert.Contains(t, out, "$1,749.50")
}

func TestWriteCategoryBalances(t *testing.T) {
	total := balance.Balance{Income: decimal.NewFromInt(10), Total: decimal.NewFromInt(10)}
	categories := []balance.CategoryBalance{
		{Category: "", Transactions: 1, Balance: total},
	}

	var buf bytes.Buffer
	require.NoError(t, writeCategoryBalances(&buf, total, categories, "USD"))
	assert.Contains(t, buf.String(), "CATEGORY")
	assert.Contains(t, buf.String(), `""`)
	assert.Contains(t, buf.String(), "$10.00")
}

func TestWriteCategories(t *testing.T) {
	var buf bytes.Buffer
	writeCategories(&buf, []string{"Groceries", "Grocerys", "Rent"}, map[string][]string{
		"Grocerys": {"Groceries"},
	})

	assert.Equal(t, "Groceries\nGrocerys (similar: \"Groceries\")\nRent\n", buf.String())
}
