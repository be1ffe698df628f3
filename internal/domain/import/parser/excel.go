package parser

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelRows yields the data rows of an XLSX workbook. The sheet named
// "Transactions" is used when present, otherwise the first sheet. Columns
// follow the CSV layout: title, type, value, category.
func ExcelRows(r io.Reader, opts Options) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		f, err := excelize.OpenReader(r)
		if err != nil {
			yield(Row{}, fmt.Errorf("failed to open Excel file: %w", err))
			return
		}
		defer f.Close()

		sheetName := findTransactionSheet(f)
		if sheetName == "" {
			yield(Row{}, errors.New("no suitable sheet found"))
			return
		}

		rows, err := f.Rows(sheetName)
		if err != nil {
			yield(Row{}, fmt.Errorf("failed to read sheet %s: %w", sheetName, err))
			return
		}
		defer rows.Close()

		line, skipped := 0, 0
		for rows.Next() {
			line++ // 1-indexed, matches the row number shown by spreadsheet apps

			cols, err := rows.Columns()
			if err != nil {
				yield(Row{}, &ParseError{Line: line, Err: err})
				return
			}
			// Blank rows never count as header lines, as with CSV records
			if isBlank(cols) {
				continue
			}
			if skipped < opts.HeaderLines {
				skipped++
				continue
			}
			if !yield(newRow(line, cols), nil) {
				return
			}
		}

		if err := rows.Error(); err != nil {
			yield(Row{}, fmt.Errorf("failed to iterate sheet %s: %w", sheetName, err))
		}
	}
}

// findTransactionSheet prefers a sheet named "Transactions"
func findTransactionSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	for _, name := range sheets {
		if strings.EqualFold(strings.TrimSpace(name), "transactions") {
			return name
		}
	}
	if len(sheets) > 0 {
		return sheets[0]
	}
	return ""
}
