package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}

	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	return buf
}

func TestExcelRows(t *testing.T) {
	t.Run("reads first sheet", func(t *testing.T) {
		buf := buildWorkbook(t, "Sheet1", [][]any{
			{"title", "type", "value", "category"},
			{" Bus ", "outcome", "50", "Transport"},
			{"Salary", "income", "5000", "Salary"},
		})

		rows, err := collect(t, ExcelRows(buf, DefaultOptions()))
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, Row{Line: 2, Title: "Bus", Type: "outcome", Value: "50", Category: "Transport"}, rows[0])
		assert.Equal(t, "Salary", rows[1].Category)
	})

	t.Run("prefers Transactions sheet", func(t *testing.T) {
		buf := buildWorkbook(t, "Transactions", [][]any{
			{"title", "type", "value", "category"},
			{"Rent", "outcome", "900", "Home"},
		})

		rows, err := collect(t, ExcelRows(buf, DefaultOptions()))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Rent", rows[0].Title)
	})

	t.Run("leading blank row does not count as header", func(t *testing.T) {
		buf := buildWorkbook(t, "Sheet1", [][]any{
			{},
			{"title", "type", "value", "category"},
			{"Bus", "outcome", "50", "Transport"},
		})

		rows, err := collect(t, ExcelRows(buf, DefaultOptions()))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, Row{Line: 3, Title: "Bus", Type: "outcome", Value: "50", Category: "Transport"}, rows[0])
	})

	t.Run("rejects non workbook input", func(t *testing.T) {
		_, err := collect(t, ExcelRows(strings.NewReader("title,type,value,category\n"), DefaultOptions()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open Excel file")
	})
}

func TestRowsForFile(t *testing.T) {
	buf := buildWorkbook(t, "Sheet1", [][]any{
		{"title", "type", "value", "category"},
		{"Bus", "outcome", "12", "Transport"},
	})

	rows, err := collect(t, RowsForFile("statement.XLSX", buf, DefaultOptions()))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = collect(t, RowsForFile("statement.csv", strings.NewReader("h\nBus,outcome,12,Transport\n"), DefaultOptions()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Transport", rows[0].Category)
}
