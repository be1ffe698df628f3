// Package export writes persisted transactions back out in the import file
// layout, so an export can be imported again.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/transaction-importer/internal/domain/import/repository"
)

// Row is one exported line: title, type, value, category
type Row struct {
	Title    string `csv:"title"`
	Type     string `csv:"type"`
	Value    string `csv:"value"`
	Category string `csv:"category"`
}

// Options configures the CSV output
type Options struct {
	Delimiter rune // Defaults to ','
}

// NewRow converts a transaction. A missing category exports as an empty field.
func NewRow(t repository.Transaction) Row {
	row := Row{
		Title: t.Title,
		Type:  string(t.Type),
		Value: t.Value.String(),
	}
	if t.Category != nil {
		row.Category = t.Category.Title
	}
	return row
}

// WriteCSV writes a header line followed by one line per transaction
func WriteCSV(w io.Writer, transactions []repository.Transaction, opts Options) error {
	if w == nil {
		return errors.New("cannot write CSV to a nil writer")
	}

	rows := make([]Row, len(transactions))
	for i, t := range transactions {
		rows[i] = NewRow(t)
	}

	csvWriter := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		csvWriter.Comma = opts.Delimiter
	}

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}
