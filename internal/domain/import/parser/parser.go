// Package parser turns uploaded transaction files into rows for the importer.
// Rows are produced lazily through iterators so large files are never held in
// memory as raw records.
package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/transaction-importer/internal/domain/import/repository"
)

// Column order of an import file: title, type, value, category.
const (
	colTitle = iota
	colType
	colValue
	colCategory
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is a single data line of an import file with every field trimmed.
type Row struct {
	Line     int
	Title    string
	Type     string
	Value    string
	Category string
}

// Complete reports whether the row carries the fields a transaction needs.
// Category is not required; an empty category is a title like any other.
func (r Row) Complete() bool {
	return r.Title != "" && r.Type != "" && r.Value != ""
}

// ErrInvalidType and ErrInvalidValue are wrapped by ParseError from Validate.
var (
	ErrInvalidType  = errors.New("type must be income or outcome")
	ErrInvalidValue = errors.New("value is not a decimal number")
)

// Validate converts the type and value fields of a complete row.
// The type is matched case-insensitively.
func (r Row) Validate() (repository.TransactionType, decimal.Decimal, error) {
	txType := repository.TransactionType(strings.ToLower(r.Type))
	if !txType.Valid() {
		return "", decimal.Zero, &ParseError{Line: r.Line, Field: "type", Value: r.Type, Err: ErrInvalidType}
	}

	value, err := decimal.NewFromString(r.Value)
	if err != nil {
		return "", decimal.Zero, &ParseError{Line: r.Line, Field: "value", Value: r.Value, Err: ErrInvalidValue}
	}

	return txType, value, nil
}

// ParseError represents a parsing error for a specific line
type ParseError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, field %s=%q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options configures how import files are decoded
type Options struct {
	Delimiter   rune // CSV delimiter (default: ',')
	HeaderLines int  // Leading records to discard (default: 1)
}

// DefaultOptions returns the options for a comma-separated file with one header line
func DefaultOptions() Options {
	return Options{
		Delimiter:   ',',
		HeaderLines: 1,
	}
}

// RowsForFile picks the iterator matching the file extension.
func RowsForFile(name string, r io.Reader, opts Options) iter.Seq2[Row, error] {
	if IsExcel(name) {
		return ExcelRows(r, opts)
	}
	return Rows(r, opts)
}

// IsExcel reports whether name looks like an XLSX workbook.
func IsExcel(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

// Supported reports whether name has an extension the importer can read.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".xlsx":
		return true
	}
	return false
}

// Rows yields every data row of a delimited text stream, skipping the header
// records. The sequence stops after the first error. It is single-use: a second
// pass needs a fresh reader.
func Rows(r io.Reader, opts Options) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		reader := csv.NewReader(skipBOM(r))
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1 // Short rows are padded, long rows truncated
		reader.ReuseRecord = true

		seen := 0
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var csvErr *csv.ParseError
				if errors.As(err, &csvErr) {
					yield(Row{}, &ParseError{Line: csvErr.StartLine, Err: csvErr.Err})
					return
				}
				yield(Row{}, fmt.Errorf("failed to read CSV: %w", err))
				return
			}

			seen++
			if seen <= opts.HeaderLines {
				continue
			}

			line, _ := reader.FieldPos(0)
			if !yield(newRow(line, record), nil) {
				return
			}
		}
	}
}

func newRow(line int, record []string) Row {
	return Row{
		Line:     line,
		Title:    field(record, colTitle),
		Type:     field(record, colType),
		Value:    field(record, colValue),
		Category: field(record, colCategory),
	}
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// skipBOM drops a leading UTF-8 byte order mark, common in spreadsheet exports.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
