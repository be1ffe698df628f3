package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"
)

// generateCSVData creates test CSV data with specified row count
func generateCSVData(rows int) []byte {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	writer.Write([]string{"title", "type", "value", "category"})

	for i := 0; i < rows; i++ {
		txType := "outcome"
		if i%7 == 0 {
			txType = "income"
		}
		title := fmt.Sprintf("Transaction %d at Merchant %d", i, i%100)
		value := fmt.Sprintf("%.2f", float64(i%10000)/100.0)
		category := fmt.Sprintf("Category %d", i%10)
		writer.Write([]string{title, txType, value, category})
	}

	writer.Flush()
	return buf.Bytes()
}

// BenchmarkParserComparison compares the row iterator with a bare csv.Reader
func BenchmarkParserComparison(b *testing.B) {
	sizes := []int{100, 1000, 10000}

	for _, size := range sizes {
		csvData := generateCSVData(size)

		b.Run(fmt.Sprintf("StandardCSV_%d_rows", size), func(b *testing.B) {
			b.SetBytes(int64(len(csvData)))
			for i := 0; i < b.N; i++ {
				reader := csv.NewReader(bytes.NewReader(csvData))
				reader.FieldsPerRecord = -1
				reader.LazyQuotes = true

				// Skip header
				reader.Read()

				count := 0
				for {
					_, err := reader.Read()
					if err != nil {
						break
					}
					count++
				}
			}
		})

		b.Run(fmt.Sprintf("Rows_%d_rows", size), func(b *testing.B) {
			opts := DefaultOptions()
			b.SetBytes(int64(len(csvData)))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				for _, err := range Rows(bytes.NewReader(csvData), opts) {
					if err != nil {
						b.Fatal(err)
					}
				}
			}
		})

		b.Run(fmt.Sprintf("RowsValidated_%d_rows", size), func(b *testing.B) {
			opts := DefaultOptions()
			b.SetBytes(int64(len(csvData)))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				for row, err := range Rows(bytes.NewReader(csvData), opts) {
					if err != nil {
						b.Fatal(err)
					}
					if _, _, err := row.Validate(); err != nil {
						b.Fatal(err)
					}
				}
			}
		})
	}
}

// BenchmarkParserMemory measures allocations while draining a large file
func BenchmarkParserMemory(b *testing.B) {
	csvData := generateCSVData(10000)

	b.Run("Rows_Memory", func(b *testing.B) {
		opts := DefaultOptions()
		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			count := 0
			for row := range Rows(bytes.NewReader(csvData), opts) {
				if row.Complete() {
					count++
				}
			}
			if count != 10000 {
				b.Fatalf("expected 10000 rows, got %d", count)
			}
		}
	})
}

// BenchmarkParserDelimiters checks that the delimiter does not change throughput
func BenchmarkParserDelimiters(b *testing.B) {
	for _, delimiter := range []rune{',', ';', '\t'} {
		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)
		writer.Comma = delimiter
		for i := 0; i < 1000; i++ {
			writer.Write([]string{fmt.Sprintf("Row %d", i), "outcome", "12.34", "Food"})
		}
		writer.Flush()
		data := buf.Bytes()

		b.Run(fmt.Sprintf("%q", delimiter), func(b *testing.B) {
			opts := Options{Delimiter: delimiter}
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				for range Rows(bytes.NewReader(data), opts) {
				}
			}
		})
	}
}
