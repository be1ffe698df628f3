// Package sniffer detects the delimiter and header of a transaction file.
package sniffer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/FACorreiaa/transaction-importer/internal/domain/import/parser"
)

// SampleSize is how much of a file DetectReader looks at
const SampleSize = 64 * 1024

// maxProbeLines bounds how far down a header is searched for
const maxProbeLines = 20

// minFields is the number of columns of a transaction row
const minFields = 4

// Header keywords, English and Portuguese
var headerKeywords = []string{
	"title", "type", "value", "category", "amount", "description",
	"titulo", "título", "tipo", "valor", "categoria", "descrição", "descricao",
}

var candidateDelimiters = []rune{',', ';', '\t', '|'}

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

// FileConfig holds the detected layout of a file
type FileConfig struct {
	Delimiter rune
	SkipLines int      // Metadata records before the header or first row
	HasHeader bool     // Whether the line after SkipLines is a header
	Headers   []string // Detected header names, empty without a header
}

// ParserOptions converts the detected layout into parser options
func (c *FileConfig) ParserOptions() parser.Options {
	headerLines := c.SkipLines
	if c.HasHeader {
		headerLines++
	}
	return parser.Options{
		Delimiter:   c.Delimiter,
		HeaderLines: headerLines,
	}
}

// DetectReader reads up to SampleSize bytes from r and detects its layout
func DetectReader(r io.Reader) (*FileConfig, error) {
	data, err := io.ReadAll(io.LimitReader(r, SampleSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read sample: %w", err)
	}
	return DetectConfig(data)
}

// DetectConfig picks the first line that splits into at least four fields
// with one of the candidate delimiters. That line is a header when one of
// its fields is a known column name.
func DetectConfig(data []byte) (*FileConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")
	records := 0
	for i, line := range lines {
		if i >= maxProbeLines {
			break
		}

		line = strings.TrimRight(line, "\r")
		if i == 0 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		// encoding/csv does not count empty lines as records
		if line == "" {
			continue
		}

		delimiter, count := detectDelimiter(line)
		if count < minFields-1 {
			records++
			continue
		}

		fields, err := splitLine(line, delimiter)
		if err != nil {
			return nil, err
		}

		cfg := &FileConfig{Delimiter: delimiter, SkipLines: records}
		if isHeader(fields) {
			cfg.HasHeader = true
			cfg.Headers = fields
		}
		return cfg, nil
	}

	return nil, ErrInvalidDelimiter
}

// detectDelimiter returns the candidate occurring most often in line.
// Ties go to the earlier candidate.
func detectDelimiter(line string) (rune, int) {
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range candidateDelimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

// isHeader reports whether any field is a known column name
func isHeader(fields []string) bool {
	for _, f := range fields {
		if slices.Contains(headerKeywords, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func splitLine(line string, delimiter rune) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	fields, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to split line: %w", err)
	}
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields, nil
}
