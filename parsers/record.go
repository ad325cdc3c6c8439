package parsers

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Record represents a single row as a map of column name to value
type Record map[string]string

// Row is a Record with the 1-based source line it was read from. CSV lines
// count the header, so the first data row is line 2.
type Row struct {
	Line   int
	Fields Record
}

// ParseError reports a row that could not be read. Line is 1-based and
// counts the CSV header.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type Format string

const (
	FormatCSV    Format = "csv"
	FormatNDJSON Format = "ndjson"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".ndjson", ".jsonl", ".json":
		return FormatNDJSON, nil
	}
	return "", fmt.Errorf("%s: file must be .csv or .ndjson", path)
}
