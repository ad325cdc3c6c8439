package parsers

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// ParseCSV reads CSV from reader and streams rows via channel.
// The first row holds the column names. Malformed rows are reported on the
// error channel and skipped.
func ParseCSV(ctx context.Context, reader io.Reader) (<-chan Row, <-chan *ParseError) {
	rows := make(chan Row, 100)
	errs := make(chan *ParseError, 16)

	go func() {
		defer close(rows)
		defer close(errs)

		csvReader := csv.NewReader(reader)
		csvReader.ReuseRecord = true
		csvReader.FieldsPerRecord = -1
		csvReader.TrimLeadingSpace = true

		headers, err := csvReader.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				report(ctx, errs, &ParseError{Line: 1, Err: err})
			}
			return
		}

		// headers is reused by the reader
		columns := make([]string, len(headers))
		for i, h := range headers {
			columns[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		}

		for {
			row, err := csvReader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				line := 0
				var perr *csv.ParseError
				if errors.As(err, &perr) {
					line = perr.Line
				}
				if !report(ctx, errs, &ParseError{Line: line, Err: err}) {
					return
				}
				continue
			}
			if blank(row) {
				continue
			}

			record := make(Record, len(columns))
			for i, column := range columns {
				if i < len(row) {
					record[column] = row[i]
				} else {
					record[column] = ""
				}
			}

			line, _ := csvReader.FieldPos(0)
			select {
			case rows <- Row{Line: line, Fields: record}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return rows, errs
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// report sends err unless ctx is done. It returns false once ctx is done.
func report(ctx context.Context, errs chan<- *ParseError, err *ParseError) bool {
	select {
	case errs <- err:
		return true
	case <-ctx.Done():
		return false
	}
}
