package parsers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxLine bounds a single NDJSON line.
const maxLine = 1024 * 1024

// ParseNDJSON reads newline-delimited JSON objects from reader and streams
// them as Rows. Scalar values are rendered as strings; numbers keep their
// source text. Lines that are not JSON objects are reported and skipped.
func ParseNDJSON(ctx context.Context, reader io.Reader) (<-chan Row, <-chan *ParseError) {
	rows := make(chan Row, 100)
	errs := make(chan *ParseError, 16)

	go func() {
		defer close(rows)
		defer close(errs)

		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 64*1024), maxLine)

		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			record, err := decodeObject(line)
			if err != nil {
				if !report(ctx, errs, &ParseError{Line: lineNum, Err: err}) {
					return
				}
				continue
			}

			select {
			case rows <- Row{Line: lineNum, Fields: record}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			report(ctx, errs, &ParseError{Line: lineNum + 1, Err: err})
		}
	}()

	return rows, errs
}

func decodeObject(line []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("expected a JSON object")
	}

	record := make(Record, len(raw))
	for key, value := range raw {
		key = strings.ToLower(key)
		switch v := value.(type) {
		case nil:
			record[key] = ""
		case string:
			record[key] = v
		case json.Number:
			record[key] = v.String()
		case bool:
			record[key] = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("field %q must be a scalar", key)
		}
	}
	return record, nil
}
