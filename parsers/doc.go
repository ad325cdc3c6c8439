// Package parsers provides streaming parsers for the CSV and NDJSON seed
// files.
//
// Records are streamed through channels so a large history file is never
// held in memory. Both parsers yield the same Row shape: the source line and
// a Record mapping each column (or JSON key) to its string value.
//
// Both parsers return two channels:
//   - a rows channel that streams parsed rows
//   - an errors channel of *ParseError for rows that could not be read
//
// The producer stops when ctx is cancelled. Callers must drain both
// channels, or cancel ctx, to release the goroutine.
//
// Example usage:
//
//	file, _ := os.Open("activities.csv")
//	defer file.Close()
//	rows, errs := parsers.ParseCSV(ctx, file)
//
//	go func() {
//	    for err := range errs {
//	        logger.Warn("skipped row", "line", err.Line, "error", err)
//	    }
//	}()
//
//	for row := range rows {
//	    fmt.Println(row.Line, row.Fields["email"], row.Fields["date"])
//	}
package parsers
