package corpus

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// readDelimited reads a header row followed by data rows. Rows the csv reader
// rejects are counted and skipped rather than failing the file.
func readDelimited(path string, comma rune) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("source %q has no header row", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = cleanCell(header[i])
	}

	tbl := &table{header: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			tbl.skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		tbl.rows = append(tbl.rows, rec)
	}
	return tbl, nil
}
