package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNoHeader is returned when a CSV input has no header line.
var ErrNoHeader = errors.New("csv input has no header")

// WriteOptions controls CSV output.
type WriteOptions struct {
	// Index prepends an unnamed column numbering the rows from 0.
	Index bool
}

// ReadCSV parses a CSV document whose first record is the header. Empty
// fields become null cells. Bare quotes inside unquoted fields are accepted
// because NCSS headers look like latitude[unit="degrees_north"].
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := New(header...)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", line, err)
		}
		row := make(Row, len(rec))
		for i, v := range rec {
			if v != "" {
				row[i] = String(v)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadCSVFile reads a CSV file from disk.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteCSV writes the header and rows of t. Null cells are written as empty
// fields.
func WriteCSV(w io.Writer, t *Table, opts WriteOptions) error {
	cw := csv.NewWriter(w)

	header := t.Columns
	if opts.Index {
		header = append([]string{""}, t.Columns...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(header))
	for i, row := range t.Rows {
		fields := rec[:0]
		if opts.Index {
			fields = append(fields, strconv.Itoa(i))
		}
		for _, c := range row {
			fields = append(fields, c.Value)
		}
		if err := cw.Write(fields); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates (or truncates) path and writes t to it.
func WriteCSVFile(path string, t *Table, opts WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, t, opts); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
