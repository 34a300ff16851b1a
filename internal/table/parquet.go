package table

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// ParquetColumnName reduces an NCSS column header such as
// `latitude[unit="degrees_north"]` to a plain field name.
func ParquetColumnName(column string) string {
	name, _, _ := strings.Cut(column, "[")
	name = strings.TrimSpace(name)
	if name == "" {
		return "column"
	}
	return name
}

// WriteParquet writes t as a Parquet file with one OPTIONAL UTF8 column per
// table column, so null cells are preserved.
func WriteParquet(w io.Writer, t *Table) error {
	md := make([]string, len(t.Columns))
	used := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		name := ParquetColumnName(c)
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", name)
	}

	pw, err := writer.NewCSVWriterFromWriter(md, w, 1)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range t.Rows {
		rec := make([]*string, len(row))
		for i, c := range row {
			if c.Valid {
				v := c.Value
				rec[i] = &v
			}
		}
		if err := pw.WriteString(rec); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}

	return writeStop(pw)
}

// writeStop flushes the footer. The writer can panic on malformed state, so
// the panic is turned into an error.
func writeStop(pw *writer.CSVWriter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stop parquet writer: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("stop parquet writer: %w", err)
	}
	return nil
}

// WriteParquetFile creates (or truncates) path and writes t to it.
func WriteParquetFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteParquet(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
