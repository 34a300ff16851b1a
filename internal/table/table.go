package table

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrSchemaMismatch is returned when tables that should share a header do not.
	ErrSchemaMismatch = errors.New("table headers do not match")
	// ErrMissingColumn is returned when a referenced column does not exist.
	ErrMissingColumn = errors.New("column not found")
	// ErrDuplicateColumn is returned when a join would add a column that already exists.
	ErrDuplicateColumn = errors.New("column already present")
)

// Cell is a single nullable field.
type Cell struct {
	Value string
	Valid bool
}

// String returns a non-null cell holding s.
func String(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// Null is the empty cell produced by unmatched joins and empty CSV fields.
var Null = Cell{}

// Row is one record; its length always equals the number of table columns.
type Row []Cell

// Table is an in-memory, column-named set of rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given header.
func New(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no header yet.
func (t *Table) Empty() bool {
	return t == nil || len(t.Columns) == 0
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

// AppendRow adds a row. The number of cells must match the header.
func (t *Table) AppendRow(cells ...Cell) error {
	if len(cells) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.Columns))
	}
	t.Rows = append(t.Rows, Row(slices.Clone(cells)))
	return nil
}

// DropColumn removes the named column from the header and every row.
func (t *Table) DropColumn(name string) error {
	i := t.ColumnIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	t.Columns = slices.Delete(t.Columns, i, i+1)
	for r := range t.Rows {
		t.Rows[r] = slices.Delete(t.Rows[r], i, i+1)
	}
	return nil
}

// Concat appends the rows of all tables into one. Every header must equal the
// first table's header.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}

	out := New(tables[0].Columns...)
	for i, t := range tables {
		if !slices.Equal(t.Columns, out.Columns) {
			return nil, fmt.Errorf("%w: table %d has [%s], want [%s]",
				ErrSchemaMismatch, i, strings.Join(t.Columns, ","), strings.Join(out.Columns, ","))
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}

// LeftJoin keeps every row of left, in order, and appends the non-key columns
// of right. Rows of right whose key is absent from left are dropped; left rows
// without a match get null cells. When right repeats a key the first
// occurrence is used, so the result never has more rows than left. Null key
// cells never match.
func LeftJoin(left, right *Table, on []string) (*Table, error) {
	leftKey, err := keyPositions(left, on)
	if err != nil {
		return nil, fmt.Errorf("left table: %w", err)
	}
	rightKey, err := keyPositions(right, on)
	if err != nil {
		return nil, fmt.Errorf("right table: %w", err)
	}

	var valueCols []int
	for i, name := range right.Columns {
		if slices.Contains(on, name) {
			continue
		}
		if left.ColumnIndex(name) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		valueCols = append(valueCols, i)
	}

	index := make(map[string]int, len(right.Rows))
	for i, row := range right.Rows {
		k, ok := joinKey(row, rightKey)
		if !ok {
			continue
		}
		if _, seen := index[k]; !seen {
			index[k] = i
		}
	}

	out := New(left.Columns...)
	for _, c := range valueCols {
		out.Columns = append(out.Columns, right.Columns[c])
	}
	out.Rows = make([]Row, 0, len(left.Rows))

	for _, row := range left.Rows {
		joined := make(Row, 0, len(out.Columns))
		joined = append(joined, row...)

		match := -1
		if k, ok := joinKey(row, leftKey); ok {
			if i, found := index[k]; found {
				match = i
			}
		}
		for _, c := range valueCols {
			if match < 0 {
				joined = append(joined, Null)
				continue
			}
			joined = append(joined, right.Rows[match][c])
		}
		out.Rows = append(out.Rows, joined)
	}
	return out, nil
}

func keyPositions(t *Table, on []string) ([]int, error) {
	pos := make([]int, len(on))
	for i, name := range on {
		pos[i] = t.ColumnIndex(name)
		if pos[i] < 0 {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return pos, nil
}

// joinKey encodes the key cells of row; ok is false if any of them is null.
func joinKey(row Row, pos []int) (string, bool) {
	var sb strings.Builder
	for i, p := range pos {
		if !row[p].Valid {
			return "", false
		}
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		sb.WriteString(row[p].Value)
	}
	return sb.String(), true
}
