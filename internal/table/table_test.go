package table

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = []string{"time", "station", `latitude[unit="degrees_north"]`, `longitude[unit="degrees_east"]`}

const uaCSV = `time,station,latitude[unit="degrees_north"],longitude[unit="degrees_east"],ua50m[unit="m s-1"]
2023-01-01T00:00:00Z,GridPointRequestedAt[23.553S_133.396E],-23.55,133.40,1.5
2023-01-01T01:00:00Z,GridPointRequestedAt[23.553S_133.396E],-23.55,133.40,1.7
2023-01-01T02:00:00Z,GridPointRequestedAt[23.553S_133.396E],-23.55,133.40,2.1
`

const taCSV = `time,station,latitude[unit="degrees_north"],longitude[unit="degrees_east"],ta50m[unit="K"]
2023-01-01T01:00:00Z,GridPointRequestedAt[23.553S_133.396E],-23.55,133.40,301.2
2023-01-01T00:00:00Z,GridPointRequestedAt[23.553S_133.396E],-23.55,133.40,300.9
2023-01-01T05:00:00Z,GridPointRequestedAt[23.553S_133.396E],-23.55,133.40,299.0
`

func mustRead(t *testing.T, s string) *Table {
	t.Helper()
	tbl, err := ReadCSV(strings.NewReader(s))
	require.NoError(t, err)
	return tbl
}

func TestReadCSVParsesNCSSHeader(t *testing.T) {
	tbl := mustRead(t, uaCSV)

	assert.Equal(t, []string{"time", "station", `latitude[unit="degrees_north"]`, `longitude[unit="degrees_east"]`, `ua50m[unit="m s-1"]`}, tbl.Columns)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, String("1.7"), tbl.Rows[1][4])
}

func TestReadCSVEmptyFieldIsNull(t *testing.T) {
	tbl := mustRead(t, "a,b\n1,\n")
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, String("1"), tbl.Rows[0][0])
	assert.False(t, tbl.Rows[0][1].Valid)
}

func TestReadCSVEmptyInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestConcat(t *testing.T) {
	a := mustRead(t, "x,y\n1,2\n")
	b := mustRead(t, "x,y\n3,4\n5,6\n")

	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, out.Columns)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, String("5"), out.Rows[2][0])
}

func TestConcatSchemaMismatch(t *testing.T) {
	a := mustRead(t, "x,y\n1,2\n")
	b := mustRead(t, "x,z\n3,4\n")

	_, err := Concat(a, b)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestLeftJoinKeepsLeftRowCount(t *testing.T) {
	ua := mustRead(t, uaCSV)
	ta := mustRead(t, taCSV)

	out, err := LeftJoin(ua, ta, key)
	require.NoError(t, err)

	assert.Equal(t, ua.Len(), out.Len())
	assert.Equal(t, append(append([]string{}, ua.Columns...), `ta50m[unit="K"]`), out.Columns)

	// Matched rows pick up the right value regardless of right row order.
	assert.Equal(t, String("300.9"), out.Rows[0][5])
	assert.Equal(t, String("301.2"), out.Rows[1][5])
	// 02:00 is absent from the right table.
	assert.False(t, out.Rows[2][5].Valid)
	// Left values are untouched.
	assert.Equal(t, String("2.1"), out.Rows[2][4])
}

func TestLeftJoinDuplicateRightKeyUsesFirst(t *testing.T) {
	left := mustRead(t, "k,a\n1,x\n2,y\n")
	right := mustRead(t, "k,b\n1,first\n1,second\n")

	out, err := LeftJoin(left, right, []string{"k"})
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, String("first"), out.Rows[0][2])
	assert.False(t, out.Rows[1][2].Valid)
}

func TestLeftJoinNullKeyNeverMatches(t *testing.T) {
	left := mustRead(t, "k,a\n,x\n")
	right := mustRead(t, "k,b\n,y\n")

	out, err := LeftJoin(left, right, []string{"k"})
	require.NoError(t, err)
	assert.False(t, out.Rows[0][2].Valid)
}

func TestLeftJoinErrors(t *testing.T) {
	left := mustRead(t, "k,a\n1,x\n")

	_, err := LeftJoin(left, mustRead(t, "other,b\n1,y\n"), []string{"k"})
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = LeftJoin(left, mustRead(t, "k,a\n1,y\n"), []string{"k"})
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestCSVRoundTripIgnoringIndex(t *testing.T) {
	joined, err := LeftJoin(mustRead(t, uaCSV), mustRead(t, taCSV), key)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, joined, WriteOptions{Index: true}))

	lines := strings.Split(buf.String(), "\n")
	assert.True(t, strings.HasPrefix(lines[1], "0,2023-01-01T00:00:00Z"), lines[1])

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, "", back.Columns[0])
	require.NoError(t, back.DropColumn(""))

	assert.Equal(t, joined.Columns, back.Columns)
	assert.Equal(t, joined.Rows, back.Rows)
}

func TestCSVFileRoundTripWithoutIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	src := mustRead(t, uaCSV)

	require.NoError(t, WriteCSVFile(path, src, WriteOptions{}))
	back, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, src, back)
}

func TestDropColumnMissing(t *testing.T) {
	tbl := New("a")
	assert.ErrorIs(t, tbl.DropColumn("b"), ErrMissingColumn)
}

func TestAppendRowChecksWidth(t *testing.T) {
	tbl := New("a", "b")
	assert.Error(t, tbl.AppendRow(String("1")))
	require.NoError(t, tbl.AppendRow(String("1"), Null))
	assert.Equal(t, 1, tbl.Len())
}

func TestParquetColumnName(t *testing.T) {
	assert.Equal(t, "latitude", ParquetColumnName(`latitude[unit="degrees_north"]`))
	assert.Equal(t, "time", ParquetColumnName("time"))
	assert.Equal(t, "column", ParquetColumnName(""))
}

func TestWriteParquet(t *testing.T) {
	joined, err := LeftJoin(mustRead(t, uaCSV), mustRead(t, taCSV), key)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, joined))

	b := buf.Bytes()
	require.Greater(t, len(b), 8)
	assert.Equal(t, "PAR1", string(b[:4]))
	assert.Equal(t, "PAR1", string(b[len(b)-4:]))
}
