package reanalysis

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/i474232898/barra2-point/internal/table"
)

// ErrNoCacheFiles is returned when a variable has nothing cached to merge.
var ErrNoCacheFiles = errors.New("no cached files")

// CombineCached concatenates the cached monthly tables of every variable and
// left-joins them, in variable order, on JoinKey. The first variable's table
// fixes the set of rows.
func CombineCached(logger *slog.Logger, cacheDir, prefix string, variables []string) (*table.Table, error) {
	var combined *table.Table
	for _, v := range variables {
		vt, err := readVariable(logger, cacheDir, prefix, v)
		if err != nil {
			return nil, err
		}

		if combined.Empty() {
			combined = vt
			continue
		}
		combined, err = table.LeftJoin(combined, vt, JoinKey)
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", v, err)
		}
	}
	if combined == nil {
		return &table.Table{}, nil
	}
	return combined, nil
}

func readVariable(logger *slog.Logger, cacheDir, prefix, variable string) (*table.Table, error) {
	files, err := cacheFiles(cacheDir, prefix, variable)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w for %s in %s", ErrNoCacheFiles, variable, cacheDir)
	}

	tables := make([]*table.Table, 0, len(files))
	for _, f := range files {
		t, err := table.ReadCSVFile(f)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}

	vt, err := table.Concat(tables...)
	if err != nil {
		return nil, fmt.Errorf("concat %s: %w", variable, err)
	}
	for _, k := range JoinKey {
		if vt.ColumnIndex(k) < 0 {
			return nil, fmt.Errorf("%s: %w: %q", variable, table.ErrMissingColumn, k)
		}
	}

	logger.Debug("variable loaded", "variable", variable, "files", len(files), "rows", vt.Len())
	return vt, nil
}

// cacheFiles lists the cached CSVs of variable in cacheDir, sorted by name.
func cacheFiles(cacheDir, prefix, variable string) ([]string, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsCacheFile(e.Name(), prefix, variable) {
			files = append(files, filepath.Join(cacheDir, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}
