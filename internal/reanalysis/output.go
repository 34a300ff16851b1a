package reanalysis

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/i474232898/barra2-point/internal/common"
	"github.com/i474232898/barra2-point/internal/table"
)

// WriteOutput writes the combined table into cfg.OutputDir and returns the
// file path.
func WriteOutput(logger *slog.Logger, cfg RunConfig, t *table.Table) (string, error) {
	created, err := common.EnsureDir(cfg.OutputDir)
	if err != nil {
		return "", fmt.Errorf("output dir: %w", err)
	}
	if created {
		logger.Info("directory created", "path", cfg.OutputDir)
	}

	path := filepath.Join(cfg.OutputDir, OutputFileName(cfg.Prefix, cfg.Range, cfg.OutputFormat))
	switch cfg.OutputFormat {
	case OutputParquet:
		err = table.WriteParquetFile(path, t)
	case OutputCSV, "":
		err = table.WriteCSVFile(path, t, table.WriteOptions{Index: cfg.WriteIndex})
	default:
		return "", fmt.Errorf("unsupported output format %q", cfg.OutputFormat)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
