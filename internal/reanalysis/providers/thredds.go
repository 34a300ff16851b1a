package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/barra2-point/internal/reanalysis"
)

// ThreddsFetcher implements reanalysis.Fetcher against a THREDDS NCSS server,
// using the local file as the cache.
type ThreddsFetcher struct {
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewThreddsFetcher creates a fetcher sharing client for all downloads.
func NewThreddsFetcher(client *http.Client, breaker BreakerConfig, logger *slog.Logger) *ThreddsFetcher {
	if breaker.Name == "" {
		breaker.Name = "thredds"
	}
	if breaker.Timeout <= 0 {
		breaker.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreddsFetcher{
		client:  client,
		circuit: newCircuitBreaker(breaker),
		logger:  logger,
	}
}

// Fetch downloads rawURL into dest unless dest already exists. The body is
// written to a sibling .part file and renamed into place once complete.
func (f *ThreddsFetcher) Fetch(ctx context.Context, rawURL, dest string) (reanalysis.FetchOutcome, error) {
	_, err := os.Stat(dest)
	if err == nil {
		f.logger.Info("file already exists", "path", dest)
		return reanalysis.CacheHit, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return reanalysis.CacheHit, err
	}

	f.logger.Info("downloading and caching file", "path", dest)
	f.logger.Debug("request", "url", rawURL)

	resp, err := doRequest(ctx, f.client, f.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, rawURL, nil)
	})
	if err != nil {
		return reanalysis.Downloaded, fmt.Errorf("get %s: %w", dest, err)
	}
	defer resp.Body.Close()

	if err := writeFile(dest, resp.Body); err != nil {
		return reanalysis.Downloaded, fmt.Errorf("save %s: %w", dest, err)
	}
	return reanalysis.Downloaded, nil
}

func writeFile(dest string, r io.Reader) error {
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}
