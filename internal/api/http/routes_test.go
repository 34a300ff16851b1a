package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/barra2-point/internal/reanalysis"
	"github.com/i474232898/barra2-point/internal/store"
)

// stubFetcher writes one CSV row per call, named after the requested variable.
type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, rawURL, dest string) (reanalysis.FetchOutcome, error) {
	if _, err := os.Stat(dest); err == nil {
		return reanalysis.CacheHit, nil
	}
	body := "time,station,latitude[unit=\"degrees_north\"],longitude[unit=\"degrees_east\"],value\n" +
		"2023-01-01T00:00:00Z,GridPointRequestedAt[23.553S_133.396E],-23.553,133.396,1.5\n"
	return reanalysis.Downloaded, os.WriteFile(dest, []byte(body), 0o644)
}

func setup(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()
	dir := t.TempDir()
	base := reanalysis.RunConfig{
		URLTemplate:  "http://thredds.example/{var}/{year}{month}.nc",
		Point:        reanalysis.Point{Latitude: -23.5527472, Longitude: 133.3961111},
		Range:        reanalysis.DateRange{Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2023, 1, 31, 23, 0, 0, 0, time.UTC)},
		Variables:    []string{"ua50m"},
		Prefix:       "demo_project",
		Accept:       "csv_file",
		CacheDir:     filepath.Join(dir, "cache"),
		OutputDir:    filepath.Join(dir, "output"),
		OutputFormat: reanalysis.OutputCSV,
		Concurrency:  1,
	}

	runs := store.NewMemoryStore(10)
	svc := reanalysis.NewService(stubFetcher{}, runs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	app := fiber.New()
	RegisterRoutes(app, svc, runs, base)
	return app, runs
}

func TestLatestRunNotFound(t *testing.T) {
	app, _ := setup(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTriggerRun(t *testing.T) {
	app, runs := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs?from=2023-01-01&to=2023-02-28T23:00:00Z", nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var summary reanalysis.RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.True(t, summary.Succeeded())
	assert.Equal(t, 2, summary.Tasks)
	assert.Equal(t, 2, summary.Downloads)
	assert.FileExists(t, summary.OutputPath)

	latest, err := runs.GetLatest()
	require.NoError(t, err)
	assert.Equal(t, summary.ID, latest.ID)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestTriggerRunValidation verifies that bad overrides are rejected before
// anything is downloaded.
func TestTriggerRunValidation(t *testing.T) {
	app, runs := setup(t)

	for _, target := range []string{
		"/api/v1/runs?from=yesterday",
		"/api/v1/runs?from=2023-03-01&to=2023-01-01",
		"/api/v1/runs?vars=../ua50m",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, target, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}

	_, err := runs.GetLatest()
	assert.ErrorIs(t, err, store.ErrNotFound)
}
