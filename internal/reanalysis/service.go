package reanalysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/barra2-point/internal/common"
)

// Task is one planned monthly download.
type Task struct {
	Request
	// Path is the cache file the response is stored in.
	Path string
}

// PlanTasks lists the downloads for cfg, variable-major and month-minor.
func PlanTasks(cfg RunConfig) ([]Task, error) {
	var tasks []Task
	for _, v := range cfg.Variables {
		for month := range Months(cfg.Range.Start, cfg.Range.End) {
			req, err := BuildRequest(cfg.URLTemplate, v, month, cfg.Point, cfg.Accept)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, Task{
				Request: req,
				Path:    filepath.Join(cfg.CacheDir, CacheFileName(cfg.Prefix, v, req.WindowStart, req.WindowEnd)),
			})
		}
	}
	return tasks, nil
}

// Service runs the fetch, merge and write pipeline and records every run.
type Service struct {
	fetcher Fetcher
	runs    RunStore
	logger  *slog.Logger

	// one run at a time; scheduled and API-triggered runs share the cache
	mu sync.Mutex
}

// NewService creates a new Service. runs may be nil.
func NewService(fetcher Fetcher, runs RunStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher: fetcher,
		runs:    runs,
		logger:  logger,
	}
}

// Run executes one full pipeline run for cfg. The returned summary is also
// saved to the run store, whether or not the run failed.
func (s *Service) Run(ctx context.Context, cfg RunConfig) (RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := RunSummary{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Point:     cfg.Point,
		Range:     cfg.Range,
		Variables: slices.Clone(cfg.Variables),
	}
	logger := s.logger.With("run", summary.ID)
	logger.Info("run started",
		"latitude", cfg.Point.Latitude, "longitude", cfg.Point.Longitude,
		"start", cfg.Range.Start.Format(TimeLayout), "end", cfg.Range.End.Format(TimeLayout),
		"variables", cfg.Variables)

	err := s.run(ctx, logger, cfg, &summary)
	summary.FinishedAt = time.Now().UTC()
	if err != nil {
		summary.Error = err.Error()
		logger.Error("run failed", "err", err)
	} else {
		logger.Info("run completed", "output", summary.OutputPath, "rows", summary.Rows,
			"downloads", summary.Downloads, "cacheHits", summary.CacheHits,
			"took", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	}

	if s.runs != nil {
		s.runs.SaveRun(summary)
	}
	return summary, err
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, cfg RunConfig, summary *RunSummary) error {
	tasks, err := PlanTasks(cfg)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	summary.Tasks = len(tasks)

	hits, downloads, err := s.FetchAll(ctx, logger, cfg, tasks)
	summary.CacheHits, summary.Downloads = hits, downloads
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	combined, err := CombineCached(logger, cfg.CacheDir, cfg.Prefix, cfg.Variables)
	if err != nil {
		return fmt.Errorf("combine: %w", err)
	}
	summary.Rows = combined.Len()

	path, err := WriteOutput(logger, cfg, combined)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	summary.OutputPath = path
	return nil
}

// FetchAll ensures the cache directory and runs every task, at most
// cfg.Concurrency at a time. All tasks are attempted; failures are returned
// together.
func (s *Service) FetchAll(ctx context.Context, logger *slog.Logger, cfg RunConfig, tasks []Task) (hits, downloads int, err error) {
	created, err := common.EnsureDir(cfg.CacheDir)
	if err != nil {
		return 0, 0, fmt.Errorf("cache dir: %w", err)
	}
	if created {
		logger.Info("directory created", "path", cfg.CacheDir)
	} else {
		logger.Debug("directory already exists", "path", cfg.CacheDir)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs *multierror.Error
	)
	g.SetLimit(max(cfg.Concurrency, 1))

	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, fetchErr := s.fetcher.Fetch(ctx, t.URL, t.Path)

			mu.Lock()
			defer mu.Unlock()
			if fetchErr != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s %s: %w", t.Variable, t.WindowStart.Format("2006-01"), fetchErr))
				return nil
			}
			switch outcome {
			case CacheHit:
				hits++
			case Downloaded:
				downloads++
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return hits, downloads, ctx.Err()
	}
	return hits, downloads, errs.ErrorOrNil()
}
