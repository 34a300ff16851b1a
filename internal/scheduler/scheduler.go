package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/barra2-point/internal/reanalysis"
)

// Scheduler periodically re-runs the pipeline for a fixed run configuration.
// Months already in the cache are skipped, so later runs only download what
// is missing.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *reanalysis.Service
	cfg       reanalysis.RunConfig
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(cfg reanalysis.RunConfig, interval time.Duration, service *reanalysis.Service, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	// a slow run must never overlap the next tick
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		service:   service,
		cfg:       cfg,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run starts immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("no interval configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.logger.Info("running scheduled pipeline", "interval", s.interval)

		// a run may take as long as the interval, not longer
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()

		if _, err := s.service.Run(ctx, s.cfg); err != nil {
			s.logger.Error("scheduled run failed", "err", err)
			return
		}
		s.logger.Info("scheduled run completed")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
