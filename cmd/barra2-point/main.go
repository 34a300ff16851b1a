package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/barra2-point/internal/api/http"
	"github.com/i474232898/barra2-point/internal/common"
	"github.com/i474232898/barra2-point/internal/config"
	"github.com/i474232898/barra2-point/internal/reanalysis"
	"github.com/i474232898/barra2-point/internal/reanalysis/providers"
	"github.com/i474232898/barra2-point/internal/scheduler"
	"github.com/i474232898/barra2-point/internal/store"
)

var (
	configFile string
	verbose    bool

	latitude    float64
	longitude   float64
	from        string
	to          string
	vars        string
	prefix      string
	cacheDir    string
	outputDir   string
	format      string
	concurrency int

	every time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "barra2-point",
	Short: "Point time series from the BARRA2 reanalysis",
	Long: `Downloads monthly point time series of BARRA2 variables from the NCI THREDDS
server, caches every month on disk and merges them into one table.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, cache and merge the configured series",
	RunE:  runPipeline,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API and the optional periodic runs",
	RunE:  runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "YAML config file (default $CONFIG_FILE)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	pf.Float64Var(&latitude, "lat", 0, "Point latitude")
	pf.Float64Var(&longitude, "lon", 0, "Point longitude")
	pf.StringVar(&from, "from", "", "Range start (RFC3339, YYYY-MM-DD or unix seconds)")
	pf.StringVar(&to, "to", "", "Range end (RFC3339, YYYY-MM-DD or unix seconds)")
	pf.StringVar(&vars, "vars", "", "Comma separated variable names, e.g. ua50m,va50m")
	pf.StringVar(&prefix, "prefix", "", "Prefix of cache and output files")
	pf.StringVar(&cacheDir, "cache-dir", "", "Cache directory")
	pf.StringVar(&outputDir, "output-dir", "", "Output directory")
	pf.StringVar(&format, "format", "", "Output format: csv or parquet")
	pf.IntVar(&concurrency, "concurrency", 0, "Parallel downloads")

	runCmd.Flags().DurationVar(&every, "every", 0, "Re-run periodically until interrupted")

	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds everything both commands are built from.
type app struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	runs    *store.MemoryStore
	service *reanalysis.Service
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	// Shared HTTP client for the THREDDS downloads.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	fetcher := providers.NewThreddsFetcher(httpClient, providers.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
	}, log)

	runs := store.NewMemoryStore(cfg.RunHistory)
	return &app{
		cfg:     cfg,
		logger:  log,
		runs:    runs,
		service: reanalysis.NewService(fetcher, runs, log),
	}, nil
}

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.AppConfig) error {
	flags := cmd.Flags()
	r := &cfg.Run

	if flags.Changed("lat") {
		r.Point.Latitude = latitude
	}
	if flags.Changed("lon") {
		r.Point.Longitude = longitude
	}
	if flags.Changed("from") {
		ts, err := common.ParseTime(from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		r.Range.Start = ts
	}
	if flags.Changed("to") {
		ts, err := common.ParseTime(to)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		r.Range.End = ts
	}
	if flags.Changed("vars") {
		r.Variables = common.SplitList(vars)
	}
	if flags.Changed("prefix") {
		r.Prefix = prefix
	}
	if flags.Changed("cache-dir") {
		r.CacheDir = cacheDir
	}
	if flags.Changed("output-dir") {
		r.OutputDir = outputDir
	}
	if flags.Changed("format") {
		r.OutputFormat = reanalysis.OutputFormat(strings.ToLower(format))
	}
	if flags.Changed("concurrency") {
		r.Concurrency = concurrency
	}
	if flags.Changed("every") {
		cfg.RunInterval = every
	}
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.RunInterval > 0 {
		sched := scheduler.New(a.cfg.Run, a.cfg.RunInterval, a.service, a.logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()

		<-ctx.Done()
		a.logger.Info("interrupted; stopping")
		return nil
	}

	summary, err := a.service.Run(ctx, a.cfg.Run)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary.OutputPath)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	// Scheduler that periodically refreshes the configured series.
	sched := scheduler.New(a.cfg.Run, a.cfg.RunInterval, a.service, a.logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// Runs triggered over HTTP are synchronous, so there is no write timeout.
	server := fiber.New(fiber.Config{
		AppName:               "barra2-point",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	server.Use(logger.New())
	server.Use(recover.New())

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "barra2-point",
		})
	})

	httpapi.RegisterRoutes(server, a.service, a.runs, a.cfg.Run)

	go func() {
		a.logger.Info("listening", "port", a.cfg.Port)
		if err := server.Listen(":" + a.cfg.Port); err != nil {
			a.logger.Error("fiber server stopped", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("error during shutdown", "err", err)
	}
	return nil
}
