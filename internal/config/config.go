package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/barra2-point/internal/common"
	"github.com/i474232898/barra2-point/internal/reanalysis"
)

var validate = validator.New()

type AppConfig struct {
	// Run is the pipeline configuration passed to every run.
	Run reanalysis.RunConfig

	// HTTPTimeout bounds every download request.
	HTTPTimeout time.Duration
	// BreakerMaxFailures is the number of consecutive failed downloads that
	// stops the remaining ones.
	BreakerMaxFailures uint32 `validate:"gte=1"`

	// RunInterval re-runs the pipeline periodically (0 = run once).
	RunInterval time.Duration
	// RunHistory is the number of run summaries kept (0 = unlimited).
	RunHistory int `validate:"gte=0"`

	Port     string `validate:"required,numeric"`
	LogLevel slog.Level
}

// fileConfig mirrors AppConfig for YAML files; zero values mean "not set".
type fileConfig struct {
	URLTemplate string            `yaml:"url_template"`
	Point       *reanalysis.Point `yaml:"point"`
	Start       string            `yaml:"start"`
	End         string            `yaml:"end"`
	Variables   []string          `yaml:"variables"`
	Prefix      string            `yaml:"prefix"`
	Accept      string            `yaml:"accept"`

	CacheDir     string `yaml:"cache_dir"`
	OutputDir    string `yaml:"output_dir"`
	OutputFormat string `yaml:"output_format"`
	OutputIndex  *bool  `yaml:"output_index"`

	HTTPTimeout        string `yaml:"http_timeout"`
	Concurrency        int    `yaml:"concurrency"`
	BreakerMaxFailures uint32 `yaml:"breaker_max_failures"`
	RunInterval        string `yaml:"run_interval"`
	RunHistory         *int   `yaml:"run_history"`
	Port               string `yaml:"port"`
	LogLevel           string `yaml:"log_level"`
}

// Default returns the configuration used when nothing is overridden: the
// BARRA-R2 wind and temperature series at 50 m for the demo point over the
// first quarter of 2023.
func Default() *AppConfig {
	return &AppConfig{
		Run: reanalysis.RunConfig{
			URLTemplate: reanalysis.DefaultURLTemplate,
			Point:       reanalysis.Point{Latitude: -23.5527472, Longitude: 133.3961111},
			Range: reanalysis.DateRange{
				Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2023, 3, 31, 23, 0, 0, 0, time.UTC),
			},
			Variables:    []string{"ua50m", "va50m", "ta50m"},
			Prefix:       "demo_project",
			Accept:       "csv_file",
			CacheDir:     "cache",
			OutputDir:    "output",
			OutputFormat: reanalysis.OutputCSV,
			WriteIndex:   true,
			Concurrency:  1,
		},
		HTTPTimeout:        5 * time.Minute,
		BreakerMaxFailures: 5,
		RunHistory:         50,
		Port:               "8080",
		LogLevel:           slog.LevelInfo,
	}
}

// Load reads configuration from .env, a YAML file and the environment, in
// that order of increasing precedence. An empty path falls back to
// CONFIG_FILE; if that is unset too no file is read.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	return LoadWithFile(path)
}

// LoadWithFile is Load without the .env step and with an explicit YAML path.
// An empty path skips the file.
func LoadWithFile(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the whole configuration.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("invalid configuration: HTTP_TIMEOUT must be positive")
	}
	if c.RunInterval < 0 {
		return errors.New("invalid configuration: RUN_INTERVAL must not be negative")
	}
	return nil
}

func (c *AppConfig) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	r := &c.Run
	setString(&r.URLTemplate, fc.URLTemplate)
	if fc.Point != nil {
		r.Point = *fc.Point
	}
	if err := setTime(&r.Range.Start, fc.Start, "start"); err != nil {
		return err
	}
	if err := setTime(&r.Range.End, fc.End, "end"); err != nil {
		return err
	}
	if len(fc.Variables) > 0 {
		r.Variables = fc.Variables
	}
	setString(&r.Prefix, fc.Prefix)
	setString(&r.Accept, fc.Accept)
	setString(&r.CacheDir, fc.CacheDir)
	setString(&r.OutputDir, fc.OutputDir)
	if fc.OutputFormat != "" {
		r.OutputFormat = reanalysis.OutputFormat(strings.ToLower(fc.OutputFormat))
	}
	if fc.OutputIndex != nil {
		r.WriteIndex = *fc.OutputIndex
	}
	if fc.Concurrency != 0 {
		r.Concurrency = fc.Concurrency
	}

	if err := setDuration(&c.HTTPTimeout, fc.HTTPTimeout, "http_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.RunInterval, fc.RunInterval, "run_interval"); err != nil {
		return err
	}
	if fc.BreakerMaxFailures != 0 {
		c.BreakerMaxFailures = fc.BreakerMaxFailures
	}
	if fc.RunHistory != nil {
		c.RunHistory = *fc.RunHistory
	}
	setString(&c.Port, fc.Port)
	return setLevel(&c.LogLevel, fc.LogLevel)
}

func (c *AppConfig) applyEnv() error {
	r := &c.Run
	r.URLTemplate = getenvDefault("BARRA2_URL_TEMPLATE", r.URLTemplate)

	var err error
	if r.Point.Latitude, err = getenvFloat("POINT_LATITUDE", r.Point.Latitude); err != nil {
		return err
	}
	if r.Point.Longitude, err = getenvFloat("POINT_LONGITUDE", r.Point.Longitude); err != nil {
		return err
	}
	if err := setTime(&r.Range.Start, os.Getenv("DATE_START"), "DATE_START"); err != nil {
		return err
	}
	if err := setTime(&r.Range.End, os.Getenv("DATE_END"), "DATE_END"); err != nil {
		return err
	}
	if vars := common.SplitList(os.Getenv("VARIABLES")); len(vars) > 0 {
		r.Variables = vars
	}
	r.Prefix = getenvDefault("OUTPUT_PREFIX", r.Prefix)
	r.Accept = getenvDefault("ACCEPT_FORMAT", r.Accept)
	r.CacheDir = getenvDefault("CACHE_DIR", r.CacheDir)
	r.OutputDir = getenvDefault("OUTPUT_DIR", r.OutputDir)
	r.OutputFormat = reanalysis.OutputFormat(strings.ToLower(getenvDefault("OUTPUT_FILE_FORMAT", string(r.OutputFormat))))
	if r.WriteIndex, err = getenvBool("OUTPUT_INDEX", r.WriteIndex); err != nil {
		return err
	}
	r.Concurrency = getenvInt("FETCH_CONCURRENCY", r.Concurrency)

	if err := setDuration(&c.HTTPTimeout, os.Getenv("HTTP_TIMEOUT"), "HTTP_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.RunInterval, os.Getenv("RUN_INTERVAL"), "RUN_INTERVAL"); err != nil {
		return err
	}
	if c.BreakerMaxFailures, err = getenvUint32("BREAKER_MAX_FAILURES", c.BreakerMaxFailures); err != nil {
		return err
	}
	c.RunHistory = getenvInt("RUN_HISTORY", c.RunHistory)
	c.Port = getenvDefault("PORT", c.Port)
	return setLevel(&c.LogLevel, os.Getenv("LOG_LEVEL"))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setTime(dst *time.Time, v, name string) error {
	if v == "" {
		return nil
	}
	ts, err := common.ParseTime(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = ts
	return nil
}

func setDuration(dst *time.Duration, v, name string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

func setLevel(dst *slog.Level, v string) error {
	if v == "" {
		return nil
	}
	if err := dst.UnmarshalText([]byte(v)); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvUint32(key string, def uint32) (uint32, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return uint32(n), nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
