package reanalysis

import (
	"time"
)

// Columns of every NCSS point CSV that identify a row. Per-variable tables are
// joined on these.
const (
	ColumnTime      = "time"
	ColumnStation   = "station"
	ColumnLatitude  = `latitude[unit="degrees_north"]`
	ColumnLongitude = `longitude[unit="degrees_east"]`
)

// JoinKey is the (time, station, latitude, longitude) key used by the merge.
var JoinKey = []string{ColumnTime, ColumnStation, ColumnLatitude, ColumnLongitude}

// OutputFormat selects the file type of the combined output.
type OutputFormat string

const (
	OutputCSV     OutputFormat = "csv"
	OutputParquet OutputFormat = "parquet"
)

// Point is the fixed location queried for a run.
type Point struct {
	Latitude  float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
}

// DateRange is an inclusive time window.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start" validate:"required"`
	End   time.Time `json:"end" yaml:"end" validate:"required,gtefield=Start"`
}

// RunConfig is everything a single pipeline run needs.
type RunConfig struct {
	// URLTemplate is the NCSS dataset URL with {var}, {year} and {month}
	// placeholders.
	URLTemplate string `validate:"required,url"`

	Point     Point
	Range     DateRange
	Variables []string `validate:"required,min=1,dive,required"`

	// Prefix names cache and output files, usually a project or device tag.
	Prefix string `validate:"required,excludesall=/\\"`
	// Accept is the NCSS accept token, e.g. csv_file.
	Accept string `validate:"required"`

	CacheDir     string       `validate:"required"`
	OutputDir    string       `validate:"required"`
	OutputFormat OutputFormat `validate:"oneof=csv parquet"`
	// WriteIndex adds a leading row-number column to CSV output.
	WriteIndex bool

	// Concurrency bounds parallel downloads; 1 is strictly sequential.
	Concurrency int `validate:"min=1"`
}

// RunSummary describes the outcome of one pipeline run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Point     Point     `json:"point"`
	Range     DateRange `json:"range"`
	Variables []string  `json:"variables"`

	Tasks     int `json:"tasks"`
	CacheHits int `json:"cacheHits"`
	Downloads int `json:"downloads"`

	OutputPath string `json:"outputPath,omitempty"`
	Rows       int    `json:"rows"`
	Error      string `json:"error,omitempty"`
}

// Succeeded reports whether the run produced an output file.
func (s RunSummary) Succeeded() bool {
	return s.Error == "" && s.OutputPath != ""
}
