package reanalysis

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultURLTemplate points at the BARRA-R2 11 km hourly reanalysis on NCI's
// THREDDS server. One NetCDF file per variable and month.
const DefaultURLTemplate = "https://thredds.nci.org.au/thredds/ncss/grid/ob53/output/reanalysis/AUS-11/BOM/ERA5/historical/hres/BARRA-R2/v1/1hr/{var}/latest/{var}_AUS-11_ERA5_historical_hres_BOM_BARRA-R2_v1_1hr_{year}{month}-{year}{month}.nc"

// TimeLayout is the NCSS time_start/time_end format.
const TimeLayout = "2006-01-02T15:04:05Z"

var errInvalidTemplate = errors.New("invalid url template")

// Request is one monthly point query for one variable.
type Request struct {
	Variable    string
	WindowStart time.Time
	WindowEnd   time.Time
	URL         string
}

// BuildRequest renders tmpl for variable and month and attaches the point
// query parameters. The window spans the whole month at hourly resolution.
func BuildRequest(tmpl, variable string, month time.Time, p Point, accept string) (Request, error) {
	start := MonthStart(month)
	end := WindowEnd(start)

	base := strings.NewReplacer(
		"{var}", url.PathEscape(variable),
		"{year}", strconv.Itoa(start.Year()),
		"{month}", fmt.Sprintf("%02d", int(start.Month())),
	).Replace(tmpl)

	u, err := url.Parse(base)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", errInvalidTemplate, err)
	}
	if u.Scheme == "" || u.Host == "" || u.RawQuery != "" {
		return Request{}, fmt.Errorf("%w: %q", errInvalidTemplate, tmpl)
	}

	values := url.Values{}
	values.Set("var", variable)
	values.Set("latitude", strconv.FormatFloat(p.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(p.Longitude, 'f', -1, 64))
	values.Set("time_start", start.Format(TimeLayout))
	values.Set("time_end", end.Format(TimeLayout))
	values.Set("accept", accept)

	return Request{
		Variable:    variable,
		WindowStart: start,
		WindowEnd:   end,
		URL:         fmt.Sprintf("%s?%s", base, values.Encode()),
	}, nil
}

// CacheFileName is the deterministic name of the cached CSV for one request.
func CacheFileName(prefix, variable string, windowStart, windowEnd time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.csv", prefix, variable,
		windowStart.UTC().Format(time.DateOnly), windowEnd.UTC().Format(time.DateOnly))
}

// IsCacheFile reports whether name is a cached CSV of variable under prefix.
// Names are compared literally, so prefixes and variables may contain glob
// metacharacters.
func IsCacheFile(name, prefix, variable string) bool {
	return strings.HasPrefix(name, prefix+"_"+variable+"_") && strings.HasSuffix(name, ".csv")
}

// OutputFileName names the combined output for a run.
func OutputFileName(prefix string, r DateRange, format OutputFormat) string {
	ext := string(format)
	if ext == "" {
		ext = string(OutputCSV)
	}
	return fmt.Sprintf("%s_combined_%s_%s.%s", prefix,
		r.Start.UTC().Format("20060102"), r.End.UTC().Format("20060102"), ext)
}
