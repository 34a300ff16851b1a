package reanalysis

import (
	"iter"
	"time"
)

// MonthStart returns 00:00 UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in t's month.
func DaysIn(t time.Time) int {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WindowEnd returns the last hourly timestamp of t's month.
func WindowEnd(t time.Time) time.Time {
	start := MonthStart(t)
	return start.AddDate(0, 0, DaysIn(start)).Add(-time.Hour)
}

// Months yields the first instant of every month from start's month through
// end's month inclusive. The sequence can be ranged over any number of times.
func Months(start, end time.Time) iter.Seq[time.Time] {
	first, last := MonthStart(start), MonthStart(end)
	return func(yield func(time.Time) bool) {
		for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
			if !yield(m) {
				return
			}
		}
	}
}
