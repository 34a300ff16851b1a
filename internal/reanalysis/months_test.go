package reanalysis

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthsFirstQuarter(t *testing.T) {
	got := slices.Collect(Months(date(2023, 1, 1), date(2023, 3, 31)))
	assert.Equal(t, []time.Time{date(2023, 1, 1), date(2023, 2, 1), date(2023, 3, 1)}, got)
}

func TestMonthsStartsAtStartMonth(t *testing.T) {
	start := time.Date(2023, 11, 15, 6, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 23, 0, 0, 0, time.UTC)

	got := slices.Collect(Months(start, end))
	assert.Equal(t, []time.Time{date(2023, 11, 1), date(2023, 12, 1), date(2024, 1, 1)}, got)
}

func TestMonthsIsRestartable(t *testing.T) {
	seq := Months(date(2023, 1, 1), date(2023, 2, 28))
	assert.Equal(t, slices.Collect(seq), slices.Collect(seq))
}

func TestMonthsEmptyWhenStartAfterEnd(t *testing.T) {
	assert.Empty(t, slices.Collect(Months(date(2023, 5, 1), date(2023, 4, 1))))
}

func TestMonthsStopsEarly(t *testing.T) {
	var got []time.Time
	for m := range Months(date(2020, 1, 1), date(2020, 12, 1)) {
		got = append(got, m)
		if len(got) == 2 {
			break
		}
	}
	assert.Len(t, got, 2)
}

func TestWindowEnd(t *testing.T) {
	assert.Equal(t, time.Date(2023, 1, 31, 23, 0, 0, 0, time.UTC), WindowEnd(date(2023, 1, 1)))
	assert.Equal(t, time.Date(2023, 2, 28, 23, 0, 0, 0, time.UTC), WindowEnd(date(2023, 2, 1)))
	assert.Equal(t, time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC), WindowEnd(date(2024, 2, 10)))
	assert.Equal(t, 31, DaysIn(date(2023, 12, 5)))
}
