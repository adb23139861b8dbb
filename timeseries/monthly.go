package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInsufficientHistory is returned when fewer than two distinct months
// remain after aggregation.
var ErrInsufficientHistory = errors.New("insufficient history")

// ErrNonFinite is returned when an observation value is NaN or infinite.
var ErrNonFinite = errors.New("non-finite observation value")

// MinMonths is the minimum number of distinct months needed to fit a trend.
const MinMonths = 2

// Observation is a single timestamped record, typically one transaction.
type Observation struct {
	Timestamp time.Time
	Value     float64
	Tags      map[string]string // Dimension name -> value (e.g. "Region" -> "East")
}

// Tag returns the value of the named dimension, or "" if the tag is missing.
func (o Observation) Tag(name string) string {
	if o.Tags == nil {
		return ""
	}
	return o.Tags[name]
}

// MonthStart returns the first instant of t's calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths shifts a month start by n calendar months.
func AddMonths(t time.Time, n int) time.Time {
	m := MonthStart(t)
	return time.Date(m.Year(), m.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween returns the number of calendar months from a to b.
func MonthsBetween(a, b time.Time) int {
	a, b = MonthStart(a), MonthStart(b)
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// AggregateMonthly groups observations by calendar month and sums their
// values. The result is keyed by the first day of each month and sorted
// ascending. Months without observations are absent, not zero.
func AggregateMonthly(obs []Observation, name string) (*Series, error) {
	for i, o := range obs {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return nil, fmt.Errorf("%w: observation %d at %s is %v", ErrNonFinite, i, o.Timestamp.Format(time.RFC3339), o.Value)
		}
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var periods []time.Time
	var sums []decimal.Decimal

	for _, o := range sorted {
		period := MonthStart(o.Timestamp)
		last := len(periods) - 1
		if last >= 0 && periods[last].Equal(period) {
			sums[last] = sums[last].Add(decimal.NewFromFloat(o.Value))
			continue
		}
		periods = append(periods, period)
		sums = append(sums, decimal.NewFromFloat(o.Value))
	}

	if len(periods) < MinMonths {
		return nil, fmt.Errorf("%w: %d distinct month(s), need %d", ErrInsufficientHistory, len(periods), MinMonths)
	}

	values := make([]float64, len(sums))
	for i, s := range sums {
		values[i] = s.InexactFloat64()
	}

	return &Series{
		Timestamps: periods,
		Values:     values,
		Name:       name,
	}, nil
}

// Observations converts the series back into one observation per entry.
func (s *Series) Observations() []Observation {
	out := make([]Observation, s.Len())
	for i := range s.Values {
		out[i] = Observation{Timestamp: s.Timestamps[i], Value: s.Values[i]}
	}
	return out
}

// ValidateMonthly checks that every timestamp is a month start and that
// periods are strictly increasing.
func (s *Series) ValidateMonthly() error {
	if len(s.Timestamps) != len(s.Values) {
		return errors.New("timestamps and values must have the same length")
	}
	for i, ts := range s.Timestamps {
		if !ts.Equal(MonthStart(ts)) {
			return fmt.Errorf("period %d (%s) is not a month start", i, ts.Format(time.RFC3339))
		}
		if i > 0 && !s.Timestamps[i-1].Before(ts) {
			return fmt.Errorf("period %d (%s) does not follow %s", i, ts.Format("2006-01"), s.Timestamps[i-1].Format("2006-01"))
		}
	}
	return nil
}
