// Package reconcile merges forecasts with historical actuals into table rows.
package reconcile

import (
	"strings"
	"time"

	"github.com/sartorproj/salesforecast/prophet"
	"github.com/sartorproj/salesforecast/timeseries"
)

// GlobalSegment is the rendered key of the unsegmented run.
const GlobalSegment = "global"

// Dimension is one named component of a segment key.
type Dimension struct {
	Name  string
	Value string
}

// SegmentKey identifies one independent forecasting run. The zero value is
// the global segment.
type SegmentKey []Dimension

// IsGlobal reports whether the key is the global sentinel.
func (k SegmentKey) IsGlobal() bool {
	return len(k) == 0
}

// Equal reports structural equality.
func (k SegmentKey) Equal(other SegmentKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Values returns the dimension values in key order.
func (k SegmentKey) Values() []string {
	out := make([]string, len(k))
	for i, d := range k {
		out[i] = d.Value
	}
	return out
}

func (k SegmentKey) String() string {
	if k.IsGlobal() {
		return GlobalSegment
	}
	parts := make([]string, len(k))
	for i, d := range k {
		parts[i] = d.Name + "=" + d.Value
	}
	return strings.Join(parts, ",")
}

// Row is one merged period. Actual is nil when the segment has no history
// for the period.
type Row struct {
	Date      time.Time
	Actual    *float64
	Predicted float64
	Lower     float64
	Upper     float64
}

// HasActual reports whether the row carries an observed value.
func (r Row) HasActual() bool {
	return r.Actual != nil
}

// SegmentResult is the merged output of one segment.
type SegmentResult struct {
	Key  SegmentKey
	Rows []Row
}

// Merge left-joins actuals onto the forecast periods. Every forecast period
// appears exactly once; periods missing from actuals get a nil Actual.
func Merge(key SegmentKey, actuals *timeseries.Series, points []prophet.Point) *SegmentResult {
	byPeriod := make(map[time.Time]float64, actuals.Len())
	for i, ts := range actuals.Timestamps {
		byPeriod[ts.UTC()] = actuals.Values[i]
	}

	rows := make([]Row, len(points))
	for i, p := range points {
		rows[i] = Row{
			Date:      p.Period,
			Predicted: p.Predicted,
			Lower:     p.Lower,
			Upper:     p.Upper,
		}
		if v, ok := byPeriod[p.Period.UTC()]; ok {
			actual := v
			rows[i].Actual = &actual
		}
	}

	return &SegmentResult{Key: key, Rows: rows}
}
