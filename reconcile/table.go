package reconcile

import (
	"time"
)

// TableRow is a Row tagged with the values of its segment key.
type TableRow struct {
	Row
	Segment SegmentKey
}

// Table is the ordered output of a run across all segments.
type Table struct {
	RunID      string
	Dimensions []string // Segment columns, in key order
	Rows       []TableRow
	segments   int
}

// NewTable creates an empty table for the given segment dimensions.
func NewTable(runID string, dimensions []string) *Table {
	return &Table{
		RunID:      runID,
		Dimensions: append([]string(nil), dimensions...),
	}
}

// Append adds every row of a segment result. Not safe for concurrent use.
func (t *Table) Append(result *SegmentResult) {
	for _, r := range result.Rows {
		t.Rows = append(t.Rows, TableRow{Row: r, Segment: result.Key})
	}
	t.segments++
}

// Segments returns how many segment results were appended.
func (t *Table) Segments() int {
	return t.segments
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Segment returns the rows of one segment in table order.
func (t *Table) Segment(key SegmentKey) []TableRow {
	var out []TableRow
	for _, r := range t.Rows {
		if r.Segment.Equal(key) {
			out = append(out, r)
		}
	}
	return out
}

// Keys returns the distinct segment keys in the order they were appended.
func (t *Table) Keys() []SegmentKey {
	var keys []SegmentKey
	for _, r := range t.Rows {
		if len(keys) > 0 && keys[len(keys)-1].Equal(r.Segment) {
			continue
		}
		keys = append(keys, r.Segment)
	}
	return keys
}

// DateRange returns the first and last dates in the table.
func (t *Table) DateRange() (time.Time, time.Time) {
	var first, last time.Time
	for i, r := range t.Rows {
		if i == 0 || r.Date.Before(first) {
			first = r.Date
		}
		if i == 0 || r.Date.After(last) {
			last = r.Date
		}
	}
	return first, last
}
