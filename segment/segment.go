// Package segment runs one independent forecast per combination of
// dimension values and assembles the results into a single table.
package segment

import (
	"strings"

	"github.com/sartorproj/salesforecast/reconcile"
	"github.com/sartorproj/salesforecast/timeseries"
)

// Segment is the set of observations sharing one key.
type Segment struct {
	Key          reconcile.SegmentKey
	Observations []timeseries.Observation
}

// Enumerate groups observations by the values of the given dimensions.
// Segments are returned in the order their key first appears in obs.
// With no dimensions a single global segment holds every observation.
// An observation without a tag for a dimension gets the empty value.
func Enumerate(obs []timeseries.Observation, dimensions []string) []Segment {
	if len(dimensions) == 0 {
		return []Segment{{Key: nil, Observations: obs}}
	}

	index := make(map[string]int)
	var segments []Segment
	values := make([]string, len(dimensions))

	for _, o := range obs {
		for i, d := range dimensions {
			values[i] = o.Tag(d)
		}
		id := strings.Join(values, "\x00")

		i, ok := index[id]
		if !ok {
			key := make(reconcile.SegmentKey, len(dimensions))
			for j, d := range dimensions {
				key[j] = reconcile.Dimension{Name: d, Value: values[j]}
			}
			i = len(segments)
			index[id] = i
			segments = append(segments, Segment{Key: key})
		}
		segments[i].Observations = append(segments[i].Observations, o)
	}

	return segments
}
