package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/sartorproj/salesforecast/segment"
)

// Report is the YAML run report written next to the forecast table.
type Report struct {
	RunID            string           `yaml:"run_id"`
	SegmentsForecast int              `yaml:"segments_forecast"`
	SegmentsSkipped  int              `yaml:"segments_skipped"`
	Rows             int              `yaml:"rows"`
	Skipped          []SkippedSegment `yaml:"skipped,omitempty"`
}

type SkippedSegment struct {
	Segment    string            `yaml:"segment"`
	Dimensions map[string]string `yaml:"dimensions,omitempty"`
	Reason     string            `yaml:"reason"`
	Message    string            `yaml:"message"`
}

// NewReport summarises a run result.
func NewReport(result *segment.Result) *Report {
	report := &Report{
		RunID:            result.RunID,
		SegmentsForecast: result.Table.Segments(),
		SegmentsSkipped:  len(result.Skipped),
		Rows:             result.Table.Len(),
	}
	for _, d := range result.Skipped {
		s := SkippedSegment{
			Segment: d.Key.String(),
			Reason:  string(d.Reason),
			Message: d.Message,
		}
		if !d.Key.IsGlobal() {
			s.Dimensions = make(map[string]string, len(d.Key))
			for _, dim := range d.Key {
				s.Dimensions[dim.Name] = dim.Value
			}
		}
		report.Skipped = append(report.Skipped, s)
	}
	return report
}

// WriteReport writes the run report as YAML.
func WriteReport(w io.Writer, result *segment.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewReport(result)); err != nil {
		return err
	}
	return enc.Close()
}
