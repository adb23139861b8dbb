// Package ingest turns transaction exports into observations for the
// forecasting engine.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/sartorproj/salesforecast/timeseries"
)

// ErrColumnNotFound is returned when a required column is missing from the header.
var ErrColumnNotFound = errors.New("column not found")

// Encodings reported in Report.Encoding.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	DateColumn  string   // Column name for dates (default: "Order Date")
	ValueColumn string   // Column name for sales values (default: "Sales")
	Dimensions  []string // Columns copied into observation tags
	DateFormat  string   // Layout tried before the built-in list (optional)
	Delimiter   rune     // Field delimiter (default: ',')
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		DateColumn:  "Order Date",
		ValueColumn: "Sales",
		Delimiter:   ',',
	}
}

// Report summarises a load.
type Report struct {
	Encoding      string
	DateColumn    string // Column actually used for dates
	Rows          int    // Data rows read
	Loaded        int
	DroppedDates  int // Rows whose date could not be parsed
	DroppedValues int // Rows whose value could not be parsed
}

// Dropped returns the number of rows that did not become observations.
func (r *Report) Dropped() int {
	return r.DroppedDates + r.DroppedValues
}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"1/2/06",
	"02-Jan-2006",
	"Jan 2, 2006",
	"2006-01",
}

// LoadCSV loads observations from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) ([]timeseries.Observation, *Report, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return ReadCSV(file, opts)
}

// ReadCSV loads observations from r. Input that is not valid UTF-8 is
// decoded as Latin-1. When the configured date column is absent, the first
// header containing "date" (any case) is used instead.
func ReadCSV(r io.Reader, opts *CSVOptions) ([]timeseries.Observation, *Report, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{Encoding: EncodingUTF8}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		data, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, nil, fmt.Errorf("decode latin-1: %w", err)
		}
		report.Encoding = EncodingLatin1
	}

	reader := csv.NewReader(bytes.NewReader(data))
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, ok := cols[h]; !ok {
			cols[h] = i
		}
		header[i] = h
	}

	dateIdx, ok := cols[opts.DateColumn]
	if !ok {
		dateIdx = -1
		for i, h := range header {
			if strings.Contains(strings.ToLower(h), "date") {
				dateIdx = i
				break
			}
		}
		if dateIdx == -1 {
			return nil, nil, fmt.Errorf("%w: date column %q", ErrColumnNotFound, opts.DateColumn)
		}
	}
	report.DateColumn = header[dateIdx]

	valueIdx, ok := cols[opts.ValueColumn]
	if !ok {
		return nil, nil, fmt.Errorf("%w: value column %q", ErrColumnNotFound, opts.ValueColumn)
	}

	dimIdx := make([]int, len(opts.Dimensions))
	for i, d := range opts.Dimensions {
		idx, ok := cols[d]
		if !ok {
			return nil, nil, fmt.Errorf("%w: dimension column %q", ErrColumnNotFound, d)
		}
		dimIdx[i] = idx
	}

	layouts := dateLayouts
	if opts.DateFormat != "" {
		layouts = append([]string{opts.DateFormat}, dateLayouts...)
	}

	var obs []timeseries.Observation
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		report.Rows++

		ts, ok := parseDate(field(record, dateIdx), layouts)
		if !ok {
			report.DroppedDates++
			continue
		}
		value, ok := parseValue(field(record, valueIdx))
		if !ok {
			report.DroppedValues++
			continue
		}

		o := timeseries.Observation{Timestamp: ts, Value: value}
		if len(dimIdx) > 0 {
			o.Tags = make(map[string]string, len(dimIdx))
			for i, idx := range dimIdx {
				o.Tags[opts.Dimensions[i]] = field(record, idx)
			}
		}
		obs = append(obs, o)
	}
	report.Loaded = len(obs)

	return obs, report, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseDate(s string, layouts []string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseValue(s string) (float64, bool) {
	switch s {
	case "", "NA", "NaN", "null":
		return 0, false
	}
	s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
