package segment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/salesforecast/prophet"
	"github.com/sartorproj/salesforecast/timeseries"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// monthly returns one observation per month starting at start, tagged with tags.
func monthly(start time.Time, values []float64, tags map[string]string) []timeseries.Observation {
	out := make([]timeseries.Observation, len(values))
	for i, v := range values {
		out[i] = timeseries.Observation{
			Timestamp: timeseries.AddMonths(start, i).AddDate(0, 0, 14),
			Value:     v,
			Tags:      tags,
		}
	}
	return out
}

func alternating(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = 100
		if i%2 == 1 {
			values[i] = 110
		}
	}
	return values
}

func trending(n int, base, slope float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = base + slope*float64(i) + float64(i%3)
	}
	return values
}

func tags(region, category string) map[string]string {
	return map[string]string{"Region": region, "Category": category}
}

func TestEnumerateGlobal(t *testing.T) {
	obs := monthly(month(2020, 1), []float64{1, 2, 3}, nil)

	segments := Enumerate(obs, nil)

	require.Len(t, segments, 1)
	assert.True(t, segments[0].Key.IsGlobal())
	assert.Len(t, segments[0].Observations, 3)
}

func TestEnumerateFirstSeenOrder(t *testing.T) {
	var obs []timeseries.Observation
	obs = append(obs, monthly(month(2020, 1), []float64{1}, tags("West", "Tech"))...)
	obs = append(obs, monthly(month(2020, 1), []float64{2}, tags("East", "Tech"))...)
	obs = append(obs, monthly(month(2020, 2), []float64{3}, tags("West", "Tech"))...)
	obs = append(obs, monthly(month(2020, 1), []float64{4}, tags("West", "Office"))...)
	obs = append(obs, monthly(month(2020, 1), []float64{5}, map[string]string{"Region": "East"})...)

	segments := Enumerate(obs, []string{"Region", "Category"})

	require.Len(t, segments, 4)
	assert.Equal(t, "Region=West,Category=Tech", segments[0].Key.String())
	assert.Equal(t, "Region=East,Category=Tech", segments[1].Key.String())
	assert.Equal(t, "Region=West,Category=Office", segments[2].Key.String())
	assert.Equal(t, "Region=East,Category=", segments[3].Key.String(), "missing tag is an empty value")

	assert.Len(t, segments[0].Observations, 2)
	assert.Equal(t, 3.0, segments[0].Observations[1].Value)
}

func TestEnumerateNoObservations(t *testing.T) {
	assert.Empty(t, Enumerate(nil, []string{"Region"}))
}

func TestRunAlternatingGlobal(t *testing.T) {
	values := alternating(24)
	obs := monthly(month(2018, 1), values, nil)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	orch := New(&Options{Horizon: 12, Model: prophet.DefaultConfig(), Workers: 2}, quietLogger(), metrics)

	result, err := orch.Run(context.Background(), obs)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.Skipped)
	require.Equal(t, 36, result.Table.Len())
	assert.Equal(t, 1, result.Table.Segments())

	for i, r := range result.Table.Rows {
		assert.Equal(t, timeseries.AddMonths(month(2018, 1), i), r.Date)
		assert.LessOrEqual(t, r.Lower, r.Predicted)
		assert.LessOrEqual(t, r.Predicted, r.Upper)
		if i < 24 {
			require.True(t, r.HasActual(), "row %d", i)
			assert.Equal(t, values[i], *r.Actual)
		} else {
			assert.False(t, r.HasActual(), "row %d", i)
		}
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SegmentsTotal.WithLabelValues(outcomeForecast)))
	assert.Equal(t, 36.0, testutil.ToFloat64(metrics.RowsTotal))
}

func TestRunSkipsShortSegments(t *testing.T) {
	var obs []timeseries.Observation
	obs = append(obs, monthly(month(2019, 1), trending(24, 100, 2), tags("East", "Furniture"))...)
	obs = append(obs, monthly(month(2019, 1), trending(24, 50, 1), tags("East", "Tech"))...)
	obs = append(obs, monthly(month(2019, 1), trending(24, 80, -1), tags("West", "Furniture"))...)
	obs = append(obs, monthly(month(2019, 6), []float64{42}, tags("West", "Tech"))...)

	logger, hook := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	orch := New(&Options{Horizon: 12, Dimensions: []string{"Region", "Category"}}, logger, metrics)

	result, err := orch.Run(context.Background(), obs)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Table.Segments())
	assert.Equal(t, 3*36, result.Table.Len())

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "Region=West,Category=Tech", result.Skipped[0].Key.String())
	assert.Equal(t, ReasonInsufficientHistory, result.Skipped[0].Reason)
	assert.NotEmpty(t, result.Skipped[0].Message)

	keys := result.Table.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "Region=East,Category=Furniture", keys[0].String())
	assert.Equal(t, "Region=East,Category=Tech", keys[1].String())
	assert.Equal(t, "Region=West,Category=Furniture", keys[2].String())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["segment"] == "Region=West,Category=Tech" {
			warned = true
			assert.Equal(t, ReasonInsufficientHistory, e.Data["reason"])
		}
	}
	assert.True(t, warned, "skipped segment should be logged at warn level")

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.SegmentsTotal.WithLabelValues(outcomeForecast)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SegmentsTotal.WithLabelValues(string(ReasonInsufficientHistory))))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.FitDuration))
}

func TestRunFitFailureIsSkipped(t *testing.T) {
	var obs []timeseries.Observation
	obs = append(obs, monthly(month(2020, 1), []float64{5, 5, 5, 5, 5, 5}, tags("North", "Flat"))...)
	obs = append(obs, monthly(month(2020, 1), trending(12, 10, 1), tags("South", "Up"))...)

	orch := New(&Options{Horizon: 3, Dimensions: []string{"Region", "Category"}}, quietLogger(), nil)

	result, err := orch.Run(context.Background(), obs)
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, ReasonFitFailure, result.Skipped[0].Reason)
	assert.Equal(t, "Region=North,Category=Flat", result.Skipped[0].Key.String())
	assert.Equal(t, 15, result.Table.Len())
}

func TestRunNonFiniteValueIsSkipped(t *testing.T) {
	var obs []timeseries.Observation
	obs = append(obs, monthly(month(2019, 1), trending(24, 100, 2), tags("East", "Tech"))...)
	obs = append(obs, monthly(month(2019, 1), []float64{1, math.NaN(), 3}, tags("West", "Tech"))...)
	obs = append(obs, monthly(month(2019, 1), []float64{4, math.Inf(1), 6}, tags("South", "Tech"))...)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	orch := New(&Options{Horizon: 12, Dimensions: []string{"Region", "Category"}, Workers: 2}, quietLogger(), metrics)

	result, err := orch.Run(context.Background(), obs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Table.Segments())
	assert.Equal(t, 36, result.Table.Len())

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "Region=West,Category=Tech", result.Skipped[0].Key.String())
	assert.Equal(t, "Region=South,Category=Tech", result.Skipped[1].Key.String())
	for _, d := range result.Skipped {
		assert.Equal(t, ReasonFitFailure, d.Reason)
		assert.Contains(t, d.Message, "non-finite")
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SegmentsTotal.WithLabelValues(string(ReasonFitFailure))))
}

func TestRunDeterministicAcrossWorkers(t *testing.T) {
	var obs []timeseries.Observation
	regions := []string{"East", "West", "Central", "South"}
	for i, r := range regions {
		obs = append(obs, monthly(month(2019, 1), trending(18+i, float64(100*(i+1)), float64(i)), tags(r, "All"))...)
	}

	run := func(workers int) *Result {
		orch := New(&Options{Horizon: 6, Dimensions: []string{"Region"}, Workers: workers}, quietLogger(), nil)
		result, err := orch.Run(context.Background(), obs)
		require.NoError(t, err)
		return result
	}

	sequential := run(1)
	parallel := run(8)

	require.Equal(t, sequential.Table.Len(), parallel.Table.Len())
	for i := range sequential.Table.Rows {
		s, p := sequential.Table.Rows[i], parallel.Table.Rows[i]
		assert.True(t, s.Segment.Equal(p.Segment), "row %d segment", i)
		assert.Equal(t, s.Date, p.Date, "row %d date", i)
		assert.Equal(t, s.Predicted, p.Predicted, "row %d predicted", i)
		assert.Equal(t, s.Lower, p.Lower, "row %d lower", i)
		assert.Equal(t, s.Upper, p.Upper, "row %d upper", i)
	}

	keys := sequential.Table.Keys()
	require.Len(t, keys, len(regions))
	for i, r := range regions {
		assert.Equal(t, r, keys[i][0].Value)
	}
}

func TestRunNoForecasts(t *testing.T) {
	obs := monthly(month(2020, 1), []float64{10}, tags("East", "Tech"))
	obs = append(obs, monthly(month(2020, 1), []float64{20}, tags("West", "Tech"))...)

	orch := New(&Options{Horizon: 12, Dimensions: []string{"Region"}}, quietLogger(), nil)

	result, err := orch.Run(context.Background(), obs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoForecastsGenerated))
	require.NotNil(t, result)
	assert.Len(t, result.Skipped, 2)
	assert.Equal(t, 0, result.Table.Len())
}

func TestRunEmptyInput(t *testing.T) {
	orch := New(nil, quietLogger(), nil)

	result, err := orch.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoForecastsGenerated)
	require.NotNil(t, result)
	require.Len(t, result.Skipped, 1)
	assert.True(t, result.Skipped[0].Key.IsGlobal())
}

func TestRunInvalidOptions(t *testing.T) {
	obs := monthly(month(2020, 1), alternating(12), nil)

	tests := []struct {
		name string
		opts *Options
	}{
		{"negative horizon", &Options{Horizon: -1}},
		{"empty dimension", &Options{Horizon: 12, Dimensions: []string{""}}},
		{"duplicate dimension", &Options{Horizon: 12, Dimensions: []string{"Region", "Region"}}},
		{"bad model", &Options{Horizon: 12, Model: &prophet.Config{IntervalWidth: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts, quietLogger(), nil).Run(context.Background(), obs)
			assert.Error(t, err)
			assert.False(t, errors.Is(err, ErrNoForecastsGenerated))
		})
	}
}

func TestRunCancelled(t *testing.T) {
	obs := monthly(month(2020, 1), alternating(24), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, quietLogger(), nil).Run(ctx, obs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ReasonInsufficientHistory, Classify(timeseries.ErrInsufficientHistory))
	assert.Equal(t, ReasonInvariantViolation, Classify(prophet.ErrInvariantViolation))
	assert.Equal(t, ReasonFitFailure, Classify(prophet.ErrFitFailure))
	assert.Equal(t, ReasonFitFailure, Classify(fmt.Errorf("wrap: %w", timeseries.ErrNonFinite)))
	assert.Equal(t, ReasonFitFailure, Classify(errors.New("boom")))
}

func TestRunLogsModelSummary(t *testing.T) {
	obs := monthly(month(2018, 1), trending(36, 500, 4), nil)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	_, err := New(&Options{Horizon: 6}, logger, nil).Run(context.Background(), obs)
	require.NoError(t, err)

	var fitted *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Model fitted" {
			fitted = e
		}
	}
	require.NotNil(t, fitted, "expected a debug entry for the fitted model")
	assert.Equal(t, "global", fitted.Data["segment"])
	assert.Equal(t, 36, fitted.Data["months"])
	assert.Contains(t, fitted.Data, "fourier_order")
	assert.Contains(t, fitted.Data, "ljung_box_p")
}
