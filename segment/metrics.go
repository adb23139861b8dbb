package segment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for SegmentsTotal.
const (
	outcomeForecast = "forecast"
)

// Metrics holds the Prometheus collectors for forecast runs.
type Metrics struct {
	SegmentsTotal *prometheus.CounterVec
	FitDuration   prometheus.Histogram
	RowsTotal     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SegmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesforecast_segments_total",
				Help: "Number of segments processed, by outcome",
			},
			[]string{"outcome"},
		),
		FitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "salesforecast_fit_duration_seconds",
			Help:    "Time spent aggregating, fitting and forecasting one segment",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		RowsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "salesforecast_rows_total",
			Help: "Number of forecast table rows produced",
		}),
	}
}
