package segment

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/salesforecast/prophet"
	"github.com/sartorproj/salesforecast/reconcile"
	"github.com/sartorproj/salesforecast/timeseries"
)

// ErrNoForecastsGenerated is returned when every segment was skipped.
var ErrNoForecastsGenerated = errors.New("no forecasts generated")

// Reason classifies why a segment was skipped.
type Reason string

const (
	ReasonInsufficientHistory Reason = "insufficient_history"
	ReasonFitFailure          Reason = "fit_failure"
	ReasonInvariantViolation  Reason = "invariant_violation"
)

// Diagnostic records a skipped segment.
type Diagnostic struct {
	Key     reconcile.SegmentKey
	Reason  Reason
	Message string
}

// Outcome is the result of one segment: exactly one of Result and Err is set.
type Outcome struct {
	Key    reconcile.SegmentKey
	Result *reconcile.SegmentResult
	Err    error
}

// Options configures a run.
type Options struct {
	Dimensions []string        // Segment columns; empty means one global segment
	Horizon    int             // Future months per segment (default: 12)
	Model      *prophet.Config // Model settings shared by every segment
	Workers    int             // Concurrent segments; zero means number of CPUs
}

// DefaultOptions returns options for an unsegmented run.
func DefaultOptions() *Options {
	return &Options{
		Horizon: prophet.DefaultHorizon,
		Model:   prophet.DefaultConfig(),
		Workers: runtime.NumCPU(),
	}
}

// Result is the output of a run.
type Result struct {
	RunID    string
	Table    *reconcile.Table
	Skipped  []Diagnostic
	Outcomes []Outcome // One per segment, in enumeration order
}

// Orchestrator drives aggregation, fitting and reconciliation per segment.
type Orchestrator struct {
	opts    *Options
	logger  logrus.FieldLogger
	metrics *Metrics
}

// New creates an orchestrator. A nil logger uses the logrus standard logger;
// metrics may be nil.
func New(opts *Options, logger logrus.FieldLogger, metrics *Metrics) *Orchestrator {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *Orchestrator) validate() error {
	if o.opts.Horizon < 0 {
		return fmt.Errorf("horizon must not be negative, got %d", o.opts.Horizon)
	}
	seen := make(map[string]bool, len(o.opts.Dimensions))
	for _, d := range o.opts.Dimensions {
		if d == "" {
			return errors.New("dimension names must not be empty")
		}
		if seen[d] {
			return fmt.Errorf("duplicate dimension %q", d)
		}
		seen[d] = true
	}
	if o.opts.Model != nil {
		if err := o.opts.Model.Validate(); err != nil {
			return fmt.Errorf("invalid model config: %w", err)
		}
	}
	return nil
}

// Run forecasts every segment of obs. Segment failures are reported in
// Result.Skipped and never abort the run; the table keeps enumeration order
// regardless of which segment finishes first. If no segment succeeds the
// result is still returned together with ErrNoForecastsGenerated.
func (o *Orchestrator) Run(ctx context.Context, obs []timeseries.Observation) (*Result, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.logger.WithField("run_id", runID)

	segments := Enumerate(obs, o.opts.Dimensions)
	log.WithFields(logrus.Fields{
		"observations": len(obs),
		"segments":     len(segments),
		"dimensions":   o.opts.Dimensions,
	}).Info("Starting forecast run")

	outcomes := make([]Outcome, len(segments))

	workers := o.opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seg := range segments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = o.process(log, seg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forecast run %s: %w", runID, err)
	}

	succeeded, skipped := Split(outcomes)

	table := reconcile.NewTable(runID, o.opts.Dimensions)
	for _, r := range succeeded {
		table.Append(r)
	}
	if o.metrics != nil {
		o.metrics.RowsTotal.Add(float64(table.Len()))
	}

	result := &Result{
		RunID:    runID,
		Table:    table,
		Skipped:  skipped,
		Outcomes: outcomes,
	}

	log.WithFields(logrus.Fields{
		"forecast": len(succeeded),
		"skipped":  len(skipped),
		"rows":     table.Len(),
	}).Info("Forecast run complete")

	if len(succeeded) == 0 {
		return result, fmt.Errorf("%w: all %d segment(s) skipped", ErrNoForecastsGenerated, len(segments))
	}
	return result, nil
}

// process runs one segment end to end. It never panics on bad data; every
// failure is returned in the outcome.
func (o *Orchestrator) process(log logrus.FieldLogger, seg Segment) Outcome {
	start := time.Now()
	log = log.WithFields(logrus.Fields{
		"segment":      seg.Key.String(),
		"observations": len(seg.Observations),
	})

	out := Outcome{Key: seg.Key}

	series, err := timeseries.AggregateMonthly(seg.Observations, seg.Key.String())
	if err == nil {
		log = log.WithField("months", series.Len())
		out.Result, err = o.forecast(log, seg.Key, series)
	}
	out.Err = err

	elapsed := time.Since(start)
	log = log.WithField("duration", elapsed)

	outcome := outcomeForecast
	if err != nil {
		reason := Classify(err)
		outcome = string(reason)
		if reason == ReasonInvariantViolation {
			log.WithError(err).WithField("reason", reason).Error("Forecast output failed invariant check")
		} else {
			log.WithError(err).WithField("reason", reason).Warn("Skipping segment")
		}
	} else {
		log.Debug("Segment forecast complete")
	}

	if o.metrics != nil {
		o.metrics.SegmentsTotal.WithLabelValues(outcome).Inc()
		o.metrics.FitDuration.Observe(elapsed.Seconds())
	}

	return out
}

func (o *Orchestrator) forecast(log logrus.FieldLogger, key reconcile.SegmentKey, series *timeseries.Series) (*reconcile.SegmentResult, error) {
	model, err := prophet.Fit(series, o.opts.Model)
	if err != nil {
		return nil, err
	}

	summary := model.Summary()
	fields := logrus.Fields{
		"changepoints":  len(summary.Changepoints),
		"fourier_order": summary.FourierOrder,
		"sigma":         summary.Sigma,
		"aic":           summary.AIC,
		"durbin_watson": summary.DurbinWatson,
	}
	if summary.LjungBox != nil {
		fields["ljung_box_p"] = summary.LjungBox.PValue
	}
	log.WithFields(fields).Debug("Model fitted")

	points, err := model.Forecast(o.opts.Horizon)
	if err != nil {
		return nil, err
	}
	return reconcile.Merge(key, series, points), nil
}

// Classify maps a segment error to its diagnostic reason.
func Classify(err error) Reason {
	switch {
	case errors.Is(err, timeseries.ErrInsufficientHistory):
		return ReasonInsufficientHistory
	case errors.Is(err, prophet.ErrInvariantViolation):
		return ReasonInvariantViolation
	case errors.Is(err, timeseries.ErrNonFinite):
		return ReasonFitFailure
	default:
		return ReasonFitFailure
	}
}

// Split partitions outcomes into successful results and diagnostics,
// keeping the order of outcomes.
func Split(outcomes []Outcome) ([]*reconcile.SegmentResult, []Diagnostic) {
	var succeeded []*reconcile.SegmentResult
	var skipped []Diagnostic
	for _, o := range outcomes {
		if o.Err != nil {
			skipped = append(skipped, Diagnostic{
				Key:     o.Key,
				Reason:  Classify(o.Err),
				Message: o.Err.Error(),
			})
			continue
		}
		succeeded = append(succeeded, o.Result)
	}
	return succeeded, skipped
}
