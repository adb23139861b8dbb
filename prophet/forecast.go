package prophet

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/salesforecast/timeseries"
)

// Point is a forecast for one monthly period.
type Point struct {
	Period    time.Time
	Predicted float64
	Lower     float64
	Upper     float64
}

// Width returns the size of the uncertainty interval.
func (p Point) Width() float64 {
	return p.Upper - p.Lower
}

// Forecast returns predictions for every historical period followed by
// horizon contiguous future months.
func (m *Model) Forecast(horizon int) ([]Point, error) {
	if horizon < 0 {
		return nil, errors.New("horizon must be non-negative")
	}

	z := distuv.UnitNormal.Quantile((1 + m.config.IntervalWidth) / 2)
	nHist := len(m.periods)
	points := make([]Point, 0, nHist+horizon)

	for i, period := range m.periods {
		pred, sd := m.predict(m.months[i])
		points = append(points, Point{
			Period:    period,
			Predicted: pred,
			Lower:     pred - z*sd,
			Upper:     pred + z*sd,
		})
	}

	last := m.periods[nHist-1]
	halfWidth := points[nHist-1].Predicted - points[nHist-1].Lower
	for h := 1; h <= horizon; h++ {
		pred, sd := m.predict(m.span + float64(h))
		// Uncertainty never shrinks further into the future.
		halfWidth = math.Max(halfWidth, z*sd)
		points = append(points, Point{
			Period:    timeseries.AddMonths(last, h),
			Predicted: pred,
			Lower:     pred - halfWidth,
			Upper:     pred + halfWidth,
		})
	}

	if err := checkInvariants(m.name, points, nHist, horizon); err != nil {
		return nil, err
	}
	return points, nil
}

// predict returns the point prediction and its standard deviation, both on
// the original scale.
func (m *Model) predict(month float64) (float64, float64) {
	x := m.features(month)
	pred := floats.Dot(x, m.beta)

	variance := m.sigma2*(1+leverage(m.chol, x)) + m.trendVariance(month)
	return pred * m.yScale, math.Sqrt(variance) * m.yScale
}

// leverage returns x' A^-1 x for the factorized posterior precision A.
// A condition warning still yields a usable solution; any other solve error
// gives NaN so the forecast fails its invariant check.
func leverage(chol *mat.Cholesky, x []float64) float64 {
	xv := mat.NewVecDense(len(x), x)
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, xv); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return math.NaN()
		}
	}
	return math.Max(mat.Dot(xv, &sol), 0)
}

// trendVariance is the variance added by slope changes that may occur after
// the end of history. Changes arrive at the historical changepoint rate with
// Laplace sizes whose scale is the mean absolute fitted delta.
func (m *Model) trendVariance(month float64) float64 {
	nCP := len(m.changepoints)
	if month <= m.span || nCP == 0 {
		return 0
	}

	meanAbs := 0.0
	for _, d := range m.beta[2 : 2+nCP] {
		meanAbs += math.Abs(d)
	}
	meanAbs /= float64(nCP)

	dist := (month - m.span) / m.span
	rate := float64(nCP)
	return rate * 2 * meanAbs * meanAbs * dist * dist * dist / 3
}

func checkInvariants(name string, points []Point, nHist, horizon int) error {
	if len(points) != nHist+horizon {
		return fmt.Errorf("%w: series %q: got %d points, want %d", ErrInvariantViolation, name, len(points), nHist+horizon)
	}
	for i, p := range points {
		for _, v := range []float64{p.Predicted, p.Lower, p.Upper} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: series %q: non-finite value at %s (predicted=%g lower=%g upper=%g)",
					ErrInvariantViolation, name, p.Period.Format("2006-01"), p.Predicted, p.Lower, p.Upper)
			}
		}
		if p.Lower > p.Predicted || p.Predicted > p.Upper {
			return fmt.Errorf("%w: series %q: bounds out of order at %s (lower=%g predicted=%g upper=%g)",
				ErrInvariantViolation, name, p.Period.Format("2006-01"), p.Lower, p.Predicted, p.Upper)
		}
		if i == 0 {
			continue
		}
		prev := points[i-1].Period
		if !prev.Before(p.Period) {
			return fmt.Errorf("%w: series %q: period %s does not follow %s",
				ErrInvariantViolation, name, p.Period.Format("2006-01"), prev.Format("2006-01"))
		}
		if i >= nHist && !timeseries.AddMonths(prev, 1).Equal(p.Period) {
			return fmt.Errorf("%w: series %q: gap in forecast between %s and %s",
				ErrInvariantViolation, name, prev.Format("2006-01"), p.Period.Format("2006-01"))
		}
	}
	return nil
}
