// Package prophet implements an additive trend plus yearly seasonality model
// for monthly series.
package prophet

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/salesforecast/timeseries"
)

const (
	monthsPerYear = 12
	// Highest yearly harmonic observable on monthly data; its sine term is
	// zero at every whole month.
	maxMonthlyOrder = monthsPerYear / 2
	// Lower bound on the scaled noise variance so a perfect fit keeps a
	// positive definite system.
	varianceFloor = 1e-12
)

// Model is a fitted additive model. It is immutable once Fit returns.
type Model struct {
	config *Config
	name   string

	periods []time.Time
	months  []float64 // Months elapsed since the first period
	span    float64   // Months from first to last period
	values  []float64
	yScale  float64

	cpIdx        []int     // History indexes of changepoints
	changepoints []float64 // Changepoint locations in scaled time
	order        int       // Fourier order of yearly seasonality

	beta       []float64 // Coefficients on the scaled response
	sigma2     float64   // Residual variance on the scaled response
	chol       *mat.Cholesky
	fittedVals []float64
	residuals  []float64
	iterations int
}

// Fit fits the model to a monthly series. The series must contain at least
// two strictly increasing month-start periods.
func Fit(series *timeseries.Series, config *Config) (*Model, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}

	n := series.Len()
	if n < timeseries.MinMonths {
		return nil, fmt.Errorf("%w: %d month(s), need %d", timeseries.ErrInsufficientHistory, n, timeseries.MinMonths)
	}
	if err := series.ValidateMonthly(); err != nil {
		return nil, fmt.Errorf("%w: series %q: %v", ErrInvariantViolation, series.Name, err)
	}
	for _, v := range series.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fitError(series.Name, errNonFinite)
		}
	}
	if series.Variance() == 0 {
		return nil, fitError(series.Name, errConstantSeries)
	}

	m := &Model{
		config:  config,
		name:    series.Name,
		periods: append([]time.Time(nil), series.Timestamps...),
		values:  append([]float64(nil), series.Values...),
		months:  make([]float64, n),
		yScale:  series.MaxAbs(),
	}

	first := series.First()
	for i, ts := range series.Timestamps {
		m.months[i] = float64(timeseries.MonthsBetween(first, ts))
	}
	m.span = m.months[n-1]

	m.placeChangepoints()
	m.chooseOrder()

	if err := m.fitMAP(); err != nil {
		return nil, fitError(series.Name, err)
	}

	return m, nil
}

// FitAndForecast fits a model and returns len(series)+horizon points.
// No state survives the call.
func FitAndForecast(series *timeseries.Series, horizon int, config *Config) ([]Point, error) {
	m, err := Fit(series, config)
	if err != nil {
		return nil, err
	}
	return m.Forecast(horizon)
}

// budget is the maximum number of coefficients for the history length.
func (m *Model) budget() int {
	return max(2, len(m.values)/2)
}

// placeChangepoints spreads changepoints evenly over the first
// ChangepointRange of the observed history.
func (m *Model) placeChangepoints() {
	n := len(m.values)
	histSize := int(math.Floor(float64(n) * m.config.ChangepointRange))

	count := min(m.config.Changepoints, n/4, histSize-1, m.budget()-2)
	if count <= 0 {
		return
	}

	step := float64(histSize-1) / float64(count)
	for j := 1; j <= count; j++ {
		idx := int(math.Round(step * float64(j)))
		m.cpIdx = append(m.cpIdx, idx)
		m.changepoints = append(m.changepoints, m.months[idx]/m.span)
	}
}

// seasonalColumns is the number of Fourier columns for order k.
func seasonalColumns(k int) int {
	if k >= maxMonthlyOrder {
		return 2*maxMonthlyOrder - 1
	}
	return 2 * k
}

// chooseOrder picks the largest Fourier order that fits the budget left
// after the trend terms.
func (m *Model) chooseOrder() {
	if !m.config.YearlySeasonality {
		return
	}
	order := min(m.config.YearlyOrder, maxMonthlyOrder)
	room := m.budget() - 2 - len(m.changepoints)
	for order > 0 && seasonalColumns(order) > room {
		order--
	}
	m.order = order
}

func (m *Model) numParams() int {
	return 2 + len(m.changepoints) + seasonalColumns(m.order)
}

// features returns the design row for a point months after the first period.
func (m *Model) features(month float64) []float64 {
	s := month / m.span
	x := make([]float64, 0, m.numParams())
	x = append(x, 1, s)
	for _, c := range m.changepoints {
		x = append(x, math.Max(0, s-c))
	}
	for k := 1; k <= m.order; k++ {
		arg := 2 * math.Pi * float64(k) * month / monthsPerYear
		if k < maxMonthlyOrder {
			x = append(x, math.Sin(arg))
		}
		x = append(x, math.Cos(arg))
	}
	return x
}

// priorScales returns the prior standard deviation of each coefficient.
func (m *Model) priorScales() []float64 {
	scales := make([]float64, 0, m.numParams())
	scales = append(scales, m.config.TrendPriorScale, m.config.TrendPriorScale)
	for range m.changepoints {
		scales = append(scales, m.config.ChangepointPriorScale)
	}
	for i := 0; i < seasonalColumns(m.order); i++ {
		scales = append(scales, m.config.SeasonalityPriorScale)
	}
	return scales
}

// fitMAP estimates the coefficients under Gaussian priors. The penalty of
// each coefficient is sigma2/scale^2, and sigma2 is re-estimated from the
// residuals until it settles.
func (m *Model) fitMAP() error {
	n := len(m.values)
	p := m.numParams()

	x := mat.NewDense(n, p, nil)
	for i, month := range m.months {
		x.SetRow(i, m.features(month))
	}

	yData := make([]float64, n)
	floats.ScaleTo(yData, 1/m.yScale, m.values)
	y := mat.NewVecDense(n, yData)

	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	scales := m.priorScales()
	dof := float64(max(n-p, 1))

	sigma2 := math.Max(stat.Variance(yData, nil), varianceFloor)
	var (
		chol   mat.Cholesky
		beta   mat.VecDense
		fitted mat.VecDense
	)

	converged := false
	for iter := 1; iter <= m.config.MaxIterations; iter++ {
		a := mat.NewSymDense(p, nil)
		a.CopySym(&xtx)
		for j := 0; j < p; j++ {
			a.SetSym(j, j, a.At(j, j)+sigma2/(scales[j]*scales[j]))
		}

		if ok := chol.Factorize(a); !ok {
			return errNotPositiveDef
		}
		if err := chol.SolveVecTo(&beta, &xty); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return fmt.Errorf("solve normal equations: %w", err)
			}
		}

		fitted.MulVec(x, &beta)
		sse := 0.0
		for i := 0; i < n; i++ {
			r := yData[i] - fitted.AtVec(i)
			sse += r * r
		}

		next := math.Max(sse/dof, varianceFloor)
		m.iterations = iter
		if math.Abs(next-sigma2) <= m.config.Tolerance*sigma2 {
			sigma2 = next
			converged = true
			break
		}
		sigma2 = next
	}

	if !converged {
		return fmt.Errorf("%w after %d iterations", errNotConverged, m.config.MaxIterations)
	}

	m.beta = mat.Col(nil, 0, &beta)
	for _, b := range m.beta {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return errBadCoefficient
		}
	}

	// The system used for uncertainty must match the final sigma2.
	a := mat.NewSymDense(p, nil)
	a.CopySym(&xtx)
	for j := 0; j < p; j++ {
		a.SetSym(j, j, a.At(j, j)+sigma2/(scales[j]*scales[j]))
	}
	var final mat.Cholesky
	if ok := final.Factorize(a); !ok {
		return errNotPositiveDef
	}
	m.chol = &final
	m.sigma2 = sigma2

	m.fittedVals = make([]float64, n)
	m.residuals = make([]float64, n)
	for i := 0; i < n; i++ {
		m.fittedVals[i] = fitted.AtVec(i) * m.yScale
		m.residuals[i] = m.values[i] - m.fittedVals[i]
	}

	return nil
}

// Residuals returns the in-sample residuals.
func (m *Model) Residuals() []float64 {
	result := make([]float64, len(m.residuals))
	copy(result, m.residuals)
	return result
}

// FittedValues returns the in-sample predictions.
func (m *Model) FittedValues() []float64 {
	result := make([]float64, len(m.fittedVals))
	copy(result, m.fittedVals)
	return result
}

// Components is the additive decomposition of the history.
type Components struct {
	Periods  []time.Time
	Trend    []float64
	Seasonal []float64
	Residual []float64
}

// Components splits the fitted history into trend, seasonal and residual parts.
func (m *Model) Components() *Components {
	n := len(m.values)
	c := &Components{
		Periods:  append([]time.Time(nil), m.periods...),
		Trend:    make([]float64, n),
		Seasonal: make([]float64, n),
		Residual: make([]float64, n),
	}
	nTrend := 2 + len(m.changepoints)
	for i, month := range m.months {
		x := m.features(month)
		c.Trend[i] = floats.Dot(x[:nTrend], m.beta[:nTrend]) * m.yScale
		c.Seasonal[i] = floats.Dot(x[nTrend:], m.beta[nTrend:]) * m.yScale
		c.Residual[i] = m.values[i] - c.Trend[i] - c.Seasonal[i]
	}
	return c
}
