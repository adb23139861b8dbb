package prophet

import (
	"math"
	"time"

	"github.com/sartorproj/salesforecast/stats"
)

// Summary describes a fitted model.
type Summary struct {
	Series       string
	NObs         int
	NParams      int
	Changepoints []time.Time
	FourierOrder int
	Coefficients []float64 // On the scaled response
	Sigma        float64   // Residual standard deviation, original scale
	Iterations   int
	LogLik       float64
	AIC          float64
	BIC          float64
	LjungBox     *stats.LjungBoxResult // nil for fewer than 10 observations

	ResidualACF     []float64 // Lags 0..min(12, n/2); nil for an exact fit
	SignificantLags []int     // Lags outside the 95% white-noise bound
	DurbinWatson    float64   // 0 when undefined
}

// Summary returns a summary of the fitted model.
func (m *Model) Summary() *Summary {
	n := len(m.values)
	k := m.numParams() + 1 // coefficients + noise variance

	changepoints := make([]time.Time, len(m.cpIdx))
	for i, idx := range m.cpIdx {
		changepoints[i] = m.periods[idx]
	}

	sse := 0.0
	for _, r := range m.residuals {
		sse += r * r
	}
	variance := m.sigma2 * m.yScale * m.yScale

	// Gaussian log-likelihood at the estimated noise variance
	nf := float64(n)
	logLik := -nf/2*math.Log(2*math.Pi) - nf/2*math.Log(variance) - sse/(2*variance)

	lags := min(monthsPerYear, n/2)
	acf := stats.ACF(m.residuals, lags)
	dw, _ := stats.DurbinWatson(m.residuals)

	return &Summary{
		Series:       m.name,
		NObs:         n,
		NParams:      m.numParams(),
		Changepoints: changepoints,
		FourierOrder: m.order,
		Coefficients: append([]float64(nil), m.beta...),
		Sigma:        math.Sqrt(variance),
		Iterations:   m.iterations,
		LogLik:       logLik,
		AIC:          -2*logLik + 2*float64(k),
		BIC:          -2*logLik + float64(k)*math.Log(nf),
		LjungBox:     stats.LjungBox(m.residuals, lags, m.numParams()),

		ResidualACF:     acf,
		SignificantLags: stats.SignificantLags(acf, stats.ConfidenceBound(n)),
		DurbinWatson:    dw,
	}
}
