package prophet

import (
	"errors"
	"fmt"
)

// DefaultHorizon is the number of future months forecast when none is given.
const DefaultHorizon = 12

// Config holds the model settings for a single fit.
type Config struct {
	YearlySeasonality     bool    // Model yearly seasonality (default: true)
	YearlyOrder           int     // Maximum Fourier order of yearly seasonality (default: 10, capped at 6 for monthly data)
	Changepoints          int     // Maximum number of trend changepoints (default: 25)
	ChangepointRange      float64 // Share of history in which changepoints are placed (default: 0.8)
	ChangepointPriorScale float64 // Prior scale of changepoint slope deltas (default: 0.05)
	SeasonalityPriorScale float64 // Prior scale of Fourier coefficients (default: 10)
	TrendPriorScale       float64 // Prior scale of base intercept and slope (default: 5)
	IntervalWidth         float64 // Coverage of the uncertainty interval (default: 0.80)
	MaxIterations         int     // Noise variance re-estimation limit (default: 50)
	Tolerance             float64 // Relative noise variance change treated as converged (default: 1e-6)
}

// DefaultConfig returns the default model configuration.
func DefaultConfig() *Config {
	return &Config{
		YearlySeasonality:     true,
		YearlyOrder:           10,
		Changepoints:          25,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		TrendPriorScale:       5,
		IntervalWidth:         0.80,
		MaxIterations:         50,
		Tolerance:             1e-6,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.YearlyOrder < 0:
		return fmt.Errorf("yearly order must be non-negative, got %d", c.YearlyOrder)
	case c.Changepoints < 0:
		return fmt.Errorf("changepoints must be non-negative, got %d", c.Changepoints)
	case c.ChangepointRange <= 0 || c.ChangepointRange > 1:
		return fmt.Errorf("changepoint range must be in (0, 1], got %g", c.ChangepointRange)
	case c.ChangepointPriorScale <= 0 || c.SeasonalityPriorScale <= 0 || c.TrendPriorScale <= 0:
		return errors.New("prior scales must be positive")
	case c.IntervalWidth <= 0 || c.IntervalWidth >= 1:
		return fmt.Errorf("interval width must be in (0, 1), got %g", c.IntervalWidth)
	case c.MaxIterations < 1:
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	case c.Tolerance <= 0:
		return fmt.Errorf("tolerance must be positive, got %g", c.Tolerance)
	}
	return nil
}
