// Package prophet implements an additive decomposition forecaster for
// monthly series.
//
// The model is y(t) = trend(t) + seasonal(t) + residual(t):
//   - trend: piecewise linear with changepoints spread over the first part
//     of the history
//   - seasonal: yearly Fourier terms of the months elapsed since the first
//     period (no weekly or daily terms; the input is monthly)
//
// Coefficients are the maximum a posteriori estimate under Gaussian priors,
// which is ridge regression with a per-coefficient penalty. Short series
// get fewer changepoints and a lower Fourier order so the number of
// coefficients stays at most half the number of observations.
//
// # Basic Usage
//
//	model, err := prophet.Fit(monthly, prophet.DefaultConfig())
//	if errors.Is(err, prophet.ErrFitFailure) {
//	    // degenerate series, e.g. constant values
//	}
//
//	points, err := model.Forecast(12)
//	for _, p := range points {
//	    fmt.Printf("%s %.2f [%.2f, %.2f]\n", p.Period.Format("2006-01"), p.Predicted, p.Lower, p.Upper)
//	}
//
// Or in one call, with no state surviving it:
//
//	points, err := prophet.FitAndForecast(monthly, prophet.DefaultHorizon, nil)
//
// # Uncertainty
//
// Interval half-widths combine the residual variance, the coefficient
// uncertainty at each point, and the variance of future trend changes.
// Future widths never decrease with distance from the last observation.
//
// # Diagnostics
//
//	summary := model.Summary()
//	fmt.Printf("AIC: %.2f, sigma: %.2f\n", summary.AIC, summary.Sigma)
//	if summary.LjungBox != nil && !summary.LjungBox.WhiteNoise(0.05) {
//	    // residuals still carry structure
//	}
//
//	components := model.Components() // trend, seasonal, residual per month
package prophet
