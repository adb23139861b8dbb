// Package stats provides residual diagnostics for fitted forecasting models.
//
// # Autocorrelation
//
//	acf := stats.ACF(residuals, 12)
//	significant := stats.SignificantLags(acf, stats.ConfidenceBound(len(residuals)))
//
// # Residual Tests
//
// Test residuals for remaining autocorrelation:
//
//	// Ljung-Box test; H0: residuals are white noise
//	lb := stats.LjungBox(residuals, 12, nParams)
//	if lb.WhiteNoise(0.05) {
//	    // no structure left in the residuals
//	}
//
//	// Durbin-Watson statistic
//	d, ok := stats.DurbinWatson(residuals)
package stats
