// Package salesforecast produces monthly sales forecasts with uncertainty
// bounds, optionally per business segment, from raw transaction records.
//
// Each segment is modeled independently with an additive piecewise-linear
// trend plus yearly Fourier seasonality, fitted as a MAP regression.
//
// # Quick Start
//
// Forecast a single series:
//
//	series, _ := timeseries.AggregateMonthly(observations, "sales")
//	points, _ := prophet.FitAndForecast(series, 12, nil)
//
// Forecast every Region x Category combination:
//
//	opts := segment.DefaultOptions()
//	opts.Dimensions = []string{"Region", "Category"}
//	result, err := segment.New(opts, logger, nil).Run(ctx, observations)
//	_ = export.WriteCSV(os.Stdout, result.Table)
//
// # Packages
//
//   - timeseries: Monthly series and aggregation of observations
//   - prophet: Trend and seasonality model, forecasts and intervals
//   - reconcile: Joining actuals with forecasts into output tables
//   - segment: Per-segment orchestration, diagnostics and metrics
//   - stats: Residual diagnostics (ACF, Ljung-Box, Durbin-Watson)
//   - ingest: CSV and PostgreSQL observation sources
//   - export: CSV output
//   - config: Layered configuration
//
// The salesforecast command in cmd/salesforecast wires these together.
//
// # References
//
//   - Taylor, S.J., & Letham, B. (2018). Forecasting at Scale. The American Statistician
//   - Hyndman, R.J., & Athanasopoulos, G. (2021). Forecasting: Principles and Practice
package salesforecast
