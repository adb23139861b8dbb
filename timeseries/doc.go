// Package timeseries provides time series data structures and monthly aggregation.
//
// The Series type holds timestamped values. Monthly series produced by
// AggregateMonthly are keyed by the first day of each calendar month (UTC)
// and are strictly increasing; months without observations are absent.
//
// # Aggregating Observations
//
// Sum raw transactions into calendar months:
//
//	obs := []timeseries.Observation{
//	    {Timestamp: t1, Value: 120.50},
//	    {Timestamp: t2, Value: 80.00},
//	}
//	monthly, err := timeseries.AggregateMonthly(obs, "global")
//	if errors.Is(err, timeseries.ErrInsufficientHistory) {
//	    // fewer than two distinct months
//	}
//
// Sums are accumulated with exact decimal arithmetic, so the result does not
// depend on the order of the input.
//
// # Month Arithmetic
//
//	start := timeseries.MonthStart(t)        // 2021-03-17 -> 2021-03-01
//	next := timeseries.AddMonths(start, 1)   // 2021-04-01
//	n := timeseries.MonthsBetween(start, next)
//
// # Basic Statistics
//
//	mean := series.Mean()
//	std := series.Std()
//	min := series.Min()
//	max := series.Max()
package timeseries
