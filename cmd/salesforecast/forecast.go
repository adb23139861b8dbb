package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sartorproj/salesforecast/config"
	"github.com/sartorproj/salesforecast/export"
	"github.com/sartorproj/salesforecast/ingest"
	"github.com/sartorproj/salesforecast/segment"
	"github.com/sartorproj/salesforecast/timeseries"
)

func newForecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast monthly sales from a CSV file or database",
		Example: `  salesforecast forecast --input superstore.csv --output forecast.csv
  salesforecast forecast --input superstore.csv --dimensions Region,Category --horizon 6`,
		Args: cobra.NoArgs,
		RunE: runForecast,
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Input CSV file")
	flags.StringP("output", "o", "", "Output CSV file (default: stdout)")
	flags.Int("horizon", 0, "Months to forecast beyond the last observed month")
	flags.StringSlice("dimensions", nil, "Columns to segment by, e.g. Region,Category")
	flags.Int("workers", 0, "Segments forecast concurrently")
	flags.String("date-column", "", "Date column name")
	flags.String("value-column", "", "Sales column name")
	flags.Bool("no-yearly", false, "Disable yearly seasonality")
	flags.String("report-file", "", "Write a YAML run report to this file")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file")

	return cmd
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("input") {
		cfg.Input.Path, _ = flags.GetString("input")
	}
	if flags.Changed("output") {
		cfg.Output.Path, _ = flags.GetString("output")
	}
	if flags.Changed("horizon") {
		cfg.Forecast.Horizon, _ = flags.GetInt("horizon")
	}
	if flags.Changed("dimensions") {
		cfg.Forecast.Dimensions, _ = flags.GetStringSlice("dimensions")
	}
	if flags.Changed("workers") {
		cfg.Forecast.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("date-column") {
		cfg.Input.DateColumn, _ = flags.GetString("date-column")
	}
	if flags.Changed("value-column") {
		cfg.Input.ValueColumn, _ = flags.GetString("value-column")
	}
	if flags.Changed("no-yearly") {
		noYearly, _ := flags.GetBool("no-yearly")
		cfg.Model.YearlySeasonality = !noYearly
	}
	if flags.Changed("report-file") {
		cfg.Output.ReportPath, _ = flags.GetString("report-file")
	}
	if flags.Changed("metrics-file") {
		cfg.Output.MetricsPath, _ = flags.GetString("metrics-file")
	}
	return cfg.Validate()
}

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

func runForecast(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Level())
	ctx := cmd.Context()

	obs, err := loadObservations(ctx, cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := segment.NewMetrics(reg)

	start := time.Now()
	result, runErr := segment.New(cfg.SegmentOptions(), logger, metrics).Run(ctx, obs)
	if result == nil {
		return runErr
	}

	if cfg.Output.MetricsPath != "" {
		if err := prometheus.WriteToTextfile(cfg.Output.MetricsPath, reg); err != nil {
			logger.WithError(err).Error("Failed to write metrics")
		}
	}

	if cfg.Output.ReportPath != "" {
		if err := saveReport(cfg.Output.ReportPath, result); err != nil {
			logger.WithError(err).Error("Failed to write run report")
		}
	}

	printSummary(cmd.ErrOrStderr(), result, time.Since(start))
	if runErr != nil {
		return runErr
	}

	if cfg.Output.Path == "" {
		return export.WriteCSV(cmd.OutOrStdout(), result.Table)
	}
	if err := export.SaveCSV(result.Table, cfg.Output.Path); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"path": cfg.Output.Path,
		"rows": result.Table.Len(),
	}).Info("Forecast saved")
	return nil
}

func loadObservations(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) ([]timeseries.Observation, error) {
	if cfg.Database.URL != "" {
		pool, err := ingest.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		defer pool.Close()

		obs, err := ingest.NewPostgresSource(pool, cfg.Database.Query, cfg.Forecast.Dimensions).Load(ctx)
		if err != nil {
			return nil, err
		}
		logger.WithField("observations", len(obs)).Info("Loaded observations from database")
		return obs, nil
	}

	if cfg.Input.Path == "" {
		return nil, errors.New("no input: set --input or database.url")
	}

	opts := ingest.DefaultCSVOptions()
	opts.DateColumn = cfg.Input.DateColumn
	opts.ValueColumn = cfg.Input.ValueColumn
	opts.Dimensions = cfg.Forecast.Dimensions

	obs, report, err := ingest.LoadCSV(cfg.Input.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.Input.Path, err)
	}

	log := logger.WithFields(logrus.Fields{
		"path":        cfg.Input.Path,
		"encoding":    report.Encoding,
		"date_column": report.DateColumn,
		"rows":        report.Rows,
		"loaded":      report.Loaded,
	})
	if report.DateColumn != cfg.Input.DateColumn {
		log.Warnf("Date column %q not found, using %q", cfg.Input.DateColumn, report.DateColumn)
	}
	if report.Dropped() > 0 {
		log.WithFields(logrus.Fields{
			"dropped_dates":  report.DroppedDates,
			"dropped_values": report.DroppedValues,
		}).Warn("Dropped unparseable rows")
	} else {
		log.Info("Loaded observations")
	}
	return obs, nil
}

func saveReport(path string, result *segment.Result) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return export.WriteReport(file, result)
}

func printSummary(w io.Writer, result *segment.Result, elapsed time.Duration) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Run %s\n", result.RunID)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	first, last := result.Table.DateRange()
	fmt.Fprintf(w, "Segments forecast: %d\n", result.Table.Segments())
	fmt.Fprintf(w, "Segments skipped:  %d\n", len(result.Skipped))
	if result.Table.Len() > 0 {
		fmt.Fprintf(w, "Rows:              %d (%s to %s)\n", result.Table.Len(),
			first.Format("2006-01"), last.Format("2006-01"))
	}
	fmt.Fprintf(w, "Elapsed:           %s\n", elapsed.Round(time.Millisecond))

	if len(result.Skipped) == 0 {
		return
	}

	byReason := make(map[segment.Reason]int)
	for _, d := range result.Skipped {
		byReason[d.Reason]++
	}
	reasons := make([]string, 0, len(byReason))
	for r := range byReason {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)

	fmt.Fprintln(w, "\nSkipped segments:")
	for _, r := range reasons {
		fmt.Fprintf(w, "  %-22s %d\n", r, byReason[segment.Reason(r)])
	}
	for _, d := range result.Skipped {
		fmt.Fprintf(w, "  - %s: %s\n", d.Key, d.Message)
	}
}
