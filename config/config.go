// Package config loads run settings from defaults, an optional YAML file
// and SALESFORECAST_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/sartorproj/salesforecast/prophet"
	"github.com/sartorproj/salesforecast/segment"
)

// EnvPrefix is prepended to every environment override, e.g.
// SALESFORECAST_FORECAST_HORIZON.
const EnvPrefix = "SALESFORECAST"

// Config is the full application configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Model    ModelConfig    `mapstructure:"model"`
	Input    InputConfig    `mapstructure:"input"`
	Database DatabaseConfig `mapstructure:"database"`
	Output   OutputConfig   `mapstructure:"output"`
}

// ForecastConfig controls segmentation, horizon and parallelism.
type ForecastConfig struct {
	Horizon    int      `mapstructure:"horizon"`
	Dimensions []string `mapstructure:"dimensions"`
	Workers    int      `mapstructure:"workers"`
}

// ModelConfig mirrors prophet.Config.
type ModelConfig struct {
	YearlySeasonality     bool    `mapstructure:"yearly_seasonality"`
	YearlyOrder           int     `mapstructure:"yearly_order"`
	Changepoints          int     `mapstructure:"changepoints"`
	ChangepointRange      float64 `mapstructure:"changepoint_range"`
	ChangepointPriorScale float64 `mapstructure:"changepoint_prior_scale"`
	SeasonalityPriorScale float64 `mapstructure:"seasonality_prior_scale"`
	TrendPriorScale       float64 `mapstructure:"trend_prior_scale"`
	IntervalWidth         float64 `mapstructure:"interval_width"`
	MaxIterations         int     `mapstructure:"max_iterations"`
	Tolerance             float64 `mapstructure:"tolerance"`
}

// InputConfig describes the CSV input file.
type InputConfig struct {
	Path        string `mapstructure:"path"`
	DateColumn  string `mapstructure:"date_column"`
	ValueColumn string `mapstructure:"value_column"`
}

// DatabaseConfig selects the PostgreSQL source when URL is set.
type DatabaseConfig struct {
	URL   string `mapstructure:"url"`
	Query string `mapstructure:"query"`
}

// OutputConfig names the forecast, report and metrics destinations.
type OutputConfig struct {
	Path        string `mapstructure:"path"`
	ReportPath  string `mapstructure:"report_path"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// Load reads the configuration. When path is empty, salesforecast.yaml is
// looked up in ./configs and the working directory and may be absent; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("salesforecast")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	model := prophet.DefaultConfig()

	v.SetDefault("log_level", "info")

	// Forecast
	v.SetDefault("forecast.horizon", prophet.DefaultHorizon)
	v.SetDefault("forecast.dimensions", []string{})
	v.SetDefault("forecast.workers", runtime.NumCPU())

	// Model
	v.SetDefault("model.yearly_seasonality", model.YearlySeasonality)
	v.SetDefault("model.yearly_order", model.YearlyOrder)
	v.SetDefault("model.changepoints", model.Changepoints)
	v.SetDefault("model.changepoint_range", model.ChangepointRange)
	v.SetDefault("model.changepoint_prior_scale", model.ChangepointPriorScale)
	v.SetDefault("model.seasonality_prior_scale", model.SeasonalityPriorScale)
	v.SetDefault("model.trend_prior_scale", model.TrendPriorScale)
	v.SetDefault("model.interval_width", model.IntervalWidth)
	v.SetDefault("model.max_iterations", model.MaxIterations)
	v.SetDefault("model.tolerance", model.Tolerance)

	// Input
	v.SetDefault("input.path", "")
	v.SetDefault("input.date_column", "Order Date")
	v.SetDefault("input.value_column", "Sales")

	// Database
	v.SetDefault("database.url", "")
	v.SetDefault("database.query", "")

	// Output
	v.SetDefault("output.path", "")
	v.SetDefault("output.report_path", "")
	v.SetDefault("output.metrics_path", "")
}

// Validate checks values that cannot be caught by decoding.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Forecast.Horizon < 0 {
		return fmt.Errorf("forecast horizon must not be negative, got %d", c.Forecast.Horizon)
	}
	if c.Forecast.Workers < 0 {
		return fmt.Errorf("forecast workers must not be negative, got %d", c.Forecast.Workers)
	}
	if err := c.Model.Prophet().Validate(); err != nil {
		return fmt.Errorf("invalid model config: %w", err)
	}
	if c.Input.ValueColumn == "" {
		return errors.New("input value column must not be empty")
	}
	if c.Database.URL != "" && c.Database.Query == "" {
		return errors.New("database query is required when a database url is set")
	}
	return nil
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Prophet converts the model section to a forecaster config.
func (m ModelConfig) Prophet() *prophet.Config {
	return &prophet.Config{
		YearlySeasonality:     m.YearlySeasonality,
		YearlyOrder:           m.YearlyOrder,
		Changepoints:          m.Changepoints,
		ChangepointRange:      m.ChangepointRange,
		ChangepointPriorScale: m.ChangepointPriorScale,
		SeasonalityPriorScale: m.SeasonalityPriorScale,
		TrendPriorScale:       m.TrendPriorScale,
		IntervalWidth:         m.IntervalWidth,
		MaxIterations:         m.MaxIterations,
		Tolerance:             m.Tolerance,
	}
}

// SegmentOptions returns the orchestrator options for this configuration.
func (c *Config) SegmentOptions() *segment.Options {
	return &segment.Options{
		Dimensions: append([]string(nil), c.Forecast.Dimensions...),
		Horizon:    c.Forecast.Horizon,
		Model:      c.Model.Prophet(),
		Workers:    c.Forecast.Workers,
	}
}
