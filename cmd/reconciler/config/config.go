// Package config manages application configuration for the reconciler CLI.
//
// Configuration is resolved in precedence order: command-line flags, then
// environment variables (RECONCILER_ prefix), then the optional config file,
// then built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/rehza97/billing-reconciler/internal/anomaly"
	"github.com/rehza97/billing-reconciler/internal/classifier"
	"github.com/rehza97/billing-reconciler/internal/kpi"
	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/internal/reconciler"
	"github.com/rehza97/billing-reconciler/internal/reporter"
	"github.com/rehza97/billing-reconciler/pkg/errors"
	"github.com/rehza97/billing-reconciler/pkg/logger"
)

// Config represents the complete application configuration.
type Config struct {
	Classification ClassificationConfig `mapstructure:"classification"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Output         OutputConfig         `mapstructure:"output"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// ClassificationConfig controls bucket assignment and record-level findings.
type ClassificationConfig struct {
	// ReferenceYear anchors the current/previous/advance split. Zero means
	// "use the reconciliation current year".
	ReferenceYear int `mapstructure:"reference_year"`

	// SiegeAllowList lists the raw organization spellings accepted for
	// headquarters rows.
	SiegeAllowList []string `mapstructure:"siege_allow_list"`
}

// ReconciliationConfig controls the join and the derived operational flags.
type ReconciliationConfig struct {
	// CurrentYear anchors the outside-fiscal-year and
	// outside-normal-operations flags. Zero means the wall-clock year.
	CurrentYear int `mapstructure:"current_year"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format              string `mapstructure:"format"`
	File                string `mapstructure:"file"`
	IncludeMatchedPairs bool   `mapstructure:"include_matched_pairs"`
	IncludeMissingKeys  bool   `mapstructure:"include_missing_keys"`
	IncludeAnomalies    bool   `mapstructure:"include_anomalies"`
	MaxAnomalies        int    `mapstructure:"max_anomalies"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from viper's resolved state.
func LoadConfig() (*Config, error) {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", nil, err).
			WithSuggestion("check the config file syntax and field names")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("classification.reference_year", 0)
	viper.SetDefault("classification.siege_allow_list", classifier.DefaultConfig().SiegeAllowList)

	viper.SetDefault("reconciliation.current_year", 0)

	viper.SetDefault("output.format", "console")
	viper.SetDefault("output.include_matched_pairs", false)
	viper.SetDefault("output.include_missing_keys", true)
	viper.SetDefault("output.include_anomalies", true)
	viper.SetDefault("output.max_anomalies", 20)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if c.Classification.ReferenceYear < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "classification.reference_year", c.Classification.ReferenceYear, nil).
			WithSuggestion("use a four-digit year or omit for the current year")
	}
	if c.Reconciliation.CurrentYear < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "reconciliation.current_year", c.Reconciliation.CurrentYear, nil).
			WithSuggestion("use a four-digit year or omit for the wall-clock year")
	}
	if !reporter.OutputFormat(c.Output.Format).IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output.format", c.Output.Format, nil).
			WithSuggestion("use one of: console, json, csv")
	}

	level := logger.Level(strings.ToLower(c.Logging.Level))
	switch level {
	case logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel:
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "logging.level", c.Logging.Level, nil).
			WithSuggestion("use one of: debug, info, warn, error")
	}

	format := logger.Format(strings.ToLower(c.Logging.Format))
	switch format {
	case logger.TextFormat, logger.JSONFormat:
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "logging.format", c.Logging.Format, nil).
			WithSuggestion("use one of: text, json")
	}

	return nil
}

// ClassifierConfig builds the classification engine configuration.
func (c *Config) ClassifierConfig() *classifier.Config {
	cfg := classifier.DefaultConfig()
	if len(c.Classification.SiegeAllowList) > 0 {
		cfg.SiegeAllowList = c.Classification.SiegeAllowList
	}
	return cfg
}

// AnomalyConfig builds the anomaly detector configuration.
func (c *Config) AnomalyConfig() *anomaly.Config {
	return anomaly.DefaultConfig()
}

// ReconcilerConfig builds the reconciliation engine configuration.
func (c *Config) ReconcilerConfig() *reconciler.Config {
	return &reconciler.Config{CurrentYear: c.Reconciliation.CurrentYear}
}

// ReportConfig builds the report generator configuration.
func (c *Config) ReportConfig() *reporter.ReportConfig {
	return &reporter.ReportConfig{
		Format:              reporter.OutputFormat(c.Output.Format),
		IncludeMatchedPairs: c.Output.IncludeMatchedPairs,
		IncludeMissingKeys:  c.Output.IncludeMissingKeys,
		IncludeAnomalies:    c.Output.IncludeAnomalies,
		MaxAnomalies:        c.Output.MaxAnomalies,
	}
}

// LoggerConfig builds the logger configuration.
func (c *Config) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.Level(strings.ToLower(c.Logging.Level))
	cfg.Format = logger.Format(strings.ToLower(c.Logging.Format))
	return cfg
}

// LoadObjectives reads a JSON objectives file mapping organization names (or
// the "Overall" sentinel) to revenue and collection targets.
func LoadObjectives(path string) (kpi.Objectives, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}

	var objectives kpi.Objectives
	if err := json.Unmarshal(data, &objectives); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", err).
			WithSuggestion(`use a JSON object: {"Overall": {"revenue_objective": "1000", "collection_objective": "900"}}`)
	}

	return objectives, nil
}

// LoadPreviousSummary reads a prior-period KPI summary from a JSON file, as
// written by a previous run's JSON report.
func LoadPreviousSummary(path string) (*models.KPISummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}

	var summary models.KPISummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", err).
			WithSuggestion("pass the summary section of a previous JSON report")
	}

	return &summary, nil
}

// String returns a human-readable summary of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{reference_year: %d, current_year: %d, output: %s, log: %s/%s}",
		c.Classification.ReferenceYear,
		c.Reconciliation.CurrentYear,
		c.Output.Format,
		c.Logging.Level,
		c.Logging.Format)
}
