// Package config defines the explicit configuration structure passed into
// the scan orchestrator and its collaborators. All tunables carry documented
// defaults; nothing lives in mutable package globals.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kallerud/driftscan/internal/errors"
	"github.com/kallerud/driftscan/internal/logging"
)

// Default tunables. These mirror the documented defaults in the README.
const (
	DefaultPorts        = "22,80,443,3306,8080,8443"
	DefaultProbeTimeout = 1 * time.Second
	DefaultConcurrency  = 100
	DefaultWaitWindow   = 2 * time.Second
	DefaultOutputPrefix = "scan"
)

// Config represents the complete driftscan configuration.
type Config struct {
	// Scan configuration
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Output configuration
	Output OutputConfig `yaml:"output" json:"output"`

	// History configuration
	History HistoryConfig `yaml:"history" json:"history"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// ScanConfig holds scanning-related settings.
type ScanConfig struct {
	// Network is the CIDR range to scan. Empty means auto-detect the
	// local subnet.
	Network string `yaml:"network" json:"network"`

	// Interface optionally pins discovery to a named interface.
	Interface string `yaml:"interface" json:"interface"`

	// Ports is the port specification to probe on each live host.
	Ports string `yaml:"ports" json:"ports" validate:"required"`

	// ProbeTimeout bounds each individual connect attempt.
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout" validate:"gt=0"`

	// Concurrency is the hard cap on in-flight probe attempts per host.
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"gt=0"`

	// WaitWindow bounds how long discovery collects ARP replies.
	WaitWindow time.Duration `yaml:"wait_window" json:"wait_window" validate:"gt=0"`
}

// OutputConfig holds result persistence settings.
type OutputConfig struct {
	// Prefix for result files: <prefix>.json, <prefix>.csv and
	// <prefix>_changes.json.
	Prefix string `yaml:"prefix" json:"prefix" validate:"required"`

	// Baseline is an optional path to a previous result set to diff
	// against.
	Baseline string `yaml:"baseline" json:"baseline"`

	// CSV controls whether the CSV export is written alongside JSON.
	CSV bool `yaml:"csv" json:"csv"`
}

// HistoryConfig holds scan history storage settings.
type HistoryConfig struct {
	// Enabled turns on the SQLite scan history store.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path is the SQLite database file location.
	Path string `yaml:"path" json:"path"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Network:      "",
			Interface:    "",
			Ports:        DefaultPorts,
			ProbeTimeout: DefaultProbeTimeout,
			Concurrency:  DefaultConcurrency,
			WaitWindow:   DefaultWaitWindow,
		},
		Output: OutputConfig{
			Prefix: DefaultOutputPrefix,
			CSV:    true,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "driftscan.db",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, starting from defaults. A missing
// file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			"failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			"failed to parse config file", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return errors.WrapConfigError(errors.CodeValidation,
			"invalid configuration", err)
	}

	validLogLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"invalid log level", "logging.level", c.Logging.Level)
	}

	validLogFormats := map[logging.LogFormat]bool{
		logging.FormatText: true,
		logging.FormatJSON: true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"invalid log format", "logging.format", c.Logging.Format)
	}

	if c.History.Enabled && c.History.Path == "" {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"history path is required when history is enabled", "history.path", "")
	}

	return nil
}

// HistoryEnabled returns true if the scan history store should be used.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled && c.History.Path != ""
}
