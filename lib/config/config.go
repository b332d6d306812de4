// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/workerlog/lib/fnapi"
)

// EnvironmentVariable names the variable Load reads.
const EnvironmentVariable = "WORKERLOG_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Log formats accepted by LogConfig.Format.
const (
	FormatJSON = "json"
	FormatText = "text"
	// FormatAuto selects text on a terminal and JSON otherwise.
	FormatAuto = "auto"
)

// Config is the complete bridge configuration.
type Config struct {
	Environment Environment     `yaml:"environment"`
	Worker      WorkerConfig    `yaml:"worker"`
	Transport   TransportConfig `yaml:"transport"`
	Capture     CaptureConfig   `yaml:"capture"`
	Log         LogConfig       `yaml:"log"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// WorkerConfig identifies the worker and the endpoints it was handed.
type WorkerConfig struct {
	// ID is sent to the collector as worker_id.
	ID string `yaml:"id"`

	// LoggingEndpoint is the collector's gRPC target. Empty disables
	// log shipping; the worker still runs.
	LoggingEndpoint string `yaml:"logging_endpoint"`

	// ControlEndpoint is passed through to the worker process.
	ControlEndpoint string `yaml:"control_endpoint"`
}

// TransportConfig tunes the log stream.
type TransportConfig struct {
	// Compression is one of none, gzip, zstd, lz4.
	Compression string `yaml:"compression"`
}

// CaptureConfig selects which standard streams are captured.
type CaptureConfig struct {
	Stdout bool `yaml:"stdout"`
	Stderr bool `yaml:"stderr"`
}

// LogConfig configures the bridge's own logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is json, text, or auto.
	Format string `yaml:"format"`
}

// Overrides holds the fields an environment section may replace.
// Empty strings and nil pointers leave the base value alone.
type Overrides struct {
	Worker    *WorkerConfig    `yaml:"worker,omitempty"`
	Transport *TransportConfig `yaml:"transport,omitempty"`
	Capture   *CaptureOverride `yaml:"capture,omitempty"`
	Log       *LogConfig       `yaml:"log,omitempty"`
}

// CaptureOverride uses pointers so that an override can turn capture
// off without being mistaken for an absent value.
type CaptureOverride struct {
	Stdout *bool `yaml:"stdout,omitempty"`
	Stderr *bool `yaml:"stderr,omitempty"`
}

// Default returns the base configuration every file is merged into.
func Default() *Config {
	return &Config{
		Environment: Development,
		Transport: TransportConfig{
			Compression: fnapi.CompressionNone,
		},
		Capture: CaptureConfig{
			Stdout: true,
			Stderr: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatAuto,
		},
	}
}

// Load reads the file named by WORKERLOG_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a workerlog config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path over the defaults, applies
// the matching environment section, and expands variables.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// Resolve loads from path when non-empty, else from WORKERLOG_CONFIG
// when set, else returns Default.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	return Default(), nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			// Production logs are read by machines.
			overrides = &Overrides{Log: &LogConfig{Format: FormatJSON}}
		}
	}
	if overrides == nil {
		return
	}

	if worker := overrides.Worker; worker != nil {
		setIfNonEmpty(&c.Worker.ID, worker.ID)
		setIfNonEmpty(&c.Worker.LoggingEndpoint, worker.LoggingEndpoint)
		setIfNonEmpty(&c.Worker.ControlEndpoint, worker.ControlEndpoint)
	}
	if transport := overrides.Transport; transport != nil {
		setIfNonEmpty(&c.Transport.Compression, transport.Compression)
	}
	if capture := overrides.Capture; capture != nil {
		if capture.Stdout != nil {
			c.Capture.Stdout = *capture.Stdout
		}
		if capture.Stderr != nil {
			c.Capture.Stderr = *capture.Stderr
		}
	}
	if log := overrides.Log; log != nil {
		setIfNonEmpty(&c.Log.Level, log.Level)
		setIfNonEmpty(&c.Log.Format, log.Format)
	}
}

func setIfNonEmpty(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	c.Worker.ID = expandVars(c.Worker.ID)
	c.Worker.LoggingEndpoint = expandVars(c.Worker.LoggingEndpoint)
	c.Worker.ControlEndpoint = expandVars(c.Worker.ControlEndpoint)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} with the variable's value and
// ${VAR:-default} with the value or, if unset or empty, the default.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{FormatJSON, FormatText, FormatAuto}
)

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]Environment{Development, Staging, Production}, c.Environment) {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if !fnapi.ValidCompression(c.Transport.Compression) {
		errs = append(errs, fmt.Errorf("transport.compression must be one of: none, gzip, zstd, lz4 (got %q)", c.Transport.Compression))
	}
	if !slices.Contains(validLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v (got %q)", validLevels, c.Log.Level))
	}
	if !slices.Contains(validFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v (got %q)", validFormats, c.Log.Format))
	}
	if c.Worker.LoggingEndpoint != "" && !c.Capture.Stdout && !c.Capture.Stderr {
		errs = append(errs, errors.New("capture: a logging endpoint is set but neither stdout nor stderr is captured"))
	}

	return errors.Join(errs...)
}
