// Package config loads and validates the OpenLaunch configuration file. The
// file is YAML; every field has a working default so a missing file yields a
// usable development configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openlaunch/openlaunch/pkg/telemetry"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "openlaunch.yaml"

// Config is the root configuration of the launch binary.
type Config struct {
	// ProjectsRoot is the directory containing one subdirectory per project.
	ProjectsRoot string `yaml:"projectsRoot" validate:"required"`

	Store    StoreConfig    `yaml:"store"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path"`

	MaxOpenConns int `yaml:"maxOpenConns" validate:"gte=0"`
	MaxIdleConns int `yaml:"maxIdleConns" validate:"gte=0"`
}

// WorkflowConfig tunes workflow execution.
type WorkflowConfig struct {
	// StepTimeout bounds each workflow step.
	StepTimeout time.Duration `yaml:"stepTimeout" validate:"gte=0"`

	// AllowRetry controls optimistic filesystem retries in recovery.
	AllowRetry bool `yaml:"allowRetry"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	Output string `yaml:"output"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listenAddress"`
	Path          string `yaml:"path"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate" validate:"gte=0,lte=1"`
	Insecure     bool    `yaml:"insecure"`
}

var configValidator = validator.New()

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		ProjectsRoot: "projects",
		Store: StoreConfig{
			Path:         "openlaunch.db",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Workflow: WorkflowConfig{
			StepTimeout: 30 * time.Second,
			AllowRetry:  true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9090",
			Path:          "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "stdout",
			SamplingRate: 1.0,
			Insecure:     true,
		},
	}
}

// Load reads the configuration at path, layered over the defaults. A missing
// file at the default path is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("field %s fails constraint %s", first.Namespace(), first.Tag())
		}
		return err
	}
	return nil
}

// AbsProjectsRoot resolves the projects root to an absolute path.
func (c *Config) AbsProjectsRoot() (string, error) {
	return filepath.Abs(c.ProjectsRoot)
}

// Telemetry maps the file configuration onto the telemetry bundle config.
func (c *Config) Telemetry(serviceVersion string) *telemetry.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = serviceVersion

	if c.Log.Level != "" {
		tcfg.Logging.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		tcfg.Logging.Format = c.Log.Format
	}
	if c.Log.Output != "" {
		tcfg.Logging.Output = c.Log.Output
	}

	tcfg.Metrics.Enabled = c.Metrics.Enabled
	if c.Metrics.ListenAddress != "" {
		tcfg.Metrics.ListenAddress = c.Metrics.ListenAddress
	}
	if c.Metrics.Path != "" {
		tcfg.Metrics.Path = c.Metrics.Path
	}

	tcfg.Tracing.Enabled = c.Tracing.Enabled
	if c.Tracing.Exporter != "" {
		tcfg.Tracing.Exporter = c.Tracing.Exporter
	}
	tcfg.Tracing.Endpoint = c.Tracing.Endpoint
	if c.Tracing.SamplingRate > 0 {
		tcfg.Tracing.SamplingRate = c.Tracing.SamplingRate
	}
	tcfg.Tracing.Insecure = c.Tracing.Insecure

	return tcfg
}
