// Package config loads devflow settings from defaults, an optional
// .devflow.yaml file, DEVFLOW_* environment variables and bound CLI flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the full devflow configuration.
type Config struct {
	Log         LogConfig                 `mapstructure:"log"`
	Store       StoreConfig               `mapstructure:"store"`
	Engine      EngineConfig              `mapstructure:"engine"`
	Credentials CredentialsConfig         `mapstructure:"credentials"`
	Providers   map[string]ProviderConfig `mapstructure:"providers"`
	Metrics     MetricsConfig             `mapstructure:"metrics"`
	Tracing     TracingConfig             `mapstructure:"tracing"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects the workflow store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// EngineConfig tunes workflow execution.
type EngineConfig struct {
	StepTimeout time.Duration `mapstructure:"step_timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

// CredentialsConfig says where provider API keys come from.
type CredentialsConfig struct {
	Source string `mapstructure:"source"`
	File   string `mapstructure:"file"`
}

// ProviderConfig overrides the model used for one provider.
type ProviderConfig struct {
	Model string `mapstructure:"model"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// TracingConfig enables span emission.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Credential sources.
const (
	SourceEnv  = "env"
	SourceFile = "file"
)

// Model returns the configured model name for a provider, or "" to use
// the adapter's default.
func (c *Config) Model(providerID string) string {
	if c.Providers == nil {
		return ""
	}
	return c.Providers[providerID].Model
}

// Validate checks the values that cannot be caught by decoding.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverMySQL, DriverPostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, mysql, postgres", c.Store.Driver))
	}
	if c.Store.Driver == DriverSQLite && strings.TrimSpace(c.Store.DSN) == "" {
		errs = append(errs, errors.New("store.dsn must name the sqlite database file"))
	}

	if c.Engine.StepTimeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.step_timeout must be positive, got %s", c.Engine.StepTimeout))
	}
	if c.Engine.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("engine.concurrency must not be negative, got %d", c.Engine.Concurrency))
	}

	switch c.Credentials.Source {
	case SourceEnv:
	case SourceFile:
		if strings.TrimSpace(c.Credentials.File) == "" {
			errs = append(errs, errors.New("credentials.file is required when credentials.source is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("credentials.source %q is not one of env, file", c.Credentials.Source))
	}

	switch strings.ToLower(c.Log.Format) {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of auto, text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}
