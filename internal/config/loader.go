package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes environment overrides, e.g. DEVFLOW_STORE_DRIVER.
const DefaultEnvPrefix = "DEVFLOW"

// Loader reads configuration from all sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a loader with its own viper instance.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper uses v, so CLI flags bound to it take precedence.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v, envPrefix: DefaultEnvPrefix}
}

// WithConfigFile sets an explicit config file. A missing explicit file is
// an error, unlike the search path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix overrides DefaultEnvPrefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// ConfigFileUsed reports the file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load merges, decodes and validates configuration.
// Precedence (highest to lowest):
//  1. CLI flags bound to the viper instance
//  2. DEVFLOW_* environment variables
//  3. .devflow.yaml in the working directory, then ~/.config/devflow/config.yaml
//  4. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".devflow")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "devflow"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("store.driver", DriverSQLite)
	l.v.SetDefault("store.dsn", "devflow.db")

	l.v.SetDefault("engine.step_timeout", "5m")
	l.v.SetDefault("engine.concurrency", 4)

	l.v.SetDefault("credentials.source", SourceEnv)
	l.v.SetDefault("credentials.file", "")

	l.v.SetDefault("providers.anthropic.model", "")
	l.v.SetDefault("providers.openai.model", "")
	l.v.SetDefault("providers.google.model", "")

	l.v.SetDefault("metrics.addr", "")
	l.v.SetDefault("tracing.enabled", false)
}
