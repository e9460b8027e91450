package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "devflow.db", cfg.Store.DSN)
	assert.Equal(t, 5*time.Minute, cfg.Engine.StepTimeout)
	assert.Equal(t, 4, cfg.Engine.Concurrency)
	assert.Equal(t, SourceEnv, cfg.Credentials.Source)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.Model("anthropic"))
}

func TestLoader_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devflow.yaml")
	content := `
log:
  level: debug
  format: json
store:
  driver: postgres
  dsn: postgres://localhost/devflow
engine:
  step_timeout: 90s
providers:
  anthropic:
    model: claude-test
tracing:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DEVFLOW_ENGINE_CONCURRENCY", "8")
	t.Setenv("DEVFLOW_LOG_LEVEL", "warn")

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, path, loader.ConfigFileUsed())
	assert.Equal(t, "warn", cfg.Log.Level, "env overrides file")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 90*time.Second, cfg.Engine.StepTimeout)
	assert.Equal(t, 8, cfg.Engine.Concurrency)
	assert.Equal(t, "claude-test", cfg.Model("anthropic"))
	assert.Empty(t, cfg.Model("openai"))
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoader_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".devflow.yaml"),
		[]byte("store:\n  driver: memory\n"), 0o600))

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestLoader_Errors(t *testing.T) {
	_, err := NewLoader().WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	assert.Error(t, err, "explicit file must exist")

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: cassandra\n"), 0o600))
	_, err = NewLoader().WithConfigFile(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Log:         LogConfig{Level: "info", Format: "auto"},
			Store:       StoreConfig{Driver: DriverMemory},
			Engine:      EngineConfig{StepTimeout: time.Minute, Concurrency: 2},
			Credentials: CredentialsConfig{Source: SourceEnv},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "mysql without dsn", mutate: func(c *Config) { c.Store.Driver = DriverMySQL }, wantErr: "store.dsn"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Store.Driver = DriverSQLite }, wantErr: "sqlite"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "redis" }, wantErr: "store.driver"},
		{name: "zero timeout", mutate: func(c *Config) { c.Engine.StepTimeout = 0 }, wantErr: "step_timeout"},
		{name: "negative concurrency", mutate: func(c *Config) { c.Engine.Concurrency = -1 }, wantErr: "concurrency"},
		{name: "file source without path", mutate: func(c *Config) { c.Credentials.Source = SourceFile }, wantErr: "credentials.file"},
		{name: "unknown source", mutate: func(c *Config) { c.Credentials.Source = "vault" }, wantErr: "credentials.source"},
		{name: "unknown format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
