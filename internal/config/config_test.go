package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Refresh.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 5*time.Minute, cfg.CleanupGrace())
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join(dir, "repos"), cfg.ReposDir())
	assert.Equal(t, filepath.Join(dir, ".versioned"), cfg.VersionedDir())
	assert.Equal(t, filepath.Join(dir, "registry.db"), cfg.RegistryPath())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
version: 1
refresh:
  enabled: false
  interval: 30m
cleanup:
  grace_period: 2m
  sweep_interval: 30s
jobs:
  workers: 4
  queue_depth: 32
server:
  log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.Refresh.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 2*time.Minute, cfg.CleanupGrace())
	assert.Equal(t, 30*time.Second, cfg.CleanupSweep())
	assert.Equal(t, 4, cfg.Jobs.Workers)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "refresh:\n  interval: 30m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644))

	t.Setenv("AMANHUB_REFRESH_INTERVAL", "5m")
	t.Setenv("AMANHUB_REFRESH_ENABLED", "false")
	t.Setenv("AMANHUB_JOB_WORKERS", "8")
	t.Setenv("AMANHUB_LOG_LEVEL", "warn")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval())
	assert.False(t, cfg.Refresh.Enabled)
	assert.Equal(t, 8, cfg.Jobs.Workers)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }},
		{"bad interval", func(c *Config) { c.Refresh.Interval = "soon" }},
		{"zero interval", func(c *Config) { c.Refresh.Interval = "0s" }},
		{"bad grace", func(c *Config) { c.Cleanup.GracePeriod = "whenever" }},
		{"zero workers", func(c *Config) { c.Jobs.Workers = 0 }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Paths.DataDir = dir
	cfg.Refresh.Interval = "42m"

	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 42*time.Minute, loaded.RefreshInterval())
}
