// Package config loads the amanhub configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-host configuration file looked up under the
// data directory.
const ConfigFileName = "amanhub.yaml"

// Config is the complete amanhub configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Refresh RefreshConfig `yaml:"refresh" json:"refresh"`
	Cleanup CleanupConfig `yaml:"cleanup" json:"cleanup"`
	Jobs    JobsConfig    `yaml:"jobs" json:"jobs"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// PathsConfig locates the on-disk state.
type PathsConfig struct {
	// DataDir is the root under which clones, snapshots, the registry
	// database, logs, and the daemon lock live.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// RefreshConfig controls the refresh daemon.
type RefreshConfig struct {
	// Enabled gates the whole daemon.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Interval is the per-repository refresh cadence, e.g. "10m".
	Interval string `yaml:"interval" json:"interval"`
	// Watch enables fsnotify-based eager refresh.
	Watch bool `yaml:"watch" json:"watch"`
}

// CleanupConfig controls deferred snapshot deletion.
type CleanupConfig struct {
	// GracePeriod is how long a superseded snapshot survives before
	// deletion, e.g. "5m". In-flight readers finish within this window.
	GracePeriod string `yaml:"grace_period" json:"grace_period"`
	// SweepInterval is how often the cleanup queue is drained.
	SweepInterval string `yaml:"sweep_interval" json:"sweep_interval"`
}

// JobsConfig sizes the background job pool.
type JobsConfig struct {
	Workers    int `yaml:"workers" json:"workers"`
	QueueDepth int `yaml:"queue_depth" json:"queue_depth"`
}

// ServerConfig holds daemon-level settings.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Interval: "10m",
			Watch:    false,
		},
		Cleanup: CleanupConfig{
			GracePeriod:   "5m",
			SweepInterval: "1m",
		},
		Jobs: JobsConfig{
			Workers:    2,
			QueueDepth: 16,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".amanhub"
	}
	return filepath.Join(home, ".amanhub")
}

// Load builds the effective configuration: defaults, then the YAML file
// under dir (if present), then AMANHUB_* environment overrides. An empty
// dir means the default data directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()
	if dir != "" {
		cfg.Paths.DataDir = dir
	}

	path := filepath.Join(cfg.Paths.DataDir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies AMANHUB_* environment variable overrides.
// Environment always wins over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AMANHUB_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("AMANHUB_REFRESH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Refresh.Enabled = b
		}
	}
	if v := os.Getenv("AMANHUB_REFRESH_INTERVAL"); v != "" {
		c.Refresh.Interval = v
	}
	if v := os.Getenv("AMANHUB_REFRESH_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Refresh.Watch = b
		}
	}
	if v := os.Getenv("AMANHUB_CLEANUP_GRACE"); v != "" {
		c.Cleanup.GracePeriod = v
	}
	if v := os.Getenv("AMANHUB_JOB_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Jobs.Workers = n
		}
	}
	if v := os.Getenv("AMANHUB_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate checks value ranges and duration syntax.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if _, err := time.ParseDuration(c.Refresh.Interval); err != nil {
		return fmt.Errorf("refresh.interval %q: %w", c.Refresh.Interval, err)
	}
	if d, _ := time.ParseDuration(c.Refresh.Interval); d <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %q", c.Refresh.Interval)
	}
	if _, err := time.ParseDuration(c.Cleanup.GracePeriod); err != nil {
		return fmt.Errorf("cleanup.grace_period %q: %w", c.Cleanup.GracePeriod, err)
	}
	if _, err := time.ParseDuration(c.Cleanup.SweepInterval); err != nil {
		return fmt.Errorf("cleanup.sweep_interval %q: %w", c.Cleanup.SweepInterval, err)
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1, got %d", c.Jobs.Workers)
	}
	if c.Jobs.QueueDepth < 1 {
		return fmt.Errorf("jobs.queue_depth must be at least 1, got %d", c.Jobs.QueueDepth)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be one of debug/info/warn/error, got %q", c.Server.LogLevel)
	}
	return nil
}

// RefreshInterval returns the parsed refresh cadence. Call after Validate.
func (c *Config) RefreshInterval() time.Duration {
	d, _ := time.ParseDuration(c.Refresh.Interval)
	return d
}

// CleanupGrace returns the parsed snapshot grace period.
func (c *Config) CleanupGrace() time.Duration {
	d, _ := time.ParseDuration(c.Cleanup.GracePeriod)
	return d
}

// CleanupSweep returns the parsed cleanup sweep interval.
func (c *Config) CleanupSweep() time.Duration {
	d, _ := time.ParseDuration(c.Cleanup.SweepInterval)
	return d
}

// ReposDir is where golden-repository clones live.
func (c *Config) ReposDir() string {
	return filepath.Join(c.Paths.DataDir, "repos")
}

// VersionedDir is where published snapshots and alias pointers live.
func (c *Config) VersionedDir() string {
	return filepath.Join(c.Paths.DataDir, ".versioned")
}

// RegistryPath is the sqlite database holding tracked repos, refresh
// tracking, and run history.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Paths.DataDir, "registry.db")
}

// LogDir is where rotated daemon logs are written.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.DataDir, "logs")
}

// LockPath is the single-instance daemon lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "daemon.lock")
}

// WriteYAML persists the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
