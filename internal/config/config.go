package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/moabualruz/ricecoder-sub010/internal/executor"
)

// Config represents the complete ricecoder configuration
type Config struct {
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Conflicts ConflictsConfig `mapstructure:"conflicts"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Project   ProjectConfig   `mapstructure:"project"`
}

// ExecutorConfig controls how phases are executed
type ExecutorConfig struct {
	// MaxConcurrency is the maximum number of tasks running at once.
	// 0 means the available hardware parallelism.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// TimeoutMs is the per-task timeout in milliseconds (default: 30000)
	TimeoutMs int `mapstructure:"timeout_ms"`
	// Verbose logs every task start and finish at info level
	Verbose bool `mapstructure:"verbose"`
}

// ConflictsConfig controls recommendation conflict detection
type ConflictsConfig struct {
	// Enabled runs conflict detection after every run (default: true)
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the minimum level written: debug, info, warn or error
	Level string `mapstructure:"level"`
	// Dir is where ricecoder.log is written. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Enabled serves /metrics while a run is in progress
	Enabled bool `mapstructure:"enabled"`
	// Addr is the listen address of the metrics server (default: ":9090")
	Addr string `mapstructure:"addr"`
}

// ProjectConfig describes the analyzed project
type ProjectConfig struct {
	// Root is the project directory used when a plan does not name one
	Root string `mapstructure:"root"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			MaxConcurrency: 0,
			TimeoutMs:      int(executor.DefaultTimeout / time.Millisecond),
			Verbose:        false,
		},
		Conflicts: ConflictsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Project: ProjectConfig{
			Root: ".",
		},
	}
}

// Timeout returns the per-task timeout as a Duration
func (c *ExecutorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ExecutorConfig converts the executor section into an executor.Config,
// resolving a zero MaxConcurrency to the hardware parallelism.
func (c *Config) ExecutorConfig() executor.Config {
	n := c.Executor.MaxConcurrency
	if n == 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return executor.Config{
		MaxConcurrency: n,
		Timeout:        c.Executor.Timeout(),
		Verbose:        c.Executor.Verbose,
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Executor defaults
	viper.SetDefault("executor.max_concurrency", defaults.Executor.MaxConcurrency)
	viper.SetDefault("executor.timeout_ms", defaults.Executor.TimeoutMs)
	viper.SetDefault("executor.verbose", defaults.Executor.Verbose)

	// Conflict detection defaults
	viper.SetDefault("conflicts.enabled", defaults.Conflicts.Enabled)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)

	// Project defaults
	viper.SetDefault("project.root", defaults.Project.Root)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ricecoder")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ricecoder"
	}
	return filepath.Join(home, ".config", "ricecoder")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
