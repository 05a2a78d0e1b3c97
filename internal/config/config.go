// Package config loads gg settings from defaults, an optional YAML file and
// GG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"grepapp/internal/application/common/logging"
	"grepapp/internal/application/common/retry"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. GG_API_BASE_URL.
const EnvPrefix = "GG"

// Config holds the complete application configuration.
type Config struct {
	API    APIConfig         `mapstructure:"api"`
	Search SearchConfig      `mapstructure:"search"`
	Retry  retry.RetryConfig `mapstructure:"retry"`
	Log    LogConfig         `mapstructure:"log"`
	Output OutputConfig      `mapstructure:"output"`
}

// APIConfig holds search service connection settings.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
}

// SearchConfig holds pagination defaults.
type SearchConfig struct {
	MaxPages    int `mapstructure:"max_pages"`
	Concurrency int `mapstructure:"concurrency"`
	Context     int `mapstructure:"context"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig holds rendering preferences.
type OutputConfig struct {
	// Color is one of auto, always or never.
	Color string `mapstructure:"color"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "https://grep.app")
	v.SetDefault("api.timeout", "20s")
	v.SetDefault("api.user_agent", "")
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.rate_burst", 1)

	// Search defaults
	v.SetDefault("search.max_pages", 10)
	v.SetDefault("search.concurrency", 8)
	v.SetDefault("search.context", 0)

	// Retry defaults
	defaults := retry.DefaultRetryConfig()
	v.SetDefault("retry.max_retries", defaults.MaxRetries)
	v.SetDefault("retry.initial_delay", defaults.InitialDelay.String())
	v.SetDefault("retry.max_delay", defaults.MaxDelay.String())
	v.SetDefault("retry.backoff_factor", defaults.BackoffFactor)
	v.SetDefault("retry.jitter", defaults.Jitter)

	// Logging defaults
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetDefault("output.color", "auto")
}

// DefaultConfigFile returns $XDG_CONFIG_HOME/gg/config.yaml, or "" when no
// user configuration directory exists.
func DefaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gg", "config.yaml")
}

// Load prepares v and builds a Config from it. An explicit configFile must
// exist; without one, the default location is read when present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if def := DefaultConfigFile(); def != "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Dir(def))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return New(v)
}

// New decodes and validates the configuration held by v.
func New(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must have http:// or https:// scheme, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit must not be negative")
	}
	if c.API.RateBurst < 0 {
		return errors.New("api.rate_burst must not be negative")
	}

	if c.Search.MaxPages < 1 {
		return errors.New("search.max_pages must be at least 1")
	}
	if c.Search.Concurrency < 1 {
		return errors.New("search.concurrency must be at least 1")
	}
	if c.Search.Context < 0 {
		return errors.New("search.context must not be negative")
	}

	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if format := strings.ToLower(c.Log.Format); format != "json" && format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("output.color must be auto, always or never, got %q", c.Output.Color)
	}

	return nil
}

// Logging returns the logger configuration. Logs always go to stderr so
// that stdout carries only results.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format, Output: "stderr"}
}
