// Package config loads the reqllm CLI configuration from an optional YAML file and
// REQLLM_-prefixed environment variables using Viper.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	Provider  ProviderConfig  `mapstructure:"provider"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ProviderConfig describes the chat-completion endpoint.
type ProviderConfig struct {
	// Name is the provider prefix model references must carry (e.g. "openai" in "openai:gpt-4o-mini").
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	// APIKey is read from REQLLM_PROVIDER_API_KEY or OPENAI_API_KEY; keep it out of files.
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// RateLimitConfig configures client-side request pacing. RequestsPerSecond 0 disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// BreakerConfig configures the transport circuit breaker.
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level"`
	// Format is text or json.
	Format string `mapstructure:"format"`
	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Exporter is stdout or noop.
	Exporter string `mapstructure:"exporter"`
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"text", "json"}
	validExporters  = []string{"", "noop", "stdout"}
)

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	if c.Provider.Name == "" {
		errs = append(errs, "provider.name must not be empty")
	}
	if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("provider.base_url %q is not an absolute URL", c.Provider.BaseURL))
	}
	if c.Provider.Timeout < 0 {
		errs = append(errs, "provider.timeout must not be negative")
	}
	if c.Provider.MaxBodyBytes < 0 {
		errs = append(errs, "provider.max_body_bytes must not be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, "rate_limit.requests_per_second must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, "rate_limit.burst must be at least 1 when rate limiting is enabled")
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Sprintf("log.level %q must be one of %s", c.Log.Level, strings.Join(validLogLevels, ", ")))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Sprintf("log.format %q must be one of %s", c.Log.Format, strings.Join(validLogFormats, ", ")))
	}
	if c.Tracing.Enabled && !slices.Contains(validExporters, c.Tracing.Exporter) {
		errs = append(errs, fmt.Sprintf("tracing.exporter %q must be stdout or noop", c.Tracing.Exporter))
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
