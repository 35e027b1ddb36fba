package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultConfigName = "reqllm"
	defaultConfigType = "yaml"
	envPrefix         = "REQLLM"
)

// Load reads configuration in priority order: environment variables (REQLLM_ prefix,
// dots become underscores, e.g. REQLLM_PROVIDER_BASE_URL), the config file, defaults.
// An empty path searches ./reqllm.yaml and $HOME/.config/reqllm/reqllm.yaml; a missing
// file is fine then. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(defaultConfigType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/reqllm")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("provider.api_key", envPrefix+"_PROVIDER_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, &Error{Op: "bind", Err: err}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &Error{Op: "read", Err: fmt.Errorf("read config file: %w", err)}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Op: "unmarshal", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.name", "openai")
	v.SetDefault("provider.base_url", "https://api.openai.com/v1")
	v.SetDefault("provider.timeout", "60s")
	v.SetDefault("provider.max_body_bytes", 10<<20)

	v.SetDefault("rate_limit.requests_per_second", 0)
	v.SetDefault("rate_limit.burst", 1)

	v.SetDefault("breaker.enabled", false)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.interval", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "noop")
}
