package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence and use the STOCKPULSE_ prefix with underscores for nesting,
// e.g. STOCKPULSE_QUEUE_WORKER_COUNT=5.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STOCKPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional; only a malformed one is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults establishes the baseline configuration so the service starts
// with no environment at all: three workers, local Redis, info logging.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("queue.worker_count", 3)
	v.SetDefault("queue.pop_timeout", time.Second)
	v.SetDefault("queue.task_timeout", 2*time.Minute)
	v.SetDefault("queue.cleanup_age", time.Hour)
	v.SetDefault("queue.cleanup_interval", 10*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("provider.base_url", "https://api.marketfeed.example.com")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.timeout", 10*time.Second)

	v.SetDefault("auth.jwt_secret", "")
}
