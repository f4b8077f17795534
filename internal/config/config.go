package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Provider ProviderConfig `mapstructure:"provider" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all HTTP-server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// QueueConfig contains the task queue and worker pool settings.
type QueueConfig struct {
	WorkerCount     int           `mapstructure:"worker_count" validate:"required,gt=0,lte=64"`
	PopTimeout      time.Duration `mapstructure:"pop_timeout"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
	CleanupAge      time.Duration `mapstructure:"cleanup_age"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RedisConfig contains the connection settings for the remote backend.
// An empty URL selects the in-memory backend without probing.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// ProviderConfig contains the market data provider settings.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig contains API authentication settings. An empty secret disables
// authentication, which is the expected mode in development.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}
