package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults verifies that Load produces a working configuration with
// no environment at all.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err, "Load() should succeed with defaults only")
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 3, cfg.Queue.WorkerCount)
	assert.Equal(t, time.Second, cfg.Queue.PopTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Queue.TaskTimeout)
	assert.Equal(t, time.Hour, cfg.Queue.CleanupAge)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.NotEmpty(t, cfg.Provider.BaseURL)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

// TestLoadEnvironmentOverrides verifies that STOCKPULSE_ environment
// variables take precedence over defaults.
func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("STOCKPULSE_SERVER_PORT", "9090")
	t.Setenv("STOCKPULSE_SERVER_LOG_LEVEL", "debug")
	t.Setenv("STOCKPULSE_QUEUE_WORKER_COUNT", "7")
	t.Setenv("STOCKPULSE_QUEUE_TASK_TIMEOUT", "30s")
	t.Setenv("STOCKPULSE_REDIS_URL", "redis://redis.internal:6380/1")
	t.Setenv("STOCKPULSE_PROVIDER_BASE_URL", "https://quotes.example.org")
	t.Setenv("STOCKPULSE_AUTH_JWT_SECRET", "thisisasecretkeythatis32charslong!!")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 7, cfg.Queue.WorkerCount)
	assert.Equal(t, 30*time.Second, cfg.Queue.TaskTimeout)
	assert.Equal(t, "redis://redis.internal:6380/1", cfg.Redis.URL)
	assert.Equal(t, "https://quotes.example.org", cfg.Provider.BaseURL)
	assert.Equal(t, "thisisasecretkeythatis32charslong!!", cfg.Auth.JWTSecret)
}

// TestLoadValidation verifies that invalid settings are rejected rather than
// silently accepted.
func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port out of range", key: "STOCKPULSE_SERVER_PORT", value: "70000"},
		{name: "bad log level", key: "STOCKPULSE_SERVER_LOG_LEVEL", value: "verbose"},
		{name: "too many workers", key: "STOCKPULSE_QUEUE_WORKER_COUNT", value: "500"},
		{name: "short jwt secret", key: "STOCKPULSE_AUTH_JWT_SECRET", value: "tooshort"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
