package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATA_DIR", "PORT", "DEV_MODE", "LOG_LEVEL",
		"SOLVER_TIME_LIMIT_MS", "VALIDATION_WORKERS",
		"SCHEDULER_ENABLED", "HISTORY_RETENTION_DAYS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.SolverTimeLimit)
	assert.Equal(t, 8, cfg.ValidationWorkers)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, 90, cfg.HistoryRetentionDays)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/tmp/raceday-test")
	t.Setenv("PORT", "9999")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SOLVER_TIME_LIMIT_MS", "2500")
	t.Setenv("VALIDATION_WORKERS", "4")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("HISTORY_RETENTION_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/raceday-test", cfg.DataDir)
	assert.Equal(t, 9999, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2500*time.Millisecond, cfg.SolverTimeLimit)
	assert.Equal(t, 4, cfg.ValidationWorkers)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, 7, cfg.HistoryRetentionDays)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")
	t.Setenv("VALIDATION_WORKERS", "many")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, 8, cfg.ValidationWorkers)
}

func TestValidate_Rejects(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"zero time limit", func(c *Config) { c.SolverTimeLimit = 0 }},
		{"zero workers", func(c *Config) { c.ValidationWorkers = 0 }},
		{"zero retention", func(c *Config) { c.HistoryRetentionDays = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Port:                 8090,
				SolverTimeLimit:      10 * time.Second,
				ValidationWorkers:    8,
				HistoryRetentionDays: 90,
			}
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
