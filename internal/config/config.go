package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir string // base directory for the run-history database
	Port    int
	DevMode bool

	LogLevel string

	// SolverTimeLimit is the default per-lineup solve budget, used when a
	// generation request does not carry its own.
	SolverTimeLimit time.Duration

	// ValidationWorkers sizes the batch validation worker pool.
	ValidationWorkers int

	// SchedulerEnabled controls the background telemetry and maintenance jobs.
	SchedulerEnabled bool

	// HistoryRetentionDays bounds how long generation runs are kept.
	HistoryRetentionDays int
}

// Load reads configuration from environment variables, with a .env file as
// fallback when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("./data"); err == nil {
			dataDir = "./data"
		} else {
			dataDir = "../data"
		}
	}

	cfg := &Config{
		DataDir:              dataDir,
		Port:                 getEnvAsInt("PORT", 8090),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		SolverTimeLimit:      time.Duration(getEnvAsInt("SOLVER_TIME_LIMIT_MS", 10000)) * time.Millisecond,
		ValidationWorkers:    getEnvAsInt("VALIDATION_WORKERS", 8),
		SchedulerEnabled:     getEnvAsBool("SCHEDULER_ENABLED", true),
		HistoryRetentionDays: getEnvAsInt("HISTORY_RETENTION_DAYS", 90),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SolverTimeLimit <= 0 {
		return fmt.Errorf("solver time limit must be positive, got %v", c.SolverTimeLimit)
	}
	if c.ValidationWorkers <= 0 {
		return fmt.Errorf("validation workers must be positive, got %d", c.ValidationWorkers)
	}
	if c.HistoryRetentionDays <= 0 {
		return fmt.Errorf("history retention must be positive, got %d days", c.HistoryRetentionDays)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
