package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port           string
	MaxUploadBytes int64

	// Normalized-table cache
	CacheSize            int
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	// Comparison presentation
	TopClients int

	// Annual goal. The fallback progress is reported only when the owner's
	// records are absent from a snapshot, and the response flags it as such.
	GoalOwner            string
	GoalTarget           float64
	GoalFallbackProgress float64
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 32<<20),

		CacheSize:            getEnvInt("CACHE_SIZE", 16),
		CacheTTL:             getEnvDuration("CACHE_TTL", 30*time.Minute),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),

		TopClients: getEnvInt("TOP_CLIENTS", 10),

		GoalOwner:            getEnv("GOAL_OWNER", ""),
		GoalTarget:           getEnvFloat("GOAL_TARGET", 0),
		GoalFallbackProgress: getEnvFloat("GOAL_FALLBACK_PROGRESS", 0),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.MaxUploadBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	}

	// Validate cache configuration
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	}

	if c.TopClients < 1 {
		errors = append(errors, fmt.Sprintf("invalid top clients %d: must be at least 1", c.TopClients))
	}

	// Validate goal configuration
	if c.GoalTarget < 0 {
		errors = append(errors, fmt.Sprintf("invalid goal target %v: must not be negative", c.GoalTarget))
	}
	if c.GoalFallbackProgress < 0 {
		errors = append(errors, fmt.Sprintf("invalid goal fallback progress %v: must not be negative", c.GoalFallbackProgress))
	}
	if c.GoalTarget > 0 && c.GoalOwner == "" {
		errors = append(errors, "GOAL_OWNER is required when GOAL_TARGET is set")
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// GoalConfigured reports whether the annual-goal endpoint is active.
func (c *Config) GoalConfigured() bool {
	return c.GoalOwner != "" && c.GoalTarget > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
