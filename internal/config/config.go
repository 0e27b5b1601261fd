package config

import (
	"fmt"
	"os"
	"time"

	"github.com/vjranagit/scandata/pkg/storage"
)

// Config holds the application configuration
type Config struct {
	// SettingsPath points at a settings YAML file; empty uses the embedded default
	SettingsPath string      `json:"settings_path"`
	Cache        CacheConfig `json:"cache"`
	Log          LogConfig   `json:"log"`
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Enabled          bool          `json:"enabled"`
	TTL              time.Duration `json:"ttl"`
	Capacity         int           `json:"capacity"`
	CompressionLevel int           `json:"compression_level"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// DefaultConfig returns default configuration with environment overrides applied
func DefaultConfig() *Config {
	return &Config{
		SettingsPath: getEnv("SCANDATA_SETTINGS", ""),
		Cache: CacheConfig{
			Enabled:          getEnvBool("SCANDATA_CACHE_ENABLED", true),
			TTL:              getEnvDuration("SCANDATA_CACHE_TTL", 5*time.Minute),
			Capacity:         getEnvInt("SCANDATA_CACHE_CAPACITY", 256),
			CompressionLevel: getEnvInt("SCANDATA_CACHE_COMPRESSION", 1),
		},
		Log: LogConfig{
			Level:       getEnv("SCANDATA_LOG_LEVEL", "info"),
			Development: getEnvBool("SCANDATA_LOG_DEVELOPMENT", false),
		},
	}
}

// ToCacheConfig converts to storage.CacheConfig
func (c *Config) ToCacheConfig() *storage.CacheConfig {
	return &storage.CacheConfig{
		Enabled:          c.Cache.Enabled,
		TTL:              c.Cache.TTL,
		Capacity:         c.Cache.Capacity,
		CompressionLevel: c.Cache.CompressionLevel,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache ttl must be positive")
		}
		if c.Cache.Capacity < 1 {
			return fmt.Errorf("cache capacity must be at least 1")
		}
		if c.Cache.CompressionLevel < 1 || c.Cache.CompressionLevel > 4 {
			return fmt.Errorf("compression level must be between 1 and 4")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	if c.SettingsPath != "" {
		if _, err := os.Stat(c.SettingsPath); err != nil {
			return fmt.Errorf("settings file: %w", err)
		}
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
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
