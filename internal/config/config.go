// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Detection settings
	HistorySampleSize  int           // max successful logins used to derive a pattern
	DefaultSensitivity string        // default sensitivity for new principals
	DefaultThreshold   int           // default auto-block threshold (0-100)
	StoreTimeout       time.Duration // per-call timeout on external store reads/writes

	// HTTP
	RateLimitRPM int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)
}

// Defaults
const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultHistorySampleSize  = 100
	DefaultSensitivityLevel   = "medium"
	DefaultAutoBlockThreshold = 70
	DefaultStoreTimeout       = 3 * time.Second
	DefaultRateLimitRPM       = 120
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		HistorySampleSize:  getEnvInt("HISTORY_SAMPLE_SIZE", DefaultHistorySampleSize),
		DefaultSensitivity: getEnv("DEFAULT_SENSITIVITY", DefaultSensitivityLevel),
		DefaultThreshold:   getEnvInt("DEFAULT_AUTO_BLOCK_THRESHOLD", DefaultAutoBlockThreshold),
		StoreTimeout:       getEnvDuration("STORE_TIMEOUT", DefaultStoreTimeout),
		RateLimitRPM:       getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and sane
func (c *Config) Validate() error {
	if c.HistorySampleSize <= 0 {
		return fmt.Errorf("HISTORY_SAMPLE_SIZE must be positive")
	}

	if c.DefaultThreshold < 0 || c.DefaultThreshold > 100 {
		return fmt.Errorf("DEFAULT_AUTO_BLOCK_THRESHOLD must be in [0, 100]")
	}

	switch c.DefaultSensitivity {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("DEFAULT_SENSITIVITY must be one of low, medium, high")
	}

	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
