// Package config loads the mapping layer's settings from the environment.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultStoreURL is the local graph store endpoint used when NEO4J_URL is
// not set.
const DefaultStoreURL = "http://localhost:7474/db/data/"

// Config holds all mapping layer configuration.
type Config struct {
	// StoreURL is the graph store base URL. Its scheme selects the
	// registered store driver.
	StoreURL string `validate:"required,uri"`

	// LogLevel controls the verbosity of the injected logger.
	LogLevel string `validate:"oneof=debug info warn error"`
}

// FromEnv loads configuration from environment variables, applying
// defaults, and validates it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		StoreURL: getEnv("NEO4J_URL", DefaultStoreURL),
		LogLevel: getEnv("GRAPHMODEL_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its declared constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// NewLogger builds a zap logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
