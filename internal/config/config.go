// Package config provides configuration management functionality.
//
// Configuration is loaded once from environment variables (and an optional
// .env file) at process startup. There is no settings database in this
// system — the network's tunable parameters (clock preset, narrator
// endpoint) live here or in the clock's own persisted state, not behind a
// runtime credentials UI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir       string // Base directory for core.db and ledger.db (always absolute)
	Port          int    // HTTP server port
	DevMode       bool   // Development mode flag (disables response compression)
	LogLevel      string // Log level (debug, info, warn, error)
	ClockPreset   string // Default Network Clock preset applied at startup
	NarratorURL   string // Optional external narrator endpoint; empty disables it
	NarratorToken string // Optional bearer token for the narrator endpoint
}

// Load reads configuration from environment variables.
//
// dataDirOverride - Optional CLI flag override for the data directory
// (takes highest priority over DB_DIR and the default).
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("DB_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("HTTP_PORT", 8001),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ClockPreset:   getEnv("CLOCK_DEFAULT_PRESET", "realtime"),
		NarratorURL:   getEnv("NARRATOR_URL", ""),
		NarratorToken: getEnv("NARRATOR_API_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present. The narrator
// endpoint is optional by design (the Summarizer falls back to a
// deterministic template when unset), so there's nothing to reject there.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.Port)
	}
	return nil
}

// getEnv retrieves an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean with a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
