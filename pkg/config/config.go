// Package config provides configuration handling for flowsweep.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	// Server configuration for the local rendering adapter
	Server ServerConfig `json:"server"`

	// Platform configuration for the host services
	Platform PlatformConfig `json:"platform"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host"`

	// Port to listen on
	Port int `json:"port"`
}

// PlatformConfig contains host platform settings
type PlatformConfig struct {
	// BaseURL is the host platform's API base URL
	BaseURL string `json:"base_url"`

	// Session is the opaque session credential supplied by the host's
	// identity layer; it is passed through unmodified on delete requests
	Session string `json:"session"`

	// PageSize is a hint only; the host decides actual page sizes
	PageSize int `json:"page_size"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	// Level is the logging level
	Level string `json:"level"` // "debug", "info", "warn", "error"

	// Format is the log format
	Format string `json:"format"` // "json", "text"
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Platform: PlatformConfig{
			PageSize: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads a .env file when present and overlays FLOWSWEEP_*
// environment variables onto the configuration.
func ApplyEnv(config *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("FLOWSWEEP_BASE_URL"); v != "" {
		config.Platform.BaseURL = v
	}
	if v := os.Getenv("FLOWSWEEP_SESSION"); v != "" {
		config.Platform.Session = v
	}
	if v := os.Getenv("FLOWSWEEP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("FLOWSWEEP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
