package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tcmartin/flowsweep/pkg/platform"
)

// Config represents the CLI configuration
type Config struct {
	BaseURL string `json:"base_url"`
	Session string `json:"session"`
}

// loginCmd stores the host coordinates after probing the access gate.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the host base URL and session credential",
	Run: func(cmd *cobra.Command, args []string) {
		if baseURL == "" {
			fmt.Print("Base URL: ")
			fmt.Scanln(&baseURL)
		}
		if session == "" {
			fmt.Print("Session credential: ")
			fmt.Scanln(&session)
		}
		if baseURL == "" || session == "" {
			fmt.Println("Error: Base URL and session credential are required")
			os.Exit(1)
		}

		client := platform.NewClient(baseURL)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		allowed, err := client.HasAccess(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if !allowed {
			fmt.Println("Error: This session does not have access to flow management")
			os.Exit(1)
		}

		if err := saveConfig(Config{BaseURL: baseURL, Session: session}); err != nil {
			fmt.Printf("Warning: Failed to save config: %v\n", err)
			return
		}
		fmt.Println("Logged in successfully")
	},
}

// loadConfig loads the CLI configuration
func loadConfig() {
	// If a config path is specified, use it
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".flowsweep", "cli-config.json")
		}
	}

	// If the config file doesn't exist, return
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Printf("Warning: Failed to read config file: %v\n", err)
		return
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		fmt.Printf("Warning: Failed to parse config file: %v\n", err)
		return
	}

	// Set values if not explicitly provided
	if baseURL == "" {
		baseURL = config.BaseURL
	}
	if session == "" {
		session = config.Session
	}
}

// saveConfig saves the CLI configuration
func saveConfig(config Config) error {
	// If no config path is specified, use the default
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir := filepath.Join(home, ".flowsweep")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "cli-config.json")
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
