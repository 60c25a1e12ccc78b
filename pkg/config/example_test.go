package config_test

import (
	"fmt"

	"github.com/wonny/tscore/backend/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Scoring config: %s\n", cfg.Scoring.ConfigPath)
	fmt.Printf("Schedule: %s\n", cfg.Scoring.Schedule)
	fmt.Printf("DB configured: %v\n", cfg.HasDatabase())
}
