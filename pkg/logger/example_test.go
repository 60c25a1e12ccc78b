package logger_test

import (
	"errors"

	"github.com/wonny/tscore/backend/pkg/config"
	"github.com/wonny/tscore/backend/pkg/logger"
)

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Add cycle and security fields
	secLog := log.WithCycle("0d9a3c4e-5b7f-5a51-9e4f-2f1c7d0e8a11").WithFields(map[string]interface{}{
		"cusip": "91282CJL6",
		"kind":  "repo_spread",
	})
	secLog.Warn("observation excluded")
}

// Example_withError demonstrates error logging
func Example_withError() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	err := errors.New("database connection timeout")
	log.WithError(err).
		WithFields(map[string]interface{}{
			"retry_count": 3,
			"timeout_ms":  5000,
		}).
		Error("Connection failed after retries")
}
