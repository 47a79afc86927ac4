package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Supported values for DATABASE_DRIVER
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseDriver       string
	DatabaseURL          string
	LogLevel             string
	LogFormat            string
	Port                 string
	PrometheusPort       string
	TelegramToken        string
	TelegramWebhookURL   string
	AuthSecret           string
	AuthIssuer           string
	ListID               string
	Locale               string
	SnapshotPollInterval time.Duration
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		DatabaseDriver:     getEnvOrDefault("DATABASE_DRIVER", DriverPostgres),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "text"),
		Port:               getEnvOrDefault("PORT", "8080"),
		PrometheusPort:     getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
		AuthIssuer:         getEnvOrDefault("AUTH_ISSUER", "shoppingbot"),
		ListID:             getEnvOrDefault("SHOPPING_LIST_ID", "main"),
		Locale:             getEnvOrDefault("LOCALE", "es"),
	}

	interval, err := time.ParseDuration(getEnvOrDefault("SNAPSHOT_POLL_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("SNAPSHOT_POLL_INTERVAL is not a duration: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("SNAPSHOT_POLL_INTERVAL must be positive")
	}
	cfg.SnapshotPollInterval = interval

	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	// Required environment variables
	if cfg.AuthSecret = os.Getenv("AUTH_SECRET"); cfg.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET environment variable is required")
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
