// Package config loads application settings from the environment.
// A .env file in the working directory is read first when present; the
// defaults describe the course sheet the tool was written for.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sheet sources
const (
	SourceGoogle = "google"
	SourceXLSX   = "xlsx"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	RunTimeout      time.Duration // Upper bound for one fetch -> evaluate -> write run

	// Spreadsheet Configuration
	Source            string // "google" or "xlsx"
	SpreadsheetID     string // Google spreadsheet id
	CredentialsFile   string // Service account JSON for Google Sheets
	WorkbookPath      string // Local .xlsx file when Source is "xlsx"
	DataRange         string // Header row plus student rows
	TotalClassesRange string // Free-text cell holding the number of classes
	ResultRange       string // Empty = two columns right after DataRange

	// Redis Configuration (optional, enables the run lock)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		RunTimeout:      getDurationEnv("RUN_TIMEOUT", 60*time.Second),

		Source:            strings.ToLower(getEnv("SHEET_SOURCE", SourceGoogle)),
		SpreadsheetID:     getEnv("SPREADSHEET_ID", ""),
		CredentialsFile:   getEnv("CREDENTIALS_FILE", "credentials.json"),
		WorkbookPath:      getEnv("WORKBOOK_PATH", ""),
		DataRange:         getEnv("DATA_RANGE", "engenharia_de_software!A3:F27"),
		TotalClassesRange: getEnv("TOTAL_CLASSES_RANGE", "engenharia_de_software!A2"),
		ResultRange:       getEnv("RESULT_RANGE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		LockTTL:       getDurationEnv("LOCK_TTL", 2*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks required values for the selected source
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	switch c.Source {
	case SourceGoogle:
		if c.SpreadsheetID == "" {
			errs = append(errs, errors.New("SPREADSHEET_ID is required for the google source"))
		}
	case SourceXLSX:
		if c.WorkbookPath == "" {
			errs = append(errs, errors.New("WORKBOOK_PATH is required for the xlsx source"))
		}
	default:
		errs = append(errs, fmt.Errorf("SHEET_SOURCE must be %q or %q, got %q", SourceGoogle, SourceXLSX, c.Source))
	}
	if c.DataRange == "" {
		errs = append(errs, errors.New("DATA_RANGE is required"))
	}
	if c.TotalClassesRange == "" {
		errs = append(errs, errors.New("TOTAL_CLASSES_RANGE is required"))
	}
	if c.RunTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RUN_TIMEOUT must be positive, got %v", c.RunTimeout))
	}
	if c.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_TTL must be positive, got %v", c.LockTTL))
	}
	if c.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB cannot be negative, got %d", c.RedisDB))
	}

	return errors.Join(errs...)
}

// Destination identifies the written range for locking and logs
func (c *Config) Destination() string {
	if c.Source == SourceXLSX {
		return c.WorkbookPath + ":" + c.DataRange
	}
	return c.SpreadsheetID + ":" + c.DataRange
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
