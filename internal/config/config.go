package config

import (
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Storage
	DBPath      string
	SnapshotDir string

	// Default alert thresholds (percentages, ascending) applied to
	// budgets created without an explicit threshold list.
	DefaultAlertThresholds []int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DBPath:      getEnv("DB_PATH", "fintrack.db"),
		SnapshotDir: getEnv("SNAPSHOT_DIR", "snapshots"),
	}

	config.DefaultAlertThresholds = parseThresholds(getEnv("DEFAULT_ALERT_THRESHOLDS", "75,90,100"))

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// parseThresholds parses a comma-separated percentage list, dropping
// invalid or non-positive entries and returning the rest in ascending
// order. An empty result falls back to 75,90,100.
func parseThresholds(raw string) []int {
	var thresholds []int
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v <= 0 {
			continue
		}
		thresholds = append(thresholds, v)
	}
	if len(thresholds) == 0 {
		return []int{75, 90, 100}
	}
	sort.Ints(thresholds)
	return thresholds
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
