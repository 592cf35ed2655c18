package config

import (
	"fmt"
	"os"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	MarketData    MarketDataConfig
	Import        ImportConfig
	Notify        NotifyConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// MarketDataConfig configures the quote and FX provider client.
type MarketDataConfig struct {
	BaseURL            string
	APIKey             string
	RateLimitPerSecond int
	RateLimitBurst     int
}

// ImportConfig tunes the pipeline itself.
type ImportConfig struct {
	DefaultCurrency string
	// AggregateMode is "replay" or "delta"; replay recomputes positions
	// from the full transaction log after every import.
	AggregateMode string
	// CacheSweepSchedule is the cron expression for the quote/rate cache
	// janitor.
	CacheSweepSchedule string
	// ArchiveDir keeps a normalized CSV per executed import. Empty
	// disables archiving.
	ArchiveDir string
}

type NotifyConfig struct {
	ResendAPIKey string
	FromEmail    string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "trade-ledger-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		MarketData: MarketDataConfig{
			BaseURL:            getEnv("MARKET_DATA_BASE_URL", "https://api.marketdata.dev"),
			APIKey:             getEnv("MARKET_DATA_API_KEY", ""),
			RateLimitPerSecond: getEnvAsInt("MARKET_DATA_RATE_LIMIT_PER_SECOND", 5),
			RateLimitBurst:     getEnvAsInt("MARKET_DATA_RATE_LIMIT_BURST", 10),
		},
		Import: ImportConfig{
			DefaultCurrency:    getEnv("IMPORT_DEFAULT_CURRENCY", "USD"),
			AggregateMode:      getEnv("IMPORT_AGGREGATE_MODE", "replay"),
			CacheSweepSchedule: getEnv("IMPORT_CACHE_SWEEP_SCHEDULE", "0 3 * * *"),
			ArchiveDir:         getEnv("IMPORT_ARCHIVE_DIR", ""),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("RESEND_FROM_EMAIL", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Import.AggregateMode != "replay" && cfg.Import.AggregateMode != "delta" {
		return nil, fmt.Errorf("IMPORT_AGGREGATE_MODE must be replay or delta, got %q", cfg.Import.AggregateMode)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
