package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"

	"github.com/FACorreiaa/transaction-importer/pkg/money"
	"github.com/FACorreiaa/transaction-importer/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Import        ImportConfig
	Observability ObservabilityConfig
	Logging       LoggingConfig
	Currency      CurrencyConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type ImportConfig struct {
	Storage     storage.StorageType
	InboxDir    string
	GCSBucket   string
	GCSPrefix   string
	Schedule    string // robfig/cron spec, e.g. "@every 1m"
	Timeout     time.Duration
	Concurrency int
	Delimiter   rune
	HeaderLines int
	Hints       bool
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type LoggingConfig struct {
	Format string // json or text
	Level  string
}

type CurrencyConfig struct {
	Code string // ISO-4217 code used when printing amounts
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnvAsInt("POSTGRES_PORT", 5432),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:        getEnv("POSTGRES_DB", "transactions"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:        getEnvAsInt("POSTGRES_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("POSTGRES_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("POSTGRES_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getEnvAsDuration("POSTGRES_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Import: ImportConfig{
			Storage:     storage.StorageType(getEnv("IMPORT_STORAGE", string(storage.StorageTypeLocal))),
			InboxDir:    getEnv("IMPORT_INBOX_DIR", "./inbox"),
			GCSBucket:   getEnv("IMPORT_GCS_BUCKET", ""),
			GCSPrefix:   getEnv("IMPORT_GCS_PREFIX", ""),
			Schedule:    getEnv("IMPORT_SCHEDULE", "@every 1m"),
			Timeout:     getEnvAsDuration("IMPORT_TIMEOUT", 10*time.Minute),
			Concurrency: getEnvAsInt("IMPORT_CONCURRENCY", 4),
			HeaderLines: getEnvAsInt("IMPORT_HEADER_LINES", 1),
			Hints:       getEnvAsBool("IMPORT_CATEGORY_HINTS", true),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Logging: LoggingConfig{
			Format: getEnv("LOG_FORMAT", "text"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
		Currency: CurrencyConfig{
			Code: getEnv("CURRENCY_CODE", "EUR"),
		},
	}

	delimiter, err := ParseDelimiter(getEnv("IMPORT_DELIMITER", ","))
	if err != nil {
		return nil, fmt.Errorf("IMPORT_DELIMITER: %w", err)
	}
	cfg.Import.Delimiter = delimiter

	if cfg.Import.HeaderLines < 0 {
		return nil, errors.New("IMPORT_HEADER_LINES must not be negative")
	}

	if cfg.Import.Storage == storage.StorageTypeGCS && cfg.Import.GCSBucket == "" {
		return nil, errors.New("IMPORT_GCS_BUCKET is required when IMPORT_STORAGE=gcs")
	}

	if !money.ValidCurrency(cfg.Currency.Code) {
		return nil, fmt.Errorf("CURRENCY_CODE %q is not an ISO-4217 currency", cfg.Currency.Code)
	}

	return cfg, nil
}

// ParseDelimiter reads a single character delimiter. A literal \t means tab.
func ParseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// StorageConfig returns the inbox storage settings
func (c *ImportConfig) StorageConfig() storage.Config {
	return storage.Config{
		Type:      c.Storage,
		LocalPath: c.InboxDir,
		GCSBucket: c.GCSBucket,
		GCSPrefix: c.GCSPrefix,
	}
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
