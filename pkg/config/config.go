// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Source kinds the pipeline can load raw records from.
const (
	SourceCSV       = "csv"
	SourceWarehouse = "warehouse"
)

// Config represents the application configuration
type Config struct {
	// Database connections. Snowflake is only required when the source
	// is the warehouse staging table.
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig

	// Source settings
	SourceKind      string // "csv" or "warehouse"
	CSVPath         string
	StagingSchema   string // Warehouse schema holding the raw export
	StagingTable    string
	LoadOrderColumn string // ORDER BY column that defines "first occurrence"

	// Run settings
	ChunkSize          int
	WorkerPoolSize     int
	RetryAttempts      int
	RetryDelay         time.Duration
	TruncateBeforeLoad bool
	VerifySampleSize   int

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		SourceKind:      getEnv("SOURCE_KIND", SourceCSV),
		CSVPath:         getEnv("SOURCE_CSV_PATH", ""),
		StagingSchema:   getEnv("STAGING_SCHEMA", "RAW"),
		StagingTable:    getEnv("STAGING_TABLE", "SALES_EXPORT"),
		LoadOrderColumn: getEnv("LOAD_ORDER_COLUMN", "LOAD_SEQ"),

		ChunkSize:          getEnvAsInt("CHUNK_SIZE", 500),
		WorkerPoolSize:     getEnvAsInt("WORKER_POOL_SIZE", 0), // 0 means use runtime.NumCPU()
		RetryAttempts:      getEnvAsInt("RETRY_ATTEMPTS", 3),
		RetryDelay:         time.Duration(getEnvAsInt("RETRY_DELAY_MS", 1000)) * time.Millisecond,
		TruncateBeforeLoad: getEnvAsBool("TRUNCATE_BEFORE_LOAD", true),
		VerifySampleSize:   getEnvAsInt("VERIFY_SAMPLE_SIZE", 25),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	pgConfig, err := LoadPostgresConfig()
	if err != nil {
		return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
	}
	cfg.Postgres = pgConfig

	// The Snowflake connection is only needed for warehouse runs.
	if cfg.SourceKind == SourceWarehouse {
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, errors.New("failed to load Snowflake configuration: " + err.Error())
		}
		cfg.Snowflake = snowConfig
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.Postgres == nil {
		return errors.New("postgreSQL configuration is required")
	}

	switch c.SourceKind {
	case SourceCSV:
		if c.CSVPath == "" {
			return errors.New("SOURCE_CSV_PATH is required for a csv run")
		}
	case SourceWarehouse:
		if c.Snowflake == nil {
			return errors.New("snowflake configuration is required for a warehouse run")
		}
		if c.StagingTable == "" {
			return errors.New("staging table is required for a warehouse run")
		}
		if c.LoadOrderColumn == "" {
			return errors.New("load order column is required: first occurrence is undefined without a stable load order")
		}
	default:
		return errors.New("source kind must be csv or warehouse, got: " + c.SourceKind)
	}

	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}

	if c.WorkerPoolSize < 0 {
		return errors.New("worker pool size cannot be negative")
	}

	if c.RetryAttempts < 0 {
		return errors.New("retry attempts cannot be negative")
	}

	if c.VerifySampleSize < 0 {
		return errors.New("verify sample size cannot be negative")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
