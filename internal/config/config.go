// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the SQLite database and backup staging
	Port     int
	LogLevel string
	DevMode  bool

	// Redis backs the cache service and the job monitor's windowed event store.
	// Empty address means in-memory fallbacks are used instead.
	RedisAddr string
	RedisDB   int

	// Market data API (prices, holders, transfers, contract metadata)
	MarketAPIBaseURL string
	MarketAPIKey     string
	MarketAPITimeout time.Duration

	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup storage configuration
type BackupConfig struct {
	Enabled       bool
	Endpoint      string // custom endpoint for R2/MinIO, empty for AWS S3
	Region        string
	Bucket        string
	Prefix        string
	AccessKey     string // empty means the default AWS credential chain
	SecretKey     string
	RetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COINSCOPE_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8080),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		MarketAPIBaseURL: getEnv("MARKET_API_BASE_URL", "https://api.coingecko.com/api/v3"),
		MarketAPIKey:     getEnv("MARKET_API_KEY", ""),
		MarketAPITimeout: time.Duration(getEnvAsInt("MARKET_API_TIMEOUT_SECONDS", 15)) * time.Second,
		Backup:           loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Backup != nil && c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_BUCKET is required when backups are enabled")
	}
	return nil
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:       getEnvAsBool("BACKUP_ENABLED", false),
		Endpoint:      getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:        getEnv("BACKUP_S3_REGION", "auto"),
		Bucket:        getEnv("BACKUP_BUCKET", ""),
		Prefix:        getEnv("BACKUP_PREFIX", "coinscope-backups"),
		AccessKey:     getEnv("BACKUP_S3_ACCESS_KEY", ""),
		SecretKey:     getEnv("BACKUP_S3_SECRET_KEY", ""),
		RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
