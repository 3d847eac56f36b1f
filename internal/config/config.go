// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database
	DatabaseURLOverride string
	DBHost              string
	DBPort              int
	DBName              string
	DBUser              string
	DBPassword          string
	DBMaxConns          int
	DBStatementTimeout  time.Duration

	// Cache
	RedisAddr string
	CacheTTL  time.Duration

	// Catalog
	CatalogDir    string
	CatalogBucket string
	CatalogPrefix string

	// Application
	Port             int
	Stage            string
	LogLevel         string
	BatchConcurrency int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// Database
		DatabaseURLOverride: getEnv("DATABASE_URL", ""),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnvInt("DB_PORT", 5432),
		DBName:              getEnv("DB_NAME", "underwriting"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBMaxConns:          getEnvInt("DB_MAX_CONNS", 0),
		DBStatementTimeout:  getEnvDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),

		// Cache
		RedisAddr: getEnv("REDIS_ADDR", ""),
		CacheTTL:  getEnvDuration("CACHE_TTL", 24*time.Hour),

		// Catalog
		CatalogDir:    getEnv("CATALOG_DIR", ""),
		CatalogBucket: getEnv("CATALOG_S3_BUCKET", ""),
		CatalogPrefix: getEnv("CATALOG_S3_PREFIX", "termsheets/"),

		// Application
		Port:             getEnvInt("PORT", 8080),
		Stage:            getEnv("STAGE", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 8),
	}

	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	if c.DatabaseURLOverride != "" {
		return c.DatabaseURLOverride
	}
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// DatabaseConfigured reports whether run persistence should be enabled.
func (c *Config) DatabaseConfigured() bool {
	return c.DatabaseURLOverride != "" || c.DBPassword != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a duration ("30m", "24h").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
