// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion    string
	S3Bucket     string
	ReportPrefix string

	// Database
	DBHost      string
	DBPort      int
	DBName      string
	DBUser      string
	DBPassword  string
	DBURL       string
	StoreDriver string
	SQLitePath  string

	// SES
	SESSenderEmail  string
	ReviewTeamEmail string

	// Engine
	RulesPath      string
	StrictWarnings bool
	BatchWorkers   int
	AuditLogPath   string

	// HTTP
	Port           int
	AllowedOrigins []string

	// Application
	Stage    string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		ReportPrefix: getEnv("REPORT_PREFIX", "reports"),

		// Database
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnvInt("DB_PORT", 5432),
		DBName:      getEnv("DB_NAME", "mihac"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBURL:       getEnv("DATABASE_URL", ""),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreNone)),
		SQLitePath:  getEnv("SQLITE_PATH", "mihac.db"),

		// SES
		SESSenderEmail:  getEnv("SES_SENDER_EMAIL", ""),
		ReviewTeamEmail: getEnv("REVIEW_TEAM_EMAIL", ""),

		// Engine
		RulesPath:      getEnv("RULES_PATH", ""),
		StrictWarnings: getEnvBool("STRICT_WARNINGS", false),
		BatchWorkers:   getEnvInt("BATCH_WORKERS", 0),
		AuditLogPath:   getEnv("AUDIT_LOG_PATH", ""),

		// HTTP
		Port:           getEnvInt("PORT", 8080),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		// Application
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreNone, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want postgres, sqlite or none", c.StoreDriver)
	}
	if c.BatchWorkers < 0 {
		return fmt.Errorf("invalid BATCH_WORKERS %d: must not be negative", c.BatchWorkers)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string. DATABASE_URL wins
// over the individual DB_* settings.
func (c *Config) DatabaseURL() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// ReportsEnabled reports whether explanation reports should be archived to S3.
func (c *Config) ReportsEnabled() bool {
	return c.S3Bucket != ""
}

// NotificationsEnabled reports whether manual-review emails should be sent.
func (c *Config) NotificationsEnabled() bool {
	return c.SESSenderEmail != "" && c.ReviewTeamEmail != ""
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

// getEnvBool retrieves an environment variable as bool or returns a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
