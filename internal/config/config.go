package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort   string
	Env          string
	LogLevel     string
	DatabaseType string
	DatabaseURL  string
	DatabasePath string

	MigrationsPath string

	IngestAPIKey      string
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	SessionSecret     string
	SessionMaxAge     time.Duration
	TrustProxy        bool

	LoginWindow        time.Duration
	LoginMaxFailures   int
	LoginBlockDuration time.Duration

	IdempotencyRetention time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// envFile is loaded first when it exists; variables already set in the
// environment win over the file.
func Load(envFile string) *Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{
		ServerPort:   getEnv("PORT", "8080"),
		Env:          getEnv("APP_ENV", "local"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabaseType: getEnv("DATABASE_TYPE", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DatabasePath: getEnv("DB_PATH", "./dev.db"),

		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),

		IngestAPIKey:      getEnv("INGEST_API_KEY", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionMaxAge:     getDuration("SESSION_MAX_AGE", 7*24*time.Hour),
		TrustProxy:        getBool("TRUST_PROXY", false),

		LoginWindow:        getDuration("LOGIN_WINDOW", 15*time.Minute),
		LoginMaxFailures:   getInt("LOGIN_MAX_FAILURES", 8),
		LoginBlockDuration: getDuration("LOGIN_BLOCK_DURATION", 15*time.Minute),

		IdempotencyRetention: getDuration("IDEMPOTENCY_RETENTION", 90*24*time.Hour),
	}

	cfg.DatabaseType = resolveDatabaseType(cfg.DatabaseType, cfg.DatabaseURL)
	return cfg
}

// Validate reports missing settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.IngestAPIKey == "" {
		errs = append(errs, errors.New("INGEST_API_KEY is required"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required"))
	}
	if c.DatabaseType != "sqlite" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for "+c.DatabaseType))
	}
	return errors.Join(errs...)
}

// resolveDatabaseType infers the dialect from the URL scheme when DATABASE_TYPE
// is not set, so a bare postgres:// URL from a hosting provider just works.
func resolveDatabaseType(dbType, url string) string {
	dbType = strings.ToLower(strings.TrimSpace(dbType))
	if dbType != "" {
		return dbType
	}
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(url, "mysql://"):
		return "mysql"
	default:
		return "sqlite"
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
