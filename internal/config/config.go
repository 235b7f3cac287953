package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers understood by store.Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	// Server
	Port int
	Env  string

	// CORS
	AllowedOrigins []string

	// Database
	DatabaseDriver string
	DatabaseURL    string
	ClickHouseURL  string
	RedisURL       string

	// Caching
	CacheEnabled       bool
	CacheCleanInterval time.Duration

	// Game semantics
	DefaultVersion  string
	PrecacheWorkers int
	ActivityZone    *time.Location

	// Page sizes
	APIResultsPerPage       int
	APIHighscoreResults     int
	DisplayHighscoreResults int
	DisplayResultsPerPage   int
	DisplayResultsRecent    int
}

// Load loads configuration from environment variables, reading an optional
// .env file first. It returns an error if critical configuration is missing.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnvInt("PORT", 28700),
		Env:  getEnv("ENV", "development"),

		DatabaseDriver: getEnv("DB_DRIVER", DriverSQLite),
		ClickHouseURL:  getEnv("CLICKHOUSE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),

		CacheEnabled:       getEnvBool("CACHE_ENABLED", true),
		CacheCleanInterval: getEnvDuration("CACHE_CLEAN_INTERVAL", time.Minute),

		DefaultVersion:  getEnv("DEFAULT_VERSION", "1.5.8"),
		PrecacheWorkers: getEnvInt("PRECACHE_WORKERS", 4),

		APIResultsPerPage:       getEnvInt("API_RESULTS_PER_PAGE", 25),
		APIHighscoreResults:     getEnvInt("API_HIGHSCORE_RESULTS", 10),
		DisplayHighscoreResults: getEnvInt("DISPLAY_HIGHSCORE_RESULTS", 5),
		DisplayResultsPerPage:   getEnvInt("DISPLAY_RESULTS_PER_PAGE", 15),
		DisplayResultsRecent:    getEnvInt("DISPLAY_RESULTS_RECENT", 10),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "*")
	for _, o := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want %s or %s)", cfg.DatabaseDriver, DriverPostgres, DriverSQLite)
	}

	zone, err := time.LoadLocation(getEnv("ACTIVITY_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACTIVITY_TIMEZONE: %w", err)
	}
	cfg.ActivityZone = zone

	// Critical configuration - fail if missing
	if cfg.DatabaseURL, err = getEnvRequired("DATABASE_URL"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
