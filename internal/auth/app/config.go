package app

import (
	"os"
	"strconv"
	"time"

	httpapi "github.com/aussiebroadwan/tokenguard/internal/auth/http"
	"github.com/aussiebroadwan/tokenguard/pkg/httpx"
)

// Token store backends.
const (
	TokenStoreSQLite = "sqlite"
	TokenStoreRedis  = "redis"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	TokenStore    string // Optional: token record backend (sqlite, redis) (default: sqlite)
	RedisAddr     string // Optional: redis address when TokenStore is redis (default: localhost:6379)
	RedisPassword string // Optional: redis password
	RedisDB       int    // Optional: redis logical database (default: 0)

	GuardsFile   string // Optional: YAML guard/provider configuration
	DefaultGuard string // Optional: overrides the default guard from GuardsFile

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	Limits httpapi.Limits // Rate limits, RATELIMIT_{LOGIN,TOKEN,PUBLIC}_{REQUESTS,WINDOW_SEC,BURST}
}

func LoadConfig() Config {
	cfg := Config{
		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:    getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		TokenStore:    getEnvOrDefault("AUTH_TOKEN_STORE", TokenStoreSQLite),
		RedisAddr:     getEnvOrDefault("AUTH_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("AUTH_REDIS_DB", 0),
		GuardsFile:    os.Getenv("AUTH_GUARDS_FILE"),
		DefaultGuard:  os.Getenv("AUTH_DEFAULT_GUARD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	def := httpapi.DefaultLimits()
	cfg.Limits = httpapi.Limits{
		Login:  httpx.ParseRateLimitFromEnv("LOGIN", def.Login),
		Token:  httpx.ParseRateLimitFromEnv("TOKEN", def.Token),
		Public: httpx.ParseRateLimitFromEnv("PUBLIC", def.Public),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
