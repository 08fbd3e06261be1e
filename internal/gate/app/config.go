package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ClientID     string // Required: OAuth2 client id registered at the provider
	ClientSecret string // Required: OAuth2 client secret

	AuthorizeEndpoint string // Required: provider authorize endpoint users are redirected to
	TokenEndpoint     string // Required: provider token endpoint for exchange and refresh

	Algorithms    []string // Optional: JWT signature algorithm allow-list (default: RS256)
	PublicKeyFile string   // Path to PEM public key / certificate (asymmetric algorithms)
	HMACSecret    string   // Shared secret (HS* algorithms); one of the two must be set

	CookieName string // Optional: session cookie name (default: access_token)

	CacheDriver string // Optional: token cache backend (redis, sqlite) (default: redis)
	RedisURL    string // Optional: redis connection URL (default: redis://localhost:6379/0)
	SQLiteFile  string // Optional: path to SQLite cache file (default: ./gatekeeper.db)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-row sweep interval, sqlite only (default: 1h)
}

func LoadConfig() Config {
	return Config{
		ClientID:     os.Getenv("GATE_CLIENT_ID"),
		ClientSecret: os.Getenv("GATE_CLIENT_SECRET"),

		AuthorizeEndpoint: os.Getenv("GATE_AUTHORIZE_ENDPOINT"),
		TokenEndpoint:     os.Getenv("GATE_TOKEN_ENDPOINT"),

		Algorithms:    splitCSV(getEnvOrDefault("GATE_ALGORITHMS", "RS256")),
		PublicKeyFile: os.Getenv("GATE_PUBLIC_KEY_FILE"),
		HMACSecret:    os.Getenv("GATE_HMAC_SECRET"),

		CookieName: getEnvOrDefault("GATE_COOKIE_NAME", "access_token"),

		CacheDriver: getEnvOrDefault("GATE_CACHE_DRIVER", "redis"),
		RedisURL:    getEnvOrDefault("GATE_REDIS_URL", "redis://localhost:6379/0"),
		SQLiteFile:  getEnvOrDefault("GATE_SQLITE_FILE", "gatekeeper.db"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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
