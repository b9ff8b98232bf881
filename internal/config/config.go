package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration shared by the bridge and the devserver.
type Config struct {
	LogLevel  string
	LogFormat string
	GinMode   string

	// Client side.
	APIBaseURL    string
	CSRFToken     string
	HTTPTimeout   time.Duration
	SubmitTimeout time.Duration
	BridgePort    string

	// Reference grading backend.
	DevServerPort   string
	CSRFSecret      string
	CSRFTTL         time.Duration
	DatabaseURL     string
	MaxDBConns      int32
	RedisURL        string
	RateLimit       int
	MockTestGrace   time.Duration
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "pretty"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8060"), "/"),
		CSRFToken:      getEnv("CSRF_TOKEN", ""),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT_SECONDS", 10, time.Second),
		SubmitTimeout:  getEnvDuration("SUBMIT_TIMEOUT_SECONDS", 30, time.Second),
		BridgePort:     getEnv("BRIDGE_PORT", "8070"),
		DevServerPort:  getEnv("DEVSERVER_PORT", "8060"),
		CSRFSecret:     getEnv("CSRF_SECRET", "change-this-to-a-secure-random-string"),
		CSRFTTL:        getEnvDuration("CSRF_TTL_HOURS", 12, time.Hour),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MaxDBConns:     int32(getEnvInt("MAX_DB_CONNS", 8)),
		RedisURL:       getEnv("REDIS_URL", ""),
		RateLimit:      getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MockTestGrace:  getEnvDuration("MOCK_TEST_GRACE_SECONDS", 30, time.Second),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * unit
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
