package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	RedisURL   string
	// DatabaseURL is optional; when empty, audit persistence is disabled.
	DatabaseURL string
	JWTSecret   string

	RateLimit  int
	RateWindow time.Duration
	CacheTTL   time.Duration

	PolicyFile string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	FallbackURL     string
	ProviderTimeout time.Duration

	OTLPEndpoint string
}

func Load() (*Config, error) {
	godotenv.Load()

	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", "devsecret"),
		RateLimit:       getEnvInt("RATE_LIMIT", 10),
		RateWindow:      time.Duration(getEnvInt("RATE_WINDOW_SECONDS", 60)) * time.Second,
		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		PolicyFile:      getEnv("POLICY_FILE", "policies/policy.json"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		FallbackURL:     getEnv("FALLBACK_URL", "http://localhost:9000"),
		ProviderTimeout: time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 30)) * time.Second,
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}
