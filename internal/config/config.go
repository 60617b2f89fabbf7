// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings. WriteTimeout zero means no limit; SSE streams
	// stay open longer than any fixed write deadline.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Storage settings. DatabaseURL selects Postgres; when empty,
	// transcripts go to the local SQLite file at LocalDBPath and the
	// project/session auto-save path is disabled.
	DatabaseURL string
	LocalDBPath string

	// Generation backend settings.
	Provider      string // "simulated", "ollama", "openai", or "" for auto-detect.
	OllamaURL     string
	OllamaModel   string
	OpenAIAPIKey  string
	OpenAIModel   string

	// Pipeline settings.
	DefaultSpeed     int // Characters per second revealed by default.
	SessionRetention time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
	RateLimitEnabled    bool
	RateLimitRPS        float64
	RateLimitBurst      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("SEKKEI_PORT", 8080),
		ReadTimeout:         envDuration("SEKKEI_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("SEKKEI_WRITE_TIMEOUT", 0),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		LocalDBPath:         envStr("SEKKEI_LOCAL_DB", "sekkei.db"),
		Provider:            envStr("SEKKEI_PROVIDER", ""),
		OllamaURL:           envStr("OLLAMA_URL", ""),
		OllamaModel:         envStr("OLLAMA_MODEL", "llama3.1"),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OpenAIModel:         envStr("SEKKEI_OPENAI_MODEL", "gpt-4o-mini"),
		DefaultSpeed:        envInt("SEKKEI_DEFAULT_SPEED", 40),
		SessionRetention:    envDuration("SEKKEI_SESSION_RETENTION", 30*time.Minute),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "sekkei"),
		LogLevel:            envStr("SEKKEI_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("SEKKEI_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
		RateLimitEnabled:    envBool("SEKKEI_RATE_LIMIT_ENABLED", false),
		RateLimitRPS:        float64(envInt("SEKKEI_RATE_LIMIT_RPS", 10)),
		RateLimitBurst:      envInt("SEKKEI_RATE_LIMIT_BURST", 30),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.DatabaseURL == "" && c.LocalDBPath == "" {
		return fmt.Errorf("config: DATABASE_URL or SEKKEI_LOCAL_DB is required")
	}
	if c.DefaultSpeed < 0 {
		return fmt.Errorf("config: SEKKEI_DEFAULT_SPEED must not be negative")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: SEKKEI_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: rate limit RPS and burst must be positive when enabled")
	}
	switch c.Provider {
	case "", "simulated", "ollama", "openai":
	default:
		return fmt.Errorf("config: unknown SEKKEI_PROVIDER %q", c.Provider)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
