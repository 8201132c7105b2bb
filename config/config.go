package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the video incident service
type Config struct {
	// Server configuration
	Port string

	// Analysis provider configuration
	AnalysisProvider string // "gemini" or "openai"
	GeminiAPIKey     string
	GeminiModel      string
	OpenAIAPIKey     string
	OpenAIModel      string

	// Upload limits. The selection-time cap is looser than the
	// analysis-time cap on purpose; both are enforced where they apply.
	MaxUploadBytes   int64
	MaxAnalysisBytes int64

	// Active incident window in seconds (strict bound)
	ActiveWindowSeconds float64

	// Session lifecycle
	SessionTTL   time.Duration
	ReapInterval time.Duration

	// Rate limiting for analysis starts
	AnalyzeRateLimit  int
	AnalyzeRateWindow time.Duration

	// CORS
	AllowedOrigins string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		AnalysisProvider: getEnv("ANALYSIS_PROVIDER", "gemini"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o"),

		MaxUploadBytes:   getInt64Env("MAX_UPLOAD_BYTES", 75*1024*1024),
		MaxAnalysisBytes: getInt64Env("MAX_ANALYSIS_BYTES", 50*1024*1024),

		ActiveWindowSeconds: getFloatEnv("ACTIVE_WINDOW_SECONDS", 3),

		SessionTTL:   getDurationEnv("SESSION_TTL", 2*time.Hour),
		ReapInterval: getDurationEnv("SESSION_REAP_INTERVAL", 5*time.Minute),

		AnalyzeRateLimit:  getIntEnv("ANALYZE_RATE_LIMIT", 10),
		AnalyzeRateWindow: getDurationEnv("ANALYZE_RATE_WINDOW", time.Minute),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64Env gets an int64 environment variable or returns a default value
func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
