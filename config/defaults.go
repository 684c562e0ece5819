// Package config provides centralized default values for CoachForge
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// getEnvInt reads environment variable with fallback to default
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvString reads environment variable with string fallback
func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvStringSlice reads a comma-separated environment variable
func getEnvStringSlice(key string, defaultValue []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

// getEnvDuration reads environment variable as duration with fallback
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		// Try as integer seconds
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// Server Configuration
var (
	Port      = getEnvString("PORT", "8080")
	JWTSecret = getEnvString("JWT_SECRET", "")

	AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://localhost:4321",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:4321",
	})
)

// Backend Configuration
var (
	// BackendBaseURL resolves relative commit endpoints registered by editors.
	BackendBaseURL = getEnvString("BACKEND_BASE_URL", "http://localhost:3001")
	BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 30*time.Second)
)

// Session Configuration
var (
	MaxSessions            = getEnvInt("MAX_EDIT_SESSIONS", 5000)
	SessionIdleTimeout     = getEnvDuration("SESSION_IDLE_TIMEOUT", 4*time.Hour)
	SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 30*time.Minute)
	SessionTokenTTL        = getEnvDuration("SESSION_TOKEN_TTL", 24*time.Hour)
)
