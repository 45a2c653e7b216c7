// Package middleware provides HTTP middleware components for the herdbook API.
package middleware

import (
	"time"

	"github.com/herdbook-io/herdbook/internal/config"
)

// Config holds rate limiter configuration.
//
// Rate limits specify requests per second (RPS) for three tiers:
//   - Global: Applied to all requests
//   - Per-key: Applied to authenticated requests
//   - Unauthenticated: Applied to requests without an API key
//
// Burst capacity allows temporary bursts above sustained rate.
// If burst fields are 0, they are computed automatically as 2 × rate.
type Config struct {
	// Rate limits (requests per second)
	GlobalRPS int // Default: 100
	KeyRPS    int // Default: 50
	UnAuthRPS int // Default: 10

	// Optional burst capacity overrides (0 = compute automatically as 2 × rate)
	GlobalBurst int // Default: 0 (computed as 2 × GlobalRPS = 200)
	KeyBurst    int // Default: 0 (computed as 2 × KeyRPS = 100)
	UnAuthBurst int // Default: 0 (computed as 2 × UnAuthRPS = 20)

	// Memory cleanup configuration
	CleanupInterval time.Duration // Default: 5 minutes
	IdleTimeout     time.Duration // Default: 1 hour
	MaxKeys         int           // Default: 100
}

// LoadConfig loads middleware config from environment variables with fallback to defaults.
//
// Default burst capacity: 2 × rate (allows 2-second burst)
// Default cleanup: every 5 minutes, removes keys idle >1 hour.
func LoadConfig() *Config {
	return &Config{
		// Rate limits
		GlobalRPS: config.GetEnvInt("HERDBOOK_GLOBAL_RPS", defaultGlobalRPS),
		KeyRPS:    config.GetEnvInt("HERDBOOK_KEY_RPS", defaultKeyRPS),
		UnAuthRPS: config.GetEnvInt("HERDBOOK_UNAUTH_RPS", defaultUnAuthRPS),

		// Burst overrides (0 = auto-compute)
		GlobalBurst: config.GetEnvInt("HERDBOOK_GLOBAL_BURST", 0),
		KeyBurst:    config.GetEnvInt("HERDBOOK_KEY_BURST", 0),
		UnAuthBurst: config.GetEnvInt("HERDBOOK_UNAUTH_BURST", 0),

		// Cleanup configuration
		CleanupInterval: config.GetEnvDuration(
			"HERDBOOK_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval,
		),
		IdleTimeout: config.GetEnvDuration("HERDBOOK_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxKeys:     config.GetEnvInt("HERDBOOK_RATE_LIMIT_MAX_KEYS", maxKeys),
	}
}
