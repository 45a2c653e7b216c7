// Package middleware provides HTTP middleware components for the herdbook API.
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier    int     = 2
	maxKeys                    int     = 100
	defaultGlobalRPS           int     = 100
	defaultKeyRPS              int     = 50
	defaultUnAuthRPS           int     = 10
	thresholdMultiplier        float64 = 0.8
	thresholdPercentage        int     = 80
	rateLimiterCleanupInterval         = 5 * time.Minute
	rateLimiterIdleTimeout             = 1 * time.Hour
)

type (
	// RateLimiter provides rate limiting for incoming requests.
	//
	// Implementations may use in-memory token buckets (single-node
	// deployment) or distributed stores like Redis (multi-node deployment).
	// The interface enables zero-downtime migration between the two when
	// scaling beyond a single node.
	RateLimiter interface {
		// Allow checks if a request should be allowed based on rate limits.
		// Returns true if allowed, false if rate limited.
		//
		// For authenticated requests, keyID identifies the API key.
		// For unauthenticated requests, keyID is empty string.
		Allow(keyID string) bool
	}

	// InMemoryRateLimiter implements RateLimiter using golang.org/x/time/rate.
	//
	// Provides three-tier rate limiting:
	// 1. Global limit (applied to all requests)
	// 2. Per-key limit (applied to authenticated requests)
	// 3. Unauthenticated limit (applied to requests without a key ID)
	//
	// Uses token bucket algorithm with configurable burst capacity.
	// Burst capacity allows temporary bursts above the sustained rate.
	//
	// Memory cleanup runs periodically to prevent unbounded growth.
	// Keys idle longer than IdleTimeout are removed.
	//
	// Suitable for single-node deployments where one herdbook instance
	// fronts all farms.
	InMemoryRateLimiter struct {
		global          *rate.Limiter
		perKey          map[string]*keyLimiter
		unauthenticated *rate.Limiter
		mu              sync.RWMutex
		cleanupTicker   *time.Ticker
		done            chan struct{}

		// Configuration (stored for creating new key limiters and cleanup)
		keyRPS          int
		keyBurst        int
		cleanupInterval time.Duration
		idleTimeout     time.Duration
		maxKeys         int
	}

	// keyLimiter tracks rate limit state for a single API key.
	// Includes last access time for memory cleanup.
	keyLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}
)

// NewInMemoryRateLimiter creates a new in-memory rate limiter with three-tier limits.
//
// Burst capacity is computed automatically as 2 × rate unless overridden in config.
// Cleanup runs periodically to prevent unbounded memory growth.
//
// Example:
//
//	rl := NewInMemoryRateLimiter(&Config{
//	    GlobalRPS: 100,
//	    KeyRPS:    50,
//	    UnAuthRPS: 10,
//	})
//	defer rl.Close()
func NewInMemoryRateLimiter(config *Config) *InMemoryRateLimiter {
	// Compute burst capacities (use override if provided, otherwise 2 × rate)
	globalBurst := computeBurstCapacity(config.GlobalRPS, config.GlobalBurst)
	keyBurst := computeBurstCapacity(config.KeyRPS, config.KeyBurst)
	unauthBurst := computeBurstCapacity(config.UnAuthRPS, config.UnAuthBurst)

	rl := &InMemoryRateLimiter{
		global:          rate.NewLimiter(rate.Limit(config.GlobalRPS), globalBurst),
		perKey:          make(map[string]*keyLimiter),
		unauthenticated: rate.NewLimiter(rate.Limit(config.UnAuthRPS), unauthBurst),
		done:            make(chan struct{}),
		keyRPS:          config.KeyRPS,
		keyBurst:        keyBurst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		maxKeys:         config.MaxKeys,
	}

	// Start background cleanup goroutine
	rl.startCleanup()

	return rl
}

// computeBurstCapacity computes the burst capacity based on the rate and optional override.
//
// If burstOverride is 0, computes burst automatically as 2 × rate.
// If burstOverride > 0, uses the override value.
func computeBurstCapacity(rate, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rate * burstCapacityMultiplier
}

// Allow checks if a request should be allowed based on rate limits.
// Implements the RateLimiter interface.
//
// Rate limiting is enforced in two steps:
// 1. Global limit (all requests)
// 2. Per-key limit (authenticated) OR unauthenticated limit
//
// Parameters:
//   - keyID: empty string for unauthenticated requests, API key ID otherwise
func (rl *InMemoryRateLimiter) Allow(keyID string) bool {
	// Tier 1: Check global limit first (fail fast)
	if !rl.global.Allow() {
		return false
	}

	// Tier 2: Check key-specific or unauthenticated limit
	if keyID == "" {
		return rl.unauthenticated.Allow()
	}

	// Authenticated request - get or create key limiter
	rl.mu.RLock()
	kl, ok := rl.perKey[keyID]
	rl.mu.RUnlock()

	if !ok {
		// Lazy initialization: create limiter for this key
		rl.mu.Lock()
		// Double-check after acquiring write lock (avoid race)
		if kl, ok = rl.perKey[keyID]; !ok {
			kl = &keyLimiter{
				limiter:    rate.NewLimiter(rate.Limit(rl.keyRPS), rl.keyBurst),
				lastAccess: time.Now(),
			}

			rl.perKey[keyID] = kl

			// Operational monitoring: warn when approaching the max keys
			// limit so operators can detect key proliferation before
			// hitting hard limits.
			currentCount := len(rl.perKey)
			threshold := int(float64(rl.maxKeys) * thresholdMultiplier) // 80% threshold

			if currentCount >= threshold {
				slog.Warn("rate limiter approaching max keys limit",
					"current_keys", currentCount,
					"max_keys", rl.maxKeys,
					"threshold_percent", thresholdPercentage,
					"recommendation", "investigate potential API key proliferation or increase max_keys limit")
			}
		}

		rl.mu.Unlock()
	}

	// Update last access time (for cleanup)
	kl.mu.Lock()
	kl.lastAccess = time.Now()
	kl.mu.Unlock()

	// Check key-specific limit
	return kl.limiter.Allow()
}

// Close stops the cleanup goroutine and releases resources.
// Must be called when the InMemoryRateLimiter is no longer needed.
//
// Note: Close() is not part of the RateLimiter interface to allow
// implementations that don't require cleanup. Use type assertion if
// cleanup is needed:
//
//	if closer, ok := limiter.(io.Closer); ok {
//	    closer.Close()
//	}
func (rl *InMemoryRateLimiter) Close() error {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)

	return nil
}

// startCleanup starts a background goroutine that periodically removes
// stale key limiters to prevent memory leaks.
func (rl *InMemoryRateLimiter) startCleanup() {
	// Use config values if set, otherwise use defaults
	cleanupInterval := rl.cleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

// cleanup removes key limiters that haven't been accessed recently.
func (rl *InMemoryRateLimiter) cleanup() {
	// Use config value if set, otherwise use default
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for keyID, kl := range rl.perKey {
		kl.mu.Lock()
		lastAccess := kl.lastAccess
		kl.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perKey, keyID)
		}
	}
}

// RateLimit returns a middleware that enforces rate limits on incoming requests.
//
// Rate limiting is applied in three tiers:
//  1. Global limit (all requests)
//  2. Per-key limit (authenticated requests with CallerContext)
//  3. Unauthenticated limit (requests without CallerContext)
//
// When a request exceeds the rate limit, the middleware returns a 429 (Too Many Requests)
// response with RFC 7807 error format.
//
// The middleware must be placed after authentication middleware in the chain to access
// CallerContext for per-key rate limiting.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract key ID from context (set by authentication middleware).
			// Empty string selects the unauthenticated tier.
			keyID := ""
			if caller, ok := GetCallerContext(r.Context()); ok {
				keyID = caller.KeyID
			}

			// Check rate limit
			if !limiter.Allow(keyID) {
				correlationID := GetCorrelationID(r.Context())

				detail := "Rate limit exceeded. Please retry after some time."
				if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
					logger.Error("failed to write response with RFC 7807 error format",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("detail", detail),
						slog.String("error", err.Error()),
					)

					// Fallback to plain text if writeRFC7807Error fails
					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
