// Package middleware provides HTTP middleware components for the herdbook API.
package middleware

import (
	"context"
	"time"
)

// callerContextKey is the context key for authenticated caller information.
// Using a struct type ensures type safety and prevents collisions with other context keys.
type callerContextKey struct{}

// CallerContext contains authenticated caller information enriched in the request context.
// This context is added by the authentication middleware after successful API key validation.
type CallerContext struct {
	// KeyID is the API key ID used for authentication (for audit logging
	// and per-key rate limiting)
	KeyID string

	// Name is the human-readable key name for logging and display
	// (e.g., "field-app-tablet-3")
	Name string

	// Permissions are the authorization scopes granted to this caller
	Permissions []string

	// AuthTime is the timestamp when authentication occurred (for latency tracking)
	AuthTime time.Time
}

// GetCallerContext extracts caller context from the request context.
// Returns (context, true) if authenticated, (empty, false) if not found.
//
// Example usage:
//
//	caller, authenticated := middleware.GetCallerContext(r.Context())
//	if !authenticated {
//	    // Handle unauthenticated request
//	    return
//	}
func GetCallerContext(ctx context.Context) (CallerContext, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(CallerContext)

	return caller, ok
}

// SetCallerContext adds caller context to the request context.
// Returns a new context with the caller context attached.
//
// This function is used by the authentication middleware to enrich the request
// context after successful API key validation.
func SetCallerContext(ctx context.Context, caller CallerContext) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}
