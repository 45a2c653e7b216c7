// Package api provides the HTTP API server implementation for the herdbook service.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/herdbook-io/herdbook/internal/api/middleware"
)

const (
	healthCheckTimeout = 2 * time.Second
	expectedURLParts   = 2
	serviceName        = "herdbook"
	serviceVersion     = "v1.0.0"
	contentTypeJSON    = "application/json"
	versionHeader      = "X-Herdbook-Version"
)

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// Route represents an HTTP route configuration with a path and handler.
	// Used for declarative route registration with middleware bypass support.
	Route struct {
		Path    string           // The URL path for this route (e.g., "GET /ping")
		Handler http.HandlerFunc // The HTTP handler function for this route
	}
)

// setupRoutes sets up all HTTP routes for the API server.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Public health endpoints
	s.registerPublicRoutes(
		mux,
		Route{"GET /ping", s.handlePing},     // K8s liveness probe
		Route{"GET /ready", s.handleReady},   // K8s readiness probe
		Route{"GET /health", s.handleHealth}, // Basic health check - status, uptime, version
		Route{"/", s.handleNotFound},         // Catch-all handler for 404 responses
	)

	// Ledger write endpoints
	mux.HandleFunc("POST /api/v1/movements/entries", s.handleRecordEntry)
	mux.HandleFunc("POST /api/v1/movements/exits", s.handleRecordExit)
	mux.HandleFunc("POST /api/v1/transfers", s.handleTransfer)
	mux.HandleFunc("POST /api/v1/category-changes", s.handleCategoryChange)
	mux.HandleFunc("POST /api/v1/weanings", s.handleWeaning)

	// Ledger read endpoints
	mux.HandleFunc("GET /api/v1/movements", s.handleListMovements)
	mux.HandleFunc("GET /api/v1/farms/{farmID}/balances", s.handleFarmBalances)
	mux.HandleFunc("GET /api/v1/farms/{farmID}/balances/{categoryID}", s.handleBalance)
	mux.HandleFunc("GET /api/v1/reports/period", s.handlePeriodReport)
	mux.HandleFunc("GET /api/v1/health/stock-consistency", s.handleStockConsistency)

	// Registry endpoints
	mux.HandleFunc("GET /api/v1/farms", s.handleListFarms)
	mux.HandleFunc("POST /api/v1/farms", s.handleCreateFarm)
	mux.HandleFunc("GET /api/v1/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/v1/categories", s.handleCreateCategory)
	mux.HandleFunc("POST /api/v1/categories/seed", s.handleSeedCategories)

	// Reference entity endpoints
	mux.HandleFunc("GET /api/v1/clients", s.handleListClients)
	mux.HandleFunc("POST /api/v1/clients", s.handleCreateClient)
	mux.HandleFunc("GET /api/v1/death-reasons", s.handleListDeathReasons)
	mux.HandleFunc("POST /api/v1/death-reasons", s.handleCreateDeathReason)
}

// registerPublicRoutes registers HTTP routes that bypass authentication and rate limiting.
// This is a convenience method that:
//  1. Registers the route handler with the HTTP mux
//  2. Automatically registers the path as a public endpoint (bypasses auth middleware)
//
// Public routes should only be used for health check endpoints that need to be accessible
// without authentication (e.g., K8s liveness/readiness probes, monitoring tools).
//
// Security Warning: Never register business logic endpoints as public routes.
func (s *Server) registerPublicRoutes(mux *http.ServeMux, routes ...Route) {
	validHTTPMethods := map[string]bool{
		"GET":    true,
		"POST":   true,
		"PUT":    true,
		"PATCH":  true,
		"DELETE": true,
	}

	for _, route := range routes {
		mux.Handle(route.Path, route.Handler)

		// Strip method prefix for public endpoint bypass registration
		// Go 1.22+ method-based routing uses "GET /path" format
		// But r.URL.Path is just "/path" (no method prefix)
		path := route.Path

		parts := strings.Fields(path)
		if len(parts) == expectedURLParts && validHTTPMethods[parts[0]] {
			path = strings.TrimSpace(parts[1])
		}

		if path == "" {
			s.logger.Warn("Malformed route path detected, ignoring route", slog.String("path", path))

			continue
		}

		middleware.RegisterPublicEndpoint(path)
	}
}

// handlePing responds to ping requests for basic server validation.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set(versionHeader, serviceVersion)
	w.WriteHeader(http.StatusOK)

	_, err := w.Write([]byte("pong"))
	if err != nil {
		s.logger.Error("Failed to write ping response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleReady reports whether the server can accept traffic.
//
// Response codes:
//   - 200 OK: All storage backends are healthy and ready to accept traffic
//   - 503 Service Unavailable: Storage backend is unhealthy or unreachable
//
// K8s readiness probes use this endpoint to determine if the pod should receive traffic.
// The health check delegates to the APIKeyStore's HealthCheck method, which verifies
// the underlying storage backend is operational.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	// If API key store not configured, return ready (degraded mode - no auth required)
	if s.apiKeyStore == nil { // pragma: allowlist secret
		s.logger.Warn("API key store not configured - readiness check disabled",
			slog.String("correlation_id", correlationID),
		)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)

		_, err := w.Write([]byte("ready"))
		if err != nil {
			s.logger.Error("Failed to write ready response",
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()),
			)
		}

		return
	}

	// Create context with 2-second timeout for storage health check
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.apiKeyStore.HealthCheck(ctx); err != nil {
		s.logger.Error("Storage health check failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusServiceUnavailable)

		_, writeErr := w.Write([]byte("storage unavailable"))
		if writeErr != nil {
			s.logger.Error("Failed to write unavailable response",
				slog.String("correlation_id", correlationID),
				slog.String("error", writeErr.Error()),
			)
		}

		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write([]byte("ready"))
	if err != nil {
		s.logger.Error("Failed to write ready response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleHealth returns detailed health status information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	// Calculate uptime if server has started
	var uptime string

	if !s.startTime.IsZero() {
		duration := time.Since(s.startTime)
		uptime = duration.Round(time.Second).String()
	}

	health := HealthStatus{
		Status:      "healthy",
		ServiceName: serviceName,
		Version:     serviceVersion,
		Uptime:      uptime,
	}

	data, err := json.Marshal(health)
	if err != nil {
		s.logger.Error("Failed to encode health response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode health response"))

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set(versionHeader, serviceVersion)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write health response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}

// hasJSONContentType checks if Content-Type header starts with "application/json".
// This allows charset parameters (e.g., "application/json; charset=utf-8").
func hasJSONContentType(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(contentType), "application/json")
}

// writeJSON marshals v and writes it with the given status code. Marshal
// failures turn into a 500 problem response; write failures can only be
// logged because headers are already sent.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	correlationID := middleware.GetCorrelationID(r.Context())

	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// decodeJSON decodes a JSON request body into dst, enforcing the configured
// max request size and the JSON content type. Returns a problem detail on
// failure, nil on success.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *ProblemDetail {
	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		return NewProblemDetail(
			http.StatusUnsupportedMediaType,
			"Unsupported Media Type",
			"Content-Type must be application/json",
		)
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return BadRequest("Invalid JSON payload: " + err.Error())
	}

	return nil
}
