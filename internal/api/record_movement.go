package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/herdbook-io/herdbook/internal/api/middleware"
	"github.com/herdbook-io/herdbook/internal/inventory"
)

// actorIDHeader identifies the person performing the operation. The API key
// authenticates the calling application; this header attributes the ledger
// row to a human actor for the audit trail.
const actorIDHeader = "X-Actor-ID"

// handleRecordEntry handles POST /api/v1/movements/entries.
// Records a single entry-direction movement (purchase, birth, incoming
// transfer leg is not accepted here; transfers have their own endpoint).
//
// Response: 201 Created with the persisted movement.
func (s *Server) handleRecordEntry(w http.ResponseWriter, r *http.Request) {
	s.handleRecordMovement(w, r, s.stores.Recorder.RecordEntry)
}

// handleRecordExit handles POST /api/v1/movements/exits.
// Records a single exit-direction movement (sale, death, consumption,
// donation, other exit).
//
// Response: 201 Created with the persisted movement.
func (s *Server) handleRecordExit(w http.ResponseWriter, r *http.Request) {
	s.handleRecordMovement(w, r, s.stores.Recorder.RecordExit)
}

// handleRecordMovement is the shared decode-record-respond pipeline for both
// movement directions. Direction mismatches are rejected by the domain
// validators, so posting an exit operation to the entries endpoint fails
// with INVALID_OPERATION.
func (s *Server) handleRecordMovement(
	w http.ResponseWriter,
	r *http.Request,
	record func(ctx context.Context, req inventory.MovementRequest) (*inventory.Movement, error),
) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req inventory.MovementRequest

	if problem := s.decodeJSON(w, r, &req); problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	actorID, problem := requireActorID(r)
	if problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	req.ActorID = actorID
	req.SourceIP = clientIP(r)

	movement, err := record(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to record movement",
			"correlation_id", correlationID,
			"farm_id", req.FarmID,
			"category_id", req.CategoryID,
			"operation", string(req.Operation),
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.logger.InfoContext(ctx, "Movement recorded",
		"correlation_id", correlationID,
		"movement_id", movement.ID,
		"operation", string(movement.OperationType),
		slog.Int("quantity", movement.Quantity),
	)

	s.writeJSON(w, r, http.StatusCreated, movement)
}

// requireActorID extracts the mandatory X-Actor-ID header.
func requireActorID(r *http.Request) (string, *ProblemDetail) {
	actorID := r.Header.Get(actorIDHeader)
	if actorID == "" {
		return "", BadRequest("Missing " + actorIDHeader + " header")
	}

	return actorID, nil
}

// clientIP returns the remote address without the port. Falls back to the
// raw RemoteAddr when it is not in host:port form.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
