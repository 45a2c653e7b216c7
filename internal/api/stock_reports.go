package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/herdbook-io/herdbook/internal/api/middleware"
	"github.com/herdbook-io/herdbook/internal/inventory"
)

const (
	// Movement list pagination limits.
	defaultMovementLimit = 100
	maxMovementLimit     = 500
	minMovementLimit     = 1
)

type (
	// movementListParams holds parsed query parameters for the movement list.
	movementListParams struct {
		farmID     string
		categoryID string
		operation  inventory.OperationType
		from       time.Time
		to         time.Time
		before     time.Time
		ascending  bool
		limit      int
	}

	// paramError represents a parameter validation error.
	paramError struct {
		param string
		msg   string
	}

	// ConsistencyReport is the response of the stock consistency endpoint.
	// Drifted lists every snapshot whose cached quantity disagrees with the
	// signed sum of its ledger; an empty list means the herd book is sound.
	ConsistencyReport struct {
		Consistent bool                             `json:"consistent"`
		DriftCount int                              `json:"driftCount"`
		Drifted    []*inventory.BalanceVerification `json:"drifted"`
		CheckedAt  time.Time                        `json:"checkedAt"`
	}
)

func (e *paramError) Error() string {
	return "Invalid parameter '" + e.param + "': " + e.msg
}

// handleListMovements handles GET /api/v1/movements.
// Returns ledger rows matching the filter, newest first by default.
//
// Query Parameters:
//   - farm: farm ID (optional)
//   - category: category ID (optional)
//   - operation: operation type, e.g. "purchase" (optional)
//   - from: ISO8601 timestamp, inclusive lower bound on event time (optional)
//   - to: ISO8601 timestamp, inclusive upper bound on event time (optional)
//   - before: ISO8601 timestamp, strict upper bound on event time, for
//     listing the movements preceding a reporting period (optional)
//   - order: "asc" or "desc" event-time order (default: "desc")
//   - limit: 1-500 (default: 100)
func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	params, err := parseMovementListParams(r)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	filter := inventory.MovementFilter{
		FarmID:     params.farmID,
		CategoryID: params.categoryID,
		Operation:  params.operation,
		From:       params.from,
		To:         params.to,
		Before:     params.before,
		Ascending:  params.ascending,
		Limit:      params.limit,
	}

	movements, err := s.stores.Reporter.Movements(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query movements",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusOK, movements)
}

// handleFarmBalances handles GET /api/v1/farms/{farmID}/balances.
// Returns every snapshot of the farm ordered by category display order.
func (s *Server) handleFarmBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	farmID := r.PathValue("farmID")

	balances, err := s.stores.Registry.FarmBalances(ctx, farmID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query farm balances",
			"correlation_id", correlationID,
			"farm_id", farmID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusOK, balances)
}

// handleBalance handles GET /api/v1/farms/{farmID}/balances/{categoryID}.
// Returns the snapshot for one (farm, category) pair.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	farmID := r.PathValue("farmID")
	categoryID := r.PathValue("categoryID")

	balance, err := s.stores.Registry.Balance(ctx, farmID, categoryID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query balance",
			"correlation_id", correlationID,
			"farm_id", farmID,
			"category_id", categoryID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusOK, balance)
}

// handlePeriodReport handles GET /api/v1/reports/period.
// Returns opening stock, period entries and exits, and closing stock for one
// (farm, category) pair over a time window. All figures are computed from
// the ledger, never from the snapshot.
//
// Query Parameters:
//   - farm: farm ID (required)
//   - category: category ID (required)
//   - from: ISO8601 timestamp, window start (required)
//   - to: ISO8601 timestamp, window end (required)
func (s *Server) handlePeriodReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	q := r.URL.Query()

	farmID := q.Get("farm")
	if farmID == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("Missing required parameter 'farm'"))

		return
	}

	categoryID := q.Get("category")
	if categoryID == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("Missing required parameter 'category'"))

		return
	}

	from, err := parseTimestampParam(q.Get("from"), "from", true)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	to, err := parseTimestampParam(q.Get("to"), "to", true)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	if to.Before(from) {
		WriteErrorResponse(w, r, s.logger,
			BadRequest("Invalid parameter 'to': must not be before 'from'"))

		return
	}

	report, err := s.stores.Reporter.PeriodReport(ctx, farmID, categoryID, from, to)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to build period report",
			"correlation_id", correlationID,
			"farm_id", farmID,
			"category_id", categoryID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusOK, report)
}

// handleStockConsistency handles GET /api/v1/health/stock-consistency.
// Verifies every snapshot against the signed sum of its ledger and returns
// the ones that drifted. Operators run this after suspected incidents or on
// a schedule.
func (s *Server) handleStockConsistency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	drifted, err := s.stores.Reporter.VerifyAllBalances(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to verify stock balances",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	if drifted == nil {
		drifted = []*inventory.BalanceVerification{}
	}

	report := ConsistencyReport{
		Consistent: len(drifted) == 0,
		DriftCount: len(drifted),
		Drifted:    drifted,
		CheckedAt:  time.Now().UTC(),
	}

	s.writeJSON(w, r, http.StatusOK, report)
}

// parseMovementListParams parses and validates query parameters.
func parseMovementListParams(r *http.Request) (*movementListParams, error) {
	q := r.URL.Query()

	params := &movementListParams{
		farmID:     q.Get("farm"),
		categoryID: q.Get("category"),
		limit:      defaultMovementLimit,
	}

	if op := q.Get("operation"); op != "" {
		operation := inventory.OperationType(op)
		if !operation.Valid() {
			return nil, &paramError{param: "operation", msg: "unknown operation type"}
		}

		params.operation = operation
	}

	from, err := parseTimestampParam(q.Get("from"), "from", false)
	if err != nil {
		return nil, err
	}

	params.from = from

	to, err := parseTimestampParam(q.Get("to"), "to", false)
	if err != nil {
		return nil, err
	}

	params.to = to

	before, err := parseTimestampParam(q.Get("before"), "before", false)
	if err != nil {
		return nil, err
	}

	params.before = before

	switch order := q.Get("order"); order {
	case "", "desc":
		// Newest first is the default.
	case "asc":
		params.ascending = true
	default:
		return nil, &paramError{param: "order", msg: "must be 'asc' or 'desc'"}
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, &paramError{param: "limit", msg: "must be a valid integer"}
		}

		if limit < minMovementLimit || limit > maxMovementLimit {
			return nil, &paramError{param: "limit", msg: "must be between 1 and 500"}
		}

		params.limit = limit
	}

	return params, nil
}

// parseTimestampParam parses an ISO8601 query parameter. Required parameters
// must be present; optional ones return the zero time when absent.
func parseTimestampParam(value, name string, required bool) (time.Time, error) {
	if value == "" {
		if required {
			return time.Time{}, &paramError{param: name, msg: "is required"}
		}

		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &paramError{param: name, msg: "must be valid ISO8601 timestamp"}
	}

	return t, nil
}
