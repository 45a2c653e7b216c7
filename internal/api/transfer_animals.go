package api

import (
	"net/http"

	"github.com/herdbook-io/herdbook/internal/api/middleware"
	"github.com/herdbook-io/herdbook/internal/inventory"
)

// handleTransfer handles POST /api/v1/transfers.
// Moves animals of one category between two farms in a single transaction:
// an exit leg on the source farm and an entry leg on the target farm, linked
// by relatedMovementId. If either leg fails, neither is persisted.
//
// Response: 201 Created with the exit and entry movements.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req inventory.TransferRequest

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

	pair, err := s.stores.Transferrer.Transfer(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to transfer stock",
			"correlation_id", correlationID,
			"source_farm_id", req.SourceFarmID,
			"target_farm_id", req.TargetFarmID,
			"category_id", req.CategoryID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.logger.InfoContext(ctx, "Stock transferred",
		"correlation_id", correlationID,
		"exit_movement_id", pair.Out.ID,
		"entry_movement_id", pair.In.ID,
	)

	s.writeJSON(w, r, http.StatusCreated, pair)
}

// handleCategoryChange handles POST /api/v1/category-changes.
// Reclassifies animals within one farm, again as a linked exit/entry pair in
// one transaction.
//
// Response: 201 Created with the exit and entry movements.
func (s *Server) handleCategoryChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req inventory.CategoryChangeRequest

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

	pair, err := s.stores.Transferrer.ChangeCategory(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to change category",
			"correlation_id", correlationID,
			"farm_id", req.FarmID,
			"source_category_id", req.SourceCategoryID,
			"target_category_id", req.TargetCategoryID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.logger.InfoContext(ctx, "Category changed",
		"correlation_id", correlationID,
		"exit_movement_id", pair.Out.ID,
		"entry_movement_id", pair.In.ID,
	)

	s.writeJSON(w, r, http.StatusCreated, pair)
}

// handleWeaning handles POST /api/v1/weanings.
// Promotes male calves to two-year steers and female calves to two-year
// heifers on one farm, all in one transaction. A zero quantity skips that
// sex; both zero is rejected.
//
// Response: 201 Created with one movement pair per promoted sex.
func (s *Server) handleWeaning(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req inventory.WeaningRequest

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

	result, err := s.stores.Transferrer.Wean(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to wean calves",
			"correlation_id", correlationID,
			"farm_id", req.FarmID,
			"males", req.Males,
			"females", req.Females,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.logger.InfoContext(ctx, "Calves weaned",
		"correlation_id", correlationID,
		"farm_id", req.FarmID,
		"males", req.Males,
		"females", req.Females,
	)

	s.writeJSON(w, r, http.StatusCreated, result)
}
