package api

import (
	"net/http"
	"strconv"

	"github.com/herdbook-io/herdbook/internal/api/middleware"
)

type (
	// createFarmRequest is the payload of POST /api/v1/farms.
	createFarmRequest struct {
		Name string `json:"name"`
	}

	// createCategoryRequest is the payload of POST /api/v1/categories.
	createCategoryRequest struct {
		Name         string `json:"name"`
		Description  string `json:"description,omitempty"`
		DisplayOrder int    `json:"displayOrder,omitempty"`
	}

	// createNamedRequest is the payload of the client and death reason
	// creation endpoints.
	createNamedRequest struct {
		Name string `json:"name"`
	}
)

// handleListFarms handles GET /api/v1/farms.
func (s *Server) handleListFarms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	farms, err := s.stores.Registry.Farms(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list farms",
			"correlation_id", middleware.GetCorrelationID(ctx),
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusOK, farms)
}

// handleCreateFarm handles POST /api/v1/farms.
// Creating a farm also materializes a zero balance for every active
// category, so movements can be recorded immediately.
func (s *Server) handleCreateFarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req createFarmRequest

	if problem := s.decodeJSON(w, r, &req); problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	farm, err := s.stores.Registry.CreateFarm(ctx, req.Name)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create farm",
			"correlation_id", correlationID,
			"name", req.Name,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.logger.InfoContext(ctx, "Farm created",
		"correlation_id", correlationID,
		"farm_id", farm.ID,
		"name", farm.Name,
	)

	s.writeJSON(w, r, http.StatusCreated, farm)
}

// handleListCategories handles GET /api/v1/categories.
//
// Query Parameters:
//   - includeInactive: "true" to include deactivated categories (default false)
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	includeInactive := false

	if v := r.URL.Query().Get("includeInactive"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			WriteErrorResponse(w, r, s.logger,
				BadRequest("Invalid parameter 'includeInactive': must be a boolean"))

			return
		}

		includeInactive = parsed
	}

	categories, err := s.stores.Registry.Categories(ctx, includeInactive)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list categories",
			"correlation_id", middleware.GetCorrelationID(ctx),
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusOK, categories)
}

// handleCreateCategory handles POST /api/v1/categories.
// Custom categories carry no slug and are not touched by the seeder. A zero
// balance is materialized for the new category on every farm.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req createCategoryRequest

	if problem := s.decodeJSON(w, r, &req); problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	category, err := s.stores.Registry.CreateCategory(ctx, req.Name, req.Description, req.DisplayOrder)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create category",
			"correlation_id", correlationID,
			"name", req.Name,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.logger.InfoContext(ctx, "Category created",
		"correlation_id", correlationID,
		"category_id", category.ID,
		"name", category.Name,
	)

	s.writeJSON(w, r, http.StatusCreated, category)
}

// handleSeedCategories handles POST /api/v1/categories/seed.
// Installs the nine system categories. Safe to call repeatedly: existing
// slugs are skipped, matching names are adopted, missing ones are created.
//
// Response: 200 OK with counts per outcome.
func (s *Server) handleSeedCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	report, err := s.stores.Registry.SeedSystemCategories(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to seed system categories",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.logger.InfoContext(ctx, "System categories seeded",
		"correlation_id", correlationID,
		"created", report.Created,
		"adopted", report.Adopted,
		"updated", report.Updated,
		"skipped", report.Skipped,
	)

	s.writeJSON(w, r, http.StatusOK, report)
}

// handleListClients handles GET /api/v1/clients.
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clients, err := s.stores.References.Clients(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list clients",
			"correlation_id", middleware.GetCorrelationID(ctx),
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusOK, clients)
}

// handleCreateClient handles POST /api/v1/clients.
func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req createNamedRequest

	if problem := s.decodeJSON(w, r, &req); problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	client, err := s.stores.References.CreateClient(ctx, req.Name)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create client",
			"correlation_id", correlationID,
			"name", req.Name,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusCreated, client)
}

// handleListDeathReasons handles GET /api/v1/death-reasons.
func (s *Server) handleListDeathReasons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reasons, err := s.stores.References.DeathReasons(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list death reasons",
			"correlation_id", middleware.GetCorrelationID(ctx),
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusOK, reasons)
}

// handleCreateDeathReason handles POST /api/v1/death-reasons.
func (s *Server) handleCreateDeathReason(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req createNamedRequest

	if problem := s.decodeJSON(w, r, &req); problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	reason, err := s.stores.References.CreateDeathReason(ctx, req.Name)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create death reason",
			"correlation_id", correlationID,
			"name", req.Name,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, ProblemFromDomainError(err))

		return
	}

	s.writeJSON(w, r, http.StatusCreated, reason)
}
