package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/services"
)

// ConnectionMiddleware wraps a handler with per-request resources, such as
// database.WithConnection.
type ConnectionMiddleware func(http.HandlerFunc) http.HandlerFunc

// NoConnection is a ConnectionMiddleware that adds nothing.
func NoConnection(next http.HandlerFunc) http.HandlerFunc { return next }

// ============================================================================
// Request/Response Types
// ============================================================================

// CreateAssemblyRequest for POST /api/assemblies
type CreateAssemblyRequest struct {
	Name       string                `json:"name"`
	TargetRole string                `json:"target_role"`
	Parts      []models.InstanceSpec `json:"parts"`
}

// AddPartRequest for POST /api/assemblies/{id}/parts
type AddPartRequest struct {
	PartCode string `json:"part_code"`
}

// ReorderRequest for PUT .../order
type ReorderRequest struct {
	InstanceIDs []uuid.UUID `json:"instance_ids"`
}

// ConfigValuesRequest for PATCH .../parts/{iid}/config
type ConfigValuesRequest struct {
	Values map[string]any `json:"values"`
}

// AssemblyListResponse for GET /api/assemblies
type AssemblyListResponse struct {
	Assemblies []*models.Assembly `json:"assemblies"`
	Total      int                `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// AssembliesHandler handles persisted assembly HTTP requests.
type AssembliesHandler struct {
	assemblies services.AssemblyService
	logger     *zap.Logger
}

// NewAssembliesHandler creates a new assemblies handler.
func NewAssembliesHandler(assemblies services.AssemblyService, logger *zap.Logger) *AssembliesHandler {
	return &AssembliesHandler{assemblies: assemblies, logger: logger}
}

// RegisterRoutes registers the assemblies handler's routes on the given mux.
func (h *AssembliesHandler) RegisterRoutes(mux *http.ServeMux, withConn ConnectionMiddleware) {
	base := "/api/assemblies"

	mux.HandleFunc("GET "+base, withConn(h.List))
	mux.HandleFunc("POST "+base, withConn(h.Create))
	mux.HandleFunc("GET "+base+"/{id}", withConn(h.Get))
	mux.HandleFunc("PATCH "+base+"/{id}", withConn(h.Update))
	mux.HandleFunc("DELETE "+base+"/{id}", withConn(h.Delete))
	mux.HandleFunc("GET "+base+"/{id}/render", withConn(h.Render))

	mux.HandleFunc("POST "+base+"/{id}/submit", withConn(h.transition(services.ActionSubmit, h.assemblies.SubmitForTesting)))
	mux.HandleFunc("POST "+base+"/{id}/approve", withConn(h.transition(services.ActionApprove, h.assemblies.Approve)))
	mux.HandleFunc("POST "+base+"/{id}/deploy", withConn(h.transition(services.ActionDeploy, h.assemblies.Deploy)))
	mux.HandleFunc("POST "+base+"/{id}/rollback", withConn(h.transition(services.ActionRollback, h.assemblies.Rollback)))
	mux.HandleFunc("POST "+base+"/{id}/revert", withConn(h.transition(services.ActionRevert, h.assemblies.RevertToDraft)))

	mux.HandleFunc("POST "+base+"/{id}/parts", withConn(h.AddPart))
	mux.HandleFunc("PUT "+base+"/{id}/parts/order", withConn(h.ReorderParts))
	mux.HandleFunc("DELETE "+base+"/{id}/parts/{iid}", withConn(h.RemovePart))
	mux.HandleFunc("PATCH "+base+"/{id}/parts/{iid}/config", withConn(h.UpdatePartConfig))
}

// List handles GET /api/assemblies
func (h *AssembliesHandler) List(w http.ResponseWriter, r *http.Request) {
	assemblies, err := h.assemblies.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "list assemblies", h.logger)
		return
	}
	if assemblies == nil {
		assemblies = []*models.Assembly{}
	}
	writeData(w, http.StatusOK, AssemblyListResponse{Assemblies: assemblies, Total: len(assemblies)}, h.logger)
}

// Create handles POST /api/assemblies
func (h *AssembliesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAssemblyRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	a, err := h.assemblies.Create(r.Context(), req.Name, req.TargetRole, req.Parts)
	if err != nil {
		writeServiceError(w, err, "create assembly", h.logger)
		return
	}
	writeData(w, http.StatusCreated, a, h.logger)
}

// Get handles GET /api/assemblies/{id}
func (h *AssembliesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseAssemblyID(w, r, h.logger)
	if !ok {
		return
	}

	a, err := h.assemblies.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get assembly", h.logger)
		return
	}
	writeData(w, http.StatusOK, a, h.logger)
}

// Update handles PATCH /api/assemblies/{id}
func (h *AssembliesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseAssemblyID(w, r, h.logger)
	if !ok {
		return
	}
	var patch models.AssemblyPatch
	if !decodeJSON(w, r, &patch, h.logger) {
		return
	}

	a, err := h.assemblies.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, err, "update assembly", h.logger)
		return
	}
	writeData(w, http.StatusOK, a, h.logger)
}

// Delete handles DELETE /api/assemblies/{id}.
// The first call arms the delete and answers 202; a second call within the
// confirmation window deletes and answers 200.
func (h *AssembliesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseAssemblyID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.assemblies.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "delete assembly", h.logger)
		return
	}

	status := http.StatusOK
	if result.Armed {
		status = http.StatusAccepted
	}
	writeData(w, status, result, h.logger)
}

// Render handles GET /api/assemblies/{id}/render
func (h *AssembliesHandler) Render(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseAssemblyID(w, r, h.logger)
	if !ok {
		return
	}

	blocks, err := h.assemblies.Render(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "render assembly", h.logger)
		return
	}
	writeData(w, http.StatusOK, blocks, h.logger)
}

// transition builds the handler for one lifecycle action.
func (h *AssembliesHandler) transition(action string, op func(context.Context, uuid.UUID) (*models.Assembly, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ParseAssemblyID(w, r, h.logger)
		if !ok {
			return
		}

		a, err := op(r.Context(), id)
		if err != nil {
			writeServiceError(w, err, action+" assembly", h.logger)
			return
		}
		writeData(w, http.StatusOK, a, h.logger)
	}
}

// AddPart handles POST /api/assemblies/{id}/parts
func (h *AssembliesHandler) AddPart(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseAssemblyID(w, r, h.logger)
	if !ok {
		return
	}
	var req AddPartRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	a, err := h.assemblies.AddPart(r.Context(), id, req.PartCode)
	if err != nil {
		writeServiceError(w, err, "add part", h.logger)
		return
	}
	writeData(w, http.StatusOK, a, h.logger)
}

// RemovePart handles DELETE /api/assemblies/{id}/parts/{iid}
func (h *AssembliesHandler) RemovePart(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseAssemblyID(w, r, h.logger)
	if !ok {
		return
	}
	iid, ok := ParseInstanceID(w, r, h.logger)
	if !ok {
		return
	}

	a, err := h.assemblies.RemovePart(r.Context(), id, iid)
	if err != nil {
		writeServiceError(w, err, "remove part", h.logger)
		return
	}
	writeData(w, http.StatusOK, a, h.logger)
}

// ReorderParts handles PUT /api/assemblies/{id}/parts/order
func (h *AssembliesHandler) ReorderParts(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseAssemblyID(w, r, h.logger)
	if !ok {
		return
	}
	var req ReorderRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	a, err := h.assemblies.ReorderParts(r.Context(), id, req.InstanceIDs)
	if err != nil {
		writeServiceError(w, err, "reorder parts", h.logger)
		return
	}
	writeData(w, http.StatusOK, a, h.logger)
}

// UpdatePartConfig handles PATCH /api/assemblies/{id}/parts/{iid}/config
func (h *AssembliesHandler) UpdatePartConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseAssemblyID(w, r, h.logger)
	if !ok {
		return
	}
	iid, ok := ParseInstanceID(w, r, h.logger)
	if !ok {
		return
	}
	var req ConfigValuesRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	a, err := h.assemblies.UpdatePartConfig(r.Context(), id, iid, req.Values)
	if err != nil {
		writeServiceError(w, err, "update part config", h.logger)
		return
	}
	writeData(w, http.StatusOK, a, h.logger)
}
