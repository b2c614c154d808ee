package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/render"
	"github.com/ekaya-inc/assembly-factory/pkg/services"
	"github.com/ekaya-inc/assembly-factory/pkg/session"
	"github.com/ekaya-inc/assembly-factory/pkg/staging"
)

// PartFinder looks up catalog parts by code.
type PartFinder interface {
	Find(ctx context.Context, code string) (models.PartDescriptor, error)
}

// BlockRenderer materializes instances into blocks.
type BlockRenderer interface {
	RenderComposition(ctx context.Context, instances []models.PartInstance) []render.Block
}

// Disarmer clears an actor's pending delete.
type Disarmer interface {
	Disarm(ctx context.Context, actor string) error
}

// ============================================================================
// Request/Response Types
// ============================================================================

// StagingResponse is the state of one staging area.
type StagingResponse struct {
	Instances  []models.PartInstance `json:"instances"`
	SelectedID *uuid.UUID            `json:"selected_id,omitempty"`
	EditingID  *uuid.UUID            `json:"editing_id,omitempty"`
}

// SelectRequest for PUT /api/staging/selection. A null id clears it.
type SelectRequest struct {
	InstanceID *uuid.UUID `json:"instance_id"`
}

// CommitRequest for POST /api/staging/commit. When the staging area was
// loaded from an assembly, empty fields keep that assembly's values.
type CommitRequest struct {
	Name       string `json:"name"`
	TargetRole string `json:"target_role"`
}

// ============================================================================
// Handler
// ============================================================================

// StagingHandler serves each session's staging composer.
type StagingHandler struct {
	store      *staging.Store
	parts      PartFinder
	assemblies services.AssemblyService
	renderer   BlockRenderer
	disarmer   Disarmer
	logger     *zap.Logger
}

// NewStagingHandler creates a new staging handler. disarmer may be nil.
func NewStagingHandler(
	store *staging.Store,
	parts PartFinder,
	assemblies services.AssemblyService,
	renderer BlockRenderer,
	disarmer Disarmer,
	logger *zap.Logger,
) *StagingHandler {
	return &StagingHandler{
		store:      store,
		parts:      parts,
		assemblies: assemblies,
		renderer:   renderer,
		disarmer:   disarmer,
		logger:     logger,
	}
}

// RegisterRoutes registers the staging handler's routes on the given mux.
// Loading and committing touch the database; the rest is in memory.
func (h *StagingHandler) RegisterRoutes(mux *http.ServeMux, withConn ConnectionMiddleware) {
	base := "/api/staging"

	mux.HandleFunc("GET "+base, h.Get)
	mux.HandleFunc("DELETE "+base, h.Clear)
	mux.HandleFunc("POST "+base+"/parts", withConn(h.AddPart))
	mux.HandleFunc("DELETE "+base+"/parts/{iid}", h.RemovePart)
	mux.HandleFunc("PUT "+base+"/order", h.Reorder)
	mux.HandleFunc("PUT "+base+"/selection", h.Select)
	mux.HandleFunc("PATCH "+base+"/parts/{iid}/config", h.UpdateConfig)
	mux.HandleFunc("GET "+base+"/render", withConn(h.Render))
	mux.HandleFunc("POST "+base+"/edit/{id}", withConn(h.Edit))
	mux.HandleFunc("POST "+base+"/commit", withConn(h.Commit))
}

// composer returns the caller's staging area. Every staging action counts as
// "another action" for the delete protocol, so it disarms the caller.
func (h *StagingHandler) composer(w http.ResponseWriter, r *http.Request) (*staging.Composer, bool) {
	actor := session.ActorFromContext(r.Context())
	if actor == "" {
		writeError(w, http.StatusBadRequest, "session_required", "A staging session cookie is required", h.logger)
		return nil, false
	}
	if h.disarmer != nil {
		if err := h.disarmer.Disarm(r.Context(), actor); err != nil {
			h.logger.Warn("Failed to disarm pending delete", zap.String("actor_id", actor), zap.Error(err))
		}
	}
	return h.store.Get(actor), true
}

func (h *StagingHandler) writeState(w http.ResponseWriter, status int, c *staging.Composer) {
	response := StagingResponse{Instances: c.Instances()}
	if sel, ok := c.Selected(); ok {
		id := sel.InstanceID
		response.SelectedID = &id
	}
	if id, ok := c.EditingID(); ok {
		response.EditingID = &id
	}
	writeData(w, status, response, h.logger)
}

// Get handles GET /api/staging
func (h *StagingHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
	if !ok {
		return
	}
	h.writeState(w, http.StatusOK, c)
}

// Clear handles DELETE /api/staging
func (h *StagingHandler) Clear(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
	if !ok {
		return
	}
	c.Clear()
	h.writeState(w, http.StatusOK, c)
}

// AddPart handles POST /api/staging/parts.
// Answers 201 when the part was added and 200 when it was already staged.
func (h *StagingHandler) AddPart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
	if !ok {
		return
	}
	var req AddPartRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	part, err := h.parts.Find(r.Context(), req.PartCode)
	if err != nil {
		writeServiceError(w, err, "find part", h.logger)
		return
	}

	status := http.StatusOK
	if _, added := c.Add(part); added {
		status = http.StatusCreated
	}
	h.writeState(w, status, c)
}

// RemovePart handles DELETE /api/staging/parts/{iid}
func (h *StagingHandler) RemovePart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
	if !ok {
		return
	}
	iid, ok := ParseInstanceID(w, r, h.logger)
	if !ok {
		return
	}

	if err := c.Remove(iid); err != nil {
		writeServiceError(w, err, "remove part", h.logger)
		return
	}
	h.writeState(w, http.StatusOK, c)
}

// Reorder handles PUT /api/staging/order
func (h *StagingHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
	if !ok {
		return
	}
	var req ReorderRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := c.Reorder(req.InstanceIDs); err != nil {
		writeServiceError(w, err, "reorder parts", h.logger)
		return
	}
	h.writeState(w, http.StatusOK, c)
}

// Select handles PUT /api/staging/selection
func (h *StagingHandler) Select(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := c.Select(req.InstanceID); err != nil {
		writeServiceError(w, err, "select part", h.logger)
		return
	}
	h.writeState(w, http.StatusOK, c)
}

// UpdateConfig handles PATCH /api/staging/parts/{iid}/config
func (h *StagingHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
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

	if _, err := c.UpdateConfig(r.Context(), iid, req.Values); err != nil {
		writeServiceError(w, err, "update part config", h.logger)
		return
	}
	h.writeState(w, http.StatusOK, c)
}

// Render handles GET /api/staging/render
func (h *StagingHandler) Render(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, h.renderer.RenderComposition(r.Context(), c.Instances()), h.logger)
}

// Edit handles POST /api/staging/edit/{id}: loads an assembly's parts into
// the staging area.
func (h *StagingHandler) Edit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
	if !ok {
		return
	}
	id, ok := ParseAssemblyID(w, r, h.logger)
	if !ok {
		return
	}

	a, err := h.assemblies.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get assembly", h.logger)
		return
	}
	if err := c.Load(*a); err != nil {
		writeServiceError(w, err, "load assembly", h.logger)
		return
	}
	h.writeState(w, http.StatusOK, c)
}

// Commit handles POST /api/staging/commit.
// A fresh staging area creates an assembly (201); one loaded with Edit
// updates that assembly (200). The staging area is cleared on success.
func (h *StagingHandler) Commit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composer(w, r)
	if !ok {
		return
	}
	var req CommitRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	specs := c.Specs()
	var (
		a      *models.Assembly
		err    error
		status int
	)
	if id, editing := c.EditingID(); editing {
		patch := models.AssemblyPatch{Parts: &specs}
		if name := strings.TrimSpace(req.Name); name != "" {
			patch.Name = &name
		}
		if role := strings.TrimSpace(req.TargetRole); role != "" {
			patch.TargetRole = &role
		}
		a, err = h.assemblies.Update(r.Context(), id, patch)
		status = http.StatusOK
	} else {
		a, err = h.assemblies.Create(r.Context(), req.Name, req.TargetRole, specs)
		status = http.StatusCreated
	}
	if err != nil {
		writeServiceError(w, err, "commit staging area", h.logger)
		return
	}

	c.Clear()
	writeData(w, status, a, h.logger)
}
