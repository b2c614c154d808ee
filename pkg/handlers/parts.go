package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/catalog"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// maxSuggestions bounds "did you mean" hints on an empty search.
const maxSuggestions = 3

// PartCatalog is the read side of the parts catalog.
type PartCatalog interface {
	List(ctx context.Context) ([]models.PartDescriptor, error)
	Find(ctx context.Context, code string) (models.PartDescriptor, error)
}

// SchemaSource returns the effective props schema of a part.
type SchemaSource interface {
	Schema(code string) models.PropsSchema
}

// PartListResponse for GET /api/parts
type PartListResponse struct {
	Parts       []models.PartDescriptor `json:"parts"`
	Total       int                     `json:"total"`
	Categories  []string                `json:"categories"`
	Suggestions []string                `json:"suggestions,omitempty"`
}

// PartsHandler serves the parts catalog and props schemas.
type PartsHandler struct {
	catalog PartCatalog
	schemas SchemaSource
	logger  *zap.Logger
}

// NewPartsHandler creates a new parts handler.
func NewPartsHandler(catalog PartCatalog, schemas SchemaSource, logger *zap.Logger) *PartsHandler {
	return &PartsHandler{catalog: catalog, schemas: schemas, logger: logger}
}

// RegisterRoutes registers the parts handler's routes on the given mux.
func (h *PartsHandler) RegisterRoutes(mux *http.ServeMux, withConn ConnectionMiddleware) {
	mux.HandleFunc("GET /api/parts", withConn(h.List))
	mux.HandleFunc("GET /api/parts/{code}", withConn(h.Get))
	mux.HandleFunc("GET /api/parts/{code}/schema", withConn(h.Schema))
}

// List handles GET /api/parts?q=&category=
func (h *PartsHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.catalog.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "list parts", h.logger)
		return
	}

	q := catalog.Query{
		Text:     r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}
	parts := catalog.Filter(all, q)

	response := PartListResponse{
		Parts:      parts,
		Total:      len(parts),
		Categories: catalog.Categories(all),
	}
	if len(parts) == 0 && q.Text != "" {
		response.Suggestions = catalog.Suggest(all, q.Text, maxSuggestions)
	}
	writeData(w, http.StatusOK, response, h.logger)
}

// Get handles GET /api/parts/{code}
func (h *PartsHandler) Get(w http.ResponseWriter, r *http.Request) {
	part, err := h.catalog.Find(r.Context(), r.PathValue("code"))
	if err != nil {
		writeServiceError(w, err, "find part", h.logger)
		return
	}
	writeData(w, http.StatusOK, part, h.logger)
}

// Schema handles GET /api/parts/{code}/schema
func (h *PartsHandler) Schema(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if _, err := h.catalog.Find(r.Context(), code); err != nil {
		writeServiceError(w, err, "find part", h.logger)
		return
	}
	writeData(w, http.StatusOK, h.schemas.Schema(code), h.logger)
}
