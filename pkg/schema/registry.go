// Package schema holds the props schemas that describe how each part can be
// configured, and loads them (together with catalog descriptors) from HCL
// part manifests.
package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// Common field names appended to every resolved schema.
const (
	FieldVisible    = "visible"
	FieldStyleClass = "style_class"
	FieldTitle      = "title"
)

// commonFields are configurable on every part instance.
var commonFields = []models.FieldSpec{
	{
		Name:        FieldVisible,
		Kind:        models.FieldKindBoolean,
		Label:       "Visible",
		Description: "Whether the part is shown when the assembly first loads",
		Default:     true,
	},
	{
		Name:        FieldStyleClass,
		Kind:        models.FieldKindText,
		Label:       "Style class",
		Description: "Free-form class applied to the part container",
		Default:     "",
	},
}

// defaultFields apply to parts without a registered schema.
var defaultFields = []models.FieldSpec{
	{
		Name:    FieldTitle,
		Kind:    models.FieldKindText,
		Label:   "Title",
		Default: "",
	},
}

// Registry maps part codes to their specific props schema.
// It is filled at startup and only read afterwards.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]models.PropsSchema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]models.PropsSchema)}
}

// Register adds the specific schema for a part code. Schemas whose defaults
// do not match their field kinds are rejected, as are repeated codes.
func (r *Registry) Register(s models.PropsSchema) error {
	if s.Code == "" {
		return apperrors.Invalid("code", "schema code is required")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[s.Code]; exists {
		return fmt.Errorf("schema %q already registered: %w", s.Code, apperrors.ErrConflict)
	}
	fields := make([]models.FieldSpec, len(s.Fields))
	copy(fields, s.Fields)
	r.schemas[s.Code] = models.PropsSchema{Code: s.Code, Fields: fields}
	return nil
}

// Has reports whether a specific schema is registered for code.
func (r *Registry) Has(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[code]
	return ok
}

// Codes returns the registered part codes in lexical order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.schemas))
	for code := range r.schemas {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Get returns the effective schema for code: the registered fields (or the
// default title field) followed by the common fields. A part-specific field
// that reuses a common field name replaces the common one.
func (r *Registry) Get(code string) models.PropsSchema {
	r.mu.RLock()
	specific, ok := r.schemas[code]
	r.mu.RUnlock()

	base := defaultFields
	if ok {
		base = specific.Fields
	}

	fields := make([]models.FieldSpec, 0, len(base)+len(commonFields))
	fields = append(fields, base...)
	for _, common := range commonFields {
		if !hasField(base, common.Name) {
			fields = append(fields, common)
		}
	}
	return models.PropsSchema{Code: code, Fields: fields}
}

func hasField(fields []models.FieldSpec, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
