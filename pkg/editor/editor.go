// Package editor validates and applies configuration changes to part
// instances according to their props schema.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/audit"
	"github.com/ekaya-inc/assembly-factory/pkg/jsonutil"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
	"github.com/ekaya-inc/assembly-factory/pkg/schema"
)

// Editor coerces user-entered values at the write boundary so that stored
// configs always match their schema's declared kinds.
type Editor struct {
	registry *schema.Registry
	auditor  *audit.SecurityAuditor
}

// New creates an editor over the given schema registry.
func New(registry *schema.Registry, auditor *audit.SecurityAuditor) *Editor {
	return &Editor{registry: registry, auditor: auditor}
}

// Schema returns the effective schema for a part code.
func (e *Editor) Schema(code string) models.PropsSchema {
	return e.registry.Get(code)
}

// Defaults returns the default config document for a part code.
func (e *Editor) Defaults(code string) json.RawMessage {
	// A map of scalars always marshals.
	data, _ := json.Marshal(e.registry.Get(code).Defaults())
	return data
}

// Resolve parses a stored config document and fills in defaults for
// missing fields. Keys unknown to the schema are kept as they are.
// An empty document yields the defaults; anything that is not a JSON object
// is ErrMalformedConfig.
func (e *Editor) Resolve(code string, raw json.RawMessage) (map[string]any, error) {
	values := e.registry.Get(code).Defaults()
	if len(raw) == 0 {
		return values, nil
	}

	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("part %q: %w: %v", code, apperrors.ErrMalformedConfig, err)
	}
	if stored == nil {
		// The literal null.
		return values, nil
	}
	for k, v := range stored {
		values[k] = v
	}
	return values, nil
}

// Apply returns a copy of inst whose config has the given values set.
// Every value must name a schema field and be coercible to its kind.
// A malformed existing config is replaced, starting from defaults. The input
// instance is never modified.
func (e *Editor) Apply(ctx context.Context, inst models.PartInstance, values map[string]any) (models.PartInstance, error) {
	s := e.registry.Get(inst.PartCode)

	current, err := e.Resolve(inst.PartCode, inst.Config)
	if errors.Is(err, apperrors.ErrMalformedConfig) {
		current = s.Defaults()
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field, ok := s.Field(name)
		if !ok {
			err := fmt.Errorf("part %q has no field %q: %w", inst.PartCode, name, apperrors.ErrInvalidConfig)
			e.auditValidation(ctx, inst, err)
			return inst, err
		}

		coerced, err := coerce(field, values[name])
		if err != nil {
			err = fmt.Errorf("field %q: %w", name, err)
			e.auditValidation(ctx, inst, err)
			return inst, err
		}

		if text, isText := coerced.(string); isText && field.Kind == models.FieldKindText {
			if hit := CheckValueForInjection(name, text); hit != nil {
				if e.auditor != nil {
					e.auditor.LogUnsafeValue(ctx, audit.UnsafeValueDetails{
						PartCode:    inst.PartCode,
						InstanceID:  inst.InstanceID,
						FieldName:   hit.FieldName,
						FieldValue:  hit.FieldValue,
						Detector:    hit.Detector,
						Fingerprint: hit.Fingerprint,
					})
				}
				return inst, fmt.Errorf("field %q: %w", name, apperrors.ErrUnsafeValue)
			}
		}

		current[name] = coerced
	}

	data, err := json.Marshal(current)
	if err != nil {
		return inst, fmt.Errorf("failed to encode config: %w", err)
	}
	out := inst.Clone()
	out.Config = data
	return out, nil
}

func (e *Editor) auditValidation(ctx context.Context, inst models.PartInstance, err error) {
	if e.auditor != nil {
		e.auditor.LogConfigValidation(ctx, inst.PartCode, inst.InstanceID, err.Error())
	}
}

// coerce converts a raw value to the Go type stored for the field's kind.
func coerce(field models.FieldSpec, v any) (any, error) {
	switch field.Kind {
	case models.FieldKindText:
		s, ok := jsonutil.FlexibleString(v)
		if !ok {
			return nil, fmt.Errorf("%w: expected text", apperrors.ErrInvalidConfig)
		}
		return s, nil

	case models.FieldKindNumber:
		n, ok := jsonutil.FlexibleNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: expected a number", apperrors.ErrInvalidConfig)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: expected a finite number", apperrors.ErrInvalidConfig)
		}
		if field.Min != nil && n < *field.Min {
			return nil, fmt.Errorf("%w: %v is below the minimum %v", apperrors.ErrInvalidConfig, n, *field.Min)
		}
		if field.Max != nil && n > *field.Max {
			return nil, fmt.Errorf("%w: %v is above the maximum %v", apperrors.ErrInvalidConfig, n, *field.Max)
		}
		return n, nil

	case models.FieldKindBoolean:
		b, ok := jsonutil.FlexibleBool(v)
		if !ok {
			return nil, fmt.Errorf("%w: expected true or false", apperrors.ErrInvalidConfig)
		}
		return b, nil

	case models.FieldKindColor:
		s, ok := v.(string)
		if !ok || !models.IsColor(s) {
			return nil, fmt.Errorf("%w: expected a #rgb or #rrggbb color", apperrors.ErrInvalidConfig)
		}
		return s, nil

	case models.FieldKindSelect:
		s, ok := jsonutil.FlexibleString(v)
		if !ok || !field.HasOption(s) {
			return nil, fmt.Errorf("%w: %v is not one of the options", apperrors.ErrInvalidConfig, v)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", apperrors.ErrInvalidConfig, field.Kind)
	}
}
