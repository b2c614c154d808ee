package models

import (
	"fmt"
	"regexp"
)

// FieldKind is the value kind of a configurable prop.
type FieldKind string

const (
	FieldKindText    FieldKind = "text"
	FieldKindNumber  FieldKind = "number"
	FieldKindBoolean FieldKind = "boolean"
	FieldKindColor   FieldKind = "color"
	FieldKindSelect  FieldKind = "select"
)

// ValidFieldKinds contains all valid field kinds.
var ValidFieldKinds = []FieldKind{
	FieldKindText,
	FieldKindNumber,
	FieldKindBoolean,
	FieldKindColor,
	FieldKindSelect,
}

// IsValidFieldKind checks if the given kind is valid.
func IsValidFieldKind(k FieldKind) bool {
	for _, v := range ValidFieldKinds {
		if v == k {
			return true
		}
	}
	return false
}

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// IsColor reports whether s is a #rgb or #rrggbb hex color.
func IsColor(s string) bool {
	return colorPattern.MatchString(s)
}

// FieldOption is one choice of a select field.
type FieldOption struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// FieldSpec describes a single configurable prop of a part.
type FieldSpec struct {
	Name        string        `json:"name" yaml:"name"`
	Kind        FieldKind     `json:"kind" yaml:"kind"`
	Label       string        `json:"label" yaml:"label"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any           `json:"default_value" yaml:"default_value"`
	Options     []FieldOption `json:"options,omitempty" yaml:"options,omitempty"`
	Min         *float64      `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64      `json:"max,omitempty" yaml:"max,omitempty"`
}

// HasOption reports whether value is one of the field's select options.
func (f FieldSpec) HasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// InRange reports whether n satisfies the optional Min/Max bounds.
func (f FieldSpec) InRange(n float64) bool {
	if f.Min != nil && n < *f.Min {
		return false
	}
	if f.Max != nil && n > *f.Max {
		return false
	}
	return true
}

// Validate checks that the field is well formed and that its default value
// is compatible with its kind.
func (f FieldSpec) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("field name is required")
	}
	if !IsValidFieldKind(f.Kind) {
		return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
	}

	switch f.Kind {
	case FieldKindText:
		if _, ok := f.Default.(string); !ok {
			return fmt.Errorf("field %q: text default must be a string, got %T", f.Name, f.Default)
		}
	case FieldKindNumber:
		n, ok := AsNumber(f.Default)
		if !ok {
			return fmt.Errorf("field %q: number default must be numeric, got %T", f.Name, f.Default)
		}
		if !f.InRange(n) {
			return fmt.Errorf("field %q: default %v outside [min, max]", f.Name, n)
		}
	case FieldKindBoolean:
		if _, ok := f.Default.(bool); !ok {
			return fmt.Errorf("field %q: boolean default must be true or false, got %T", f.Name, f.Default)
		}
	case FieldKindColor:
		s, ok := f.Default.(string)
		if !ok || !IsColor(s) {
			return fmt.Errorf("field %q: color default must be a hex color, got %v", f.Name, f.Default)
		}
	case FieldKindSelect:
		if len(f.Options) == 0 {
			return fmt.Errorf("field %q: select requires options", f.Name)
		}
		s, ok := f.Default.(string)
		if !ok || !f.HasOption(s) {
			return fmt.Errorf("field %q: select default %v is not one of its options", f.Name, f.Default)
		}
	}
	return nil
}

// AsNumber converts the numeric representations produced by JSON, YAML and
// manifest decoding to float64.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// PropsSchema is the ordered set of configurable fields for a part code.
type PropsSchema struct {
	Code   string      `json:"code" yaml:"code"`
	Fields []FieldSpec `json:"fields" yaml:"fields"`
}

// Field returns the named field spec.
func (s PropsSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Defaults returns a fresh map holding every field's default value.
func (s PropsSchema) Defaults() map[string]any {
	values := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		if n, ok := AsNumber(f.Default); ok && f.Kind == FieldKindNumber {
			values[f.Name] = n
			continue
		}
		values[f.Name] = f.Default
	}
	return values
}

// Validate checks every field and rejects duplicate field names.
func (s PropsSchema) Validate() error {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if seen[f.Name] {
			return fmt.Errorf("schema %q: duplicate field %q", s.Code, f.Name)
		}
		seen[f.Name] = true
		if err := f.Validate(); err != nil {
			return fmt.Errorf("schema %q: %w", s.Code, err)
		}
	}
	return nil
}
