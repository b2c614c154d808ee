package models

// FunctionalType classifies how a part is materialized when no bespoke
// renderer exists for it.
type FunctionalType string

const (
	FunctionalTypeFullstack FunctionalType = "FULLSTACK"  // Composite block with its own data and actions
	FunctionalTypeWidget    FunctionalType = "WIDGET"     // Compact metric tile
	FunctionalTypeFormInput FunctionalType = "FORM_INPUT" // Input control embedded in a form
)

// ValidFunctionalTypes contains all valid functional type values.
var ValidFunctionalTypes = []FunctionalType{
	FunctionalTypeFullstack,
	FunctionalTypeWidget,
	FunctionalTypeFormInput,
}

// IsValidFunctionalType checks if the given functional type is valid.
func IsValidFunctionalType(t FunctionalType) bool {
	for _, v := range ValidFunctionalTypes {
		if v == t {
			return true
		}
	}
	return false
}

// PartDescriptor is a catalog entry for a reusable part.
// Descriptors are owned by catalog administration and are read-only here.
type PartDescriptor struct {
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Category       string         `json:"category"`
	FunctionalType FunctionalType `json:"functional_type"`
	IsCore         bool           `json:"is_core"` // Advisory: mandatory in some assemblies, not enforced
	Description    string         `json:"description,omitempty"`
}
