package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAssemblyDeployed   = errors.New("assembly is deployed; membership is frozen")
	ErrInvalidPermutation = errors.New("order is not a permutation of the current instances")
	ErrDuplicatePart      = errors.New("part already present in composition")
	ErrInvalidConfig      = errors.New("invalid configuration value")
	ErrMalformedConfig    = errors.New("malformed configuration document")
	ErrUnsafeValue        = errors.New("configuration value rejected as unsafe")
)

// ValidationError names the offending field of a rejected request.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
