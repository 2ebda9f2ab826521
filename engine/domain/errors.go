package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline outcomes and validation failures.
var (
	ErrInvalidQuery      = errors.New("invalid query")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidRadius     = errors.New("invalid radius")
	ErrInvalidURL        = errors.New("invalid url")

	// ErrSynthesisUnavailable signals that the LLM collaborator failed
	// (timeout, quota, unreachable). The retrieval half of the query may
	// still have succeeded.
	ErrSynthesisUnavailable = errors.New("synthesis unavailable")

	// ErrPartialEnrichment signals that a scrape succeeded but the
	// subsequent merge or re-fetch failed: data was fetched but not
	// durably merged. Callers must not mistake this for a match.
	ErrPartialEnrichment = errors.New("partial enrichment failure")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
