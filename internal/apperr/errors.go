// Package apperr holds the error kinds route handlers translate into HTTP
// statuses.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAccessDenied           = errors.New("access denied")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrUpstream               = errors.New("upstream service error")
)

// ValidationError carries field-level detail for a malformed request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// NotFoundError names the entity that could not be resolved.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Upstream wraps a failed call to an external service.
func Upstream(service string, err error) error {
	return fmt.Errorf("%s: %w: %w", service, ErrUpstream, err)
}

// EntityName returns the entity of a NotFoundError, or "" for other errors.
func EntityName(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Entity
	}
	return ""
}
