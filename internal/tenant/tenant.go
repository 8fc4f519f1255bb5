// Package tenant defines the canonical tenant identifier and its context
// plumbing. Every storage and retrieval operation in harvestd is scoped by a
// tenant.ID; the ID is validated once at the system boundary and passed
// through context from there on.
package tenant

import (
	"context"
	"errors"
	"regexp"
)

// Tenant identity errors - fail closed security model.
var (
	// ErrMissing is returned when tenant info is absent from context.
	// This triggers "fail closed" behavior - no empty results, just errors.
	ErrMissing = errors.New("tenant id missing from context")

	// ErrInvalid is returned when a tenant identifier fails validation.
	ErrInvalid = errors.New("invalid tenant identifier")
)

// idPattern validates tenant identifiers.
// Pattern: letters, numbers, dot, underscore, hyphen, 1-128 characters.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ID is an opaque tenant identifier.
//
// IDs are treated as opaque strings internally; the only guarantees are the
// ones enforced by Parse. Data belonging to one ID must never be visible to
// queries scoped by another.
type ID string

// Parse validates a raw tenant identifier from the system boundary.
func Parse(raw string) (ID, error) {
	if raw == "" {
		return "", ErrInvalid
	}
	if !idPattern.MatchString(raw) {
		return "", ErrInvalid
	}
	return ID(raw), nil
}

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

// Validate checks that the identifier is well formed.
func (id ID) Validate() error {
	if !idPattern.MatchString(string(id)) {
		return ErrInvalid
	}
	return nil
}

// ctxKey is the context key for the tenant ID.
type ctxKey struct{}

// WithID adds a tenant ID to a context.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the tenant ID from a context.
// Returns ErrMissing if not present - fail closed.
func FromContext(ctx context.Context) (ID, error) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return "", ErrMissing
	}
	id, ok := val.(ID)
	if !ok || id == "" {
		return "", ErrMissing
	}
	return id, nil
}
