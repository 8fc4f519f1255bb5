// Package vectorstore defines the interface for vector storage operations
// and a Qdrant-backed implementation.
//
// Tenant Isolation:
//
// Stores enforce payload isolation: every point carries tenant_id in its
// payload, stamped at the storage boundary from the tenant carried in the
// context, regardless of what the caller supplied in the payload body.
// Searches filter on exact tenant_id match before ranking. Missing tenant
// context is an error - fail closed, never empty results.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the store is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmptyPoints indicates empty or nil points.
	ErrEmptyPoints = errors.New("empty or nil points")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Payload keys every stored point carries.
const (
	PayloadSourceURL = "source_url"
	PayloadTenantID  = "tenant_id"
	PayloadContent   = "content"
	PayloadTimestamp = "timestamp"
	PayloadSessionID = "session_id"
)

// Content sub-payload keys.
const (
	ContentSummary       = "summary"
	ContentInputText     = "input_text"
	ContentInputHeadings = "input_headings"
	ContentRecordID      = "record_id"
)

// Point is a vector with its payload, ready for upsert.
type Point struct {
	// ID is a freshly generated unique identifier.
	ID string

	// Vector is the fixed-dimension embedding.
	Vector []float32

	// Payload holds the stored attributes. tenant_id is overwritten at the
	// storage boundary; everything else is passed through.
	Payload map[string]any
}

// ScoredPoint is a similarity search result, most similar first.
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Store is the interface for vector storage operations.
//
// Implementations must stamp tenant_id from the context into every upserted
// point and filter every search by it. Both operations fail with
// tenant.ErrMissing when no tenant is in the context.
type Store interface {
	// Upsert writes points into a collection. Stamps tenant_id into each
	// payload before the write.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to limit points ranked by similarity to vector,
	// filtered to the context tenant's points only.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error)

	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error

	// Close releases the store connection.
	Close() error
}
