// Package storage provides the key-value storage collaborator backing local
// documents: key-unique get/put/delete by identifier plus an ordered scan
// preserving insertion order.
package storage

import "context"

// Record is one stored document in transport form.
type Record struct {
	ID         string
	Attributes map[string]any
}

// Store persists documents per component. Attribute maps are transport-safe
// values (the document layer serializes before writing). Put merges into an
// existing record, so a partial save never has to re-send unchanged
// attributes.
type Store interface {
	// EnsureCollection prepares storage for a component's documents.
	EnsureCollection(ctx context.Context, component string) error

	// Put upserts a record, merging attrs over any existing attributes.
	Put(ctx context.Context, component, id string, attrs map[string]any) error

	// Get retrieves a record's attributes by identifier.
	Get(ctx context.Context, component, id string) (map[string]any, error)

	// Delete removes a record by identifier.
	Delete(ctx context.Context, component, id string) error

	// Scan returns all records of a component in insertion order.
	Scan(ctx context.Context, component string) ([]Record, error)

	// Close releases the underlying resources.
	Close() error
}
