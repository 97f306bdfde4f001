package storage

import (
	"context"
	"sync"

	"github.com/tetherlab/tether/core/fault"
)

// MemoryStore implements Store in memory, preserving insertion order per
// component. Used for tests and embedded single-process setups.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	order []string
	docs  map[string]map[string]any
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*collection)}
}

// EnsureCollection prepares storage for a component's documents.
func (s *MemoryStore) EnsureCollection(_ context.Context, component string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[component] == nil {
		s.collections[component] = &collection{docs: make(map[string]map[string]any)}
	}
	return nil
}

// Put upserts a record, merging attrs over any stored attributes.
func (s *MemoryStore) Put(_ context.Context, component, id string, attrs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collections[component]
	if col == nil {
		col = &collection{docs: make(map[string]map[string]any)}
		s.collections[component] = col
	}

	doc, exists := col.docs[id]
	if !exists {
		doc = make(map[string]any, len(attrs))
		col.docs[id] = doc
		col.order = append(col.order, id)
	}
	for k, v := range attrs {
		doc[k] = v
	}
	return nil
}

// Get retrieves a record's attributes by identifier.
func (s *MemoryStore) Get(_ context.Context, component, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.collections[component]
	if col == nil {
		return nil, fault.NotFound(component, id)
	}
	doc, ok := col.docs[id]
	if !ok {
		return nil, fault.NotFound(component, id)
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

// Delete removes a record by identifier.
func (s *MemoryStore) Delete(_ context.Context, component, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collections[component]
	if col == nil {
		return fault.NotFound(component, id)
	}
	if _, ok := col.docs[id]; !ok {
		return fault.NotFound(component, id)
	}
	delete(col.docs, id)
	for i, existing := range col.order {
		if existing == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	return nil
}

// Scan returns all records of a component in insertion order.
func (s *MemoryStore) Scan(_ context.Context, component string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.collections[component]
	if col == nil {
		return nil, nil
	}
	records := make([]Record, 0, len(col.order))
	for _, id := range col.order {
		doc := col.docs[id]
		copied := make(map[string]any, len(doc))
		for k, v := range doc {
			copied[k] = v
		}
		records = append(records, Record{ID: id, Attributes: copied})
	}
	return records, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
