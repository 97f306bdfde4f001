package component

import "fmt"

// Set is the collection of components known to one side of the boundary.
// Read-only after construction; safe for concurrent lookups.
type Set struct {
	order  []string
	byName map[string]*Component
}

// NewSet builds a component set. Duplicate names are rejected.
func NewSet(comps ...*Component) (*Set, error) {
	s := &Set{byName: make(map[string]*Component, len(comps))}
	for _, c := range comps {
		if _, exists := s.byName[c.Name()]; exists {
			return nil, fmt.Errorf("component %q already registered", c.Name())
		}
		s.byName[c.Name()] = c
		s.order = append(s.order, c.Name())
	}
	return s, nil
}

// Component returns the named component.
func (s *Set) Component(name string) (*Component, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Descriptor returns the named component's descriptor. Satisfies the
// serializer's resolver contract.
func (s *Set) Descriptor(name string) (*Descriptor, bool) {
	c, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return c.Descriptor(), true
}

// Names returns component names in registration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Descriptors returns all descriptors in registration order.
func (s *Set) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name].Descriptor())
	}
	return out
}
