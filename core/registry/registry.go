// Package registry maps entity names to their implementations: a local
// class backed by storage, or a remote proxy backed by a client. Resolution
// happens once at construction and is immutable for the registry's life, so
// any number of concurrent callers may consult it without coordination.
package registry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tetherlab/tether/core/component"
)

// MemberKind tells whether an entity resolves locally or remotely.
type MemberKind string

const (
	Local  MemberKind = "local"
	Remote MemberKind = "remote"
)

// Member is the uniform CRUD contract over a registered entity,
// implementation-agnostic: local members execute against storage, remote
// members issue invocations through a client.
type Member interface {
	Name() string
	Kind() MemberKind
	Descriptor() *component.Descriptor

	// Create builds a new instance with a client-side identifier and the
	// supplied attributes set. No I/O occurs until Save.
	Create(attrs map[string]any) (*component.Instance, error)

	// Get materializes a record by identifier according to opts.
	Get(ctx context.Context, id string, opts GetOptions) (*component.Instance, error)

	// Find lists records matching a flat equality filter.
	Find(ctx context.Context, opts FindOptions) ([]*component.Instance, error)

	// Save persists the instance's set attributes.
	Save(ctx context.Context, inst *component.Instance) error

	// Delete removes the record by identifier.
	Delete(ctx context.Context, id string) error
}

// Registry is the read-only name-to-member mapping.
type Registry struct {
	order   []string
	members map[string]Member
	logger  zerolog.Logger
}

// New builds a registry from the given members. Duplicate names are
// rejected; the mapping never changes afterwards.
func New(logger zerolog.Logger, members ...Member) (*Registry, error) {
	r := &Registry{
		members: make(map[string]Member, len(members)),
		logger:  logger,
	}
	for _, m := range members {
		if _, exists := r.members[m.Name()]; exists {
			return nil, fmt.Errorf("entity %q already registered", m.Name())
		}
		r.members[m.Name()] = m
		r.order = append(r.order, m.Name())
		logger.Debug().Str("entity", m.Name()).Str("kind", string(m.Kind())).Msg("entity resolved")
	}
	return r, nil
}

// Member returns the named member.
func (r *Registry) Member(name string) (Member, bool) {
	m, ok := r.members[name]
	return m, ok
}

// Names returns registered entity names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
