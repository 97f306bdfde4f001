package document

import (
	"github.com/rs/zerolog"

	"github.com/tetherlab/tether/core/client"
	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/registry"
	"github.com/tetherlab/tether/core/storage"
)

// Space is a fully wired document space: the registry resolving each entity
// name to its member, and the component set of locally served entities for
// an executor to work against.
type Space struct {
	Registry   *registry.Registry
	Components *component.Set
}

// NewSpace wires local components onto a store and remote names onto their
// clients, builds the registry once, and injects it into every local member
// for reference resolution. Remote clients must already have introspected.
func NewSpace(logger zerolog.Logger, store storage.Store, locals []*component.Component, remotes map[string]*client.Client) (*Space, error) {
	var members []registry.Member
	var localSets []*LocalSet

	for _, comp := range locals {
		set := NewLocalSet(comp, store, logger)
		if err := BindCRUD(set); err != nil {
			return nil, err
		}
		localSets = append(localSets, set)
		members = append(members, set)
	}

	for name, cl := range remotes {
		remote, err := NewRemoteSet(cl, name, logger)
		if err != nil {
			return nil, err
		}
		members = append(members, remote)
	}

	reg, err := registry.New(logger, members...)
	if err != nil {
		return nil, err
	}
	for _, set := range localSets {
		set.UseRegistry(reg)
	}

	set, err := component.NewSet(locals...)
	if err != nil {
		return nil, err
	}
	return &Space{Registry: reg, Components: set}, nil
}
