package document

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tetherlab/tether/core/client"
	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/registry"
)

// RemoteSet is an entity implementation reached only through a client.
// Every verb issues an invocation against the authoritative local
// implementation on the other side; create stays local until save.
type RemoteSet struct {
	proxy  *client.Proxy
	logger zerolog.Logger
}

// NewRemoteSet creates a remote member over an introspected proxy.
func NewRemoteSet(cl *client.Client, name string, logger zerolog.Logger) (*RemoteSet, error) {
	proxy, ok := cl.Component(name)
	if !ok {
		return nil, fmt.Errorf("remote side exposes no component %q", name)
	}
	return &RemoteSet{proxy: proxy, logger: logger}, nil
}

// Name returns the entity name.
func (s *RemoteSet) Name() string { return s.proxy.Name() }

// Kind reports that this member executes remotely.
func (s *RemoteSet) Kind() registry.MemberKind { return registry.Remote }

// Descriptor returns the proxy descriptor built from introspection.
func (s *RemoteSet) Descriptor() *component.Descriptor { return s.proxy.Descriptor() }

// Create builds a local instance with a client-side identifier; no I/O
// occurs until Save.
func (s *RemoteSet) Create(attrs map[string]any) (*component.Instance, error) {
	return s.proxy.New(attrs)
}

// Get materializes a record by identifier through the remote side.
func (s *RemoteSet) Get(ctx context.Context, id string, opts registry.GetOptions) (*component.Instance, error) {
	ctx, cache := withFetchCache(ctx)
	if inst, ok := cache.lookup(s.Name(), id); ok {
		return inst, nil
	}

	result, err := s.proxy.Call(ctx, "get", id, opts.ToWire())
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	inst, ok := result.(*component.Instance)
	if !ok {
		return nil, fmt.Errorf("remote get of %s returned %T, want instance", s.Name(), result)
	}
	cache.put(s.Name(), id, inst)
	return inst, nil
}

// Find lists records matching a flat equality filter through the remote
// side.
func (s *RemoteSet) Find(ctx context.Context, opts registry.FindOptions) ([]*component.Instance, error) {
	ctx, cache := withFetchCache(ctx)

	result, err := s.proxy.Call(ctx, "find", opts.ToWire())
	if err != nil {
		return nil, err
	}
	items, ok := result.([]any)
	if !ok && result != nil {
		return nil, fmt.Errorf("remote find of %s returned %T, want list", s.Name(), result)
	}

	instances := make([]*component.Instance, 0, len(items))
	for _, item := range items {
		inst, ok := item.(*component.Instance)
		if !ok {
			return nil, fmt.Errorf("remote find of %s returned %T element, want instance", s.Name(), item)
		}
		if id, ok := inst.ID(); ok {
			if cached, hit := cache.lookup(s.Name(), id); hit {
				inst = cached
			} else {
				cache.put(s.Name(), id, inst)
			}
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Save ships the instance's set attributes to the authoritative side. Only
// set-exposed attributes travel; the invocation's diff keeps the local
// instance aligned with the authoritative write.
func (s *RemoteSet) Save(ctx context.Context, inst *component.Instance) error {
	if len(inst.SetAttributeNames()) == 0 {
		return nil
	}
	if _, err := s.proxy.Call(ctx, "save", inst); err != nil {
		return err
	}
	s.logger.Debug().Str("entity", s.Name()).Msg("document saved remotely")
	return nil
}

// Delete removes the record by identifier through the remote side.
func (s *RemoteSet) Delete(ctx context.Context, id string) error {
	if _, err := s.proxy.Call(ctx, "delete", id); err != nil {
		return err
	}
	return nil
}
