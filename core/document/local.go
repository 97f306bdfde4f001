// Package document layers the CRUD lifecycle over the registry: create, get,
// find, save and delete with partial-projection reads, filtered and
// paginated listing, and recursive reference resolution. Local members
// execute directly against the storage collaborator; remote members issue
// invocations through a client against the authoritative local
// implementation on the other side.
package document

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tetherlab/tether/core/codec"
	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/fault"
	"github.com/tetherlab/tether/core/registry"
	"github.com/tetherlab/tether/core/storage"
)

// LocalSet is a storage-backed entity implementation.
type LocalSet struct {
	comp   *component.Component
	store  storage.Store
	reg    *registry.Registry
	logger zerolog.Logger
}

// NewLocalSet creates a local member over the given storage. The registry is
// attached later with UseRegistry, once all members exist.
func NewLocalSet(comp *component.Component, store storage.Store, logger zerolog.Logger) *LocalSet {
	return &LocalSet{comp: comp, store: store, logger: logger}
}

// UseRegistry injects the registry consulted for reference resolution.
func (s *LocalSet) UseRegistry(reg *registry.Registry) { s.reg = reg }

// Name returns the entity name.
func (s *LocalSet) Name() string { return s.comp.Name() }

// Kind reports that this member executes locally.
func (s *LocalSet) Kind() registry.MemberKind { return registry.Local }

// Descriptor returns the entity's descriptor.
func (s *LocalSet) Descriptor() *component.Descriptor { return s.comp.Descriptor() }

// Component returns the entity's component, with bound methods.
func (s *LocalSet) Component() *component.Component { return s.comp }

// Create builds a new instance with a generated identifier and the supplied
// attributes set; everything else stays unset and no I/O occurs.
func (s *LocalSet) Create(attrs map[string]any) (*component.Instance, error) {
	inst := component.NewInstance(s.comp.Descriptor())
	inst.SetID(uuid.NewString())
	for name, value := range attrs {
		if err := inst.Set(name, value); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// Get materializes a record by identifier.
func (s *LocalSet) Get(ctx context.Context, id string, opts registry.GetOptions) (*component.Instance, error) {
	ctx, cache := withFetchCache(ctx)
	if inst, ok := cache.lookup(s.Name(), id); ok {
		return inst, nil
	}

	if err := s.store.EnsureCollection(ctx, s.Name()); err != nil {
		return nil, err
	}
	attrs, err := s.store.Get(ctx, s.Name(), id)
	if err != nil {
		if fault.IsNotFound(err) && opts.AllowMissing {
			return nil, nil
		}
		return nil, err
	}
	return s.materialize(ctx, cache, id, attrs, opts.Return)
}

// Find lists records matching a flat equality filter, in insertion order,
// after skip/limit pagination.
func (s *LocalSet) Find(ctx context.Context, opts registry.FindOptions) ([]*component.Instance, error) {
	ctx, cache := withFetchCache(ctx)

	if err := s.store.EnsureCollection(ctx, s.Name()); err != nil {
		return nil, err
	}
	records, err := s.store.Scan(ctx, s.Name())
	if err != nil {
		return nil, err
	}

	identifier := s.comp.Descriptor().Identifier
	var matched []storage.Record
	for _, rec := range records {
		if matchesFilter(identifier, rec, opts.Filter) {
			matched = append(matched, rec)
		}
	}
	if opts.Skip > 0 {
		if opts.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	instances := make([]*component.Instance, 0, len(matched))
	for _, rec := range matched {
		inst, ok := cache.lookup(s.Name(), rec.ID)
		if !ok {
			if inst, err = s.materialize(ctx, cache, rec.ID, rec.Attributes, opts.Return); err != nil {
				return nil, err
			}
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Save persists the instance's set attributes. A save with nothing set is a
// no-op; unchanged attributes never have to be re-sent because storage
// merges. Validators run here as the authoritative write check.
func (s *LocalSet) Save(ctx context.Context, inst *component.Instance) error {
	desc := s.comp.Descriptor()
	id, ok := inst.ID()
	if !ok {
		return fmt.Errorf("cannot save %s instance without identifier", s.Name())
	}

	setAttrs := inst.SetAttributeNames()
	if len(setAttrs) == 0 {
		return nil
	}

	wire := make(map[string]any, len(setAttrs))
	for _, name := range setAttrs {
		if name == desc.Identifier {
			continue
		}
		value, err := inst.Get(name)
		if err != nil {
			return err
		}
		p, err := desc.Attribute(name)
		if err != nil {
			return err
		}
		if !component.IsUndefined(value) {
			if _, isRef := value.(*component.Instance); !isRef {
				for _, v := range p.Validators {
					if err := component.Check(v, name, value); err != nil {
						return err
					}
				}
			}
		}
		// References persist as identifier-only stubs.
		if ref, isRef := value.(*component.Instance); isRef {
			value = stubOf(ref)
		}
		sv, err := codec.Serialize(value, codec.SerializeOptions{})
		if err != nil {
			return err
		}
		wire[name] = sv
	}

	if err := s.store.EnsureCollection(ctx, s.Name()); err != nil {
		return err
	}
	if err := s.store.Put(ctx, s.Name(), id, wire); err != nil {
		return err
	}
	s.logger.Debug().Str("entity", s.Name()).Str("id", id).Int("attributes", len(wire)).Msg("document saved")
	return nil
}

// Delete removes the record by identifier.
func (s *LocalSet) Delete(ctx context.Context, id string) error {
	if err := s.store.EnsureCollection(ctx, s.Name()); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.Name(), id); err != nil {
		return err
	}
	s.logger.Debug().Str("entity", s.Name()).Str("id", id).Msg("document deleted")
	return nil
}

// materialize builds an instance from stored attributes under a projection,
// resolving reference attributes recursively. The instance enters the fetch
// cache before references resolve so reference cycles terminate.
func (s *LocalSet) materialize(ctx context.Context, cache fetchCache, id string, stored map[string]any, projection registry.Projection) (*component.Instance, error) {
	desc := s.comp.Descriptor()
	inst := component.NewInstance(desc)
	inst.SetID(id)
	cache.put(s.Name(), id, inst)

	for _, name := range desc.AttributeNames() {
		if name == desc.Identifier || !projection.Includes(name) {
			continue
		}
		raw, present := stored[name]
		if !present {
			continue
		}
		value, err := codec.Deserialize(raw, codec.DeserializeOptions{Resolver: s.resolver()})
		if err != nil {
			return nil, err
		}
		p, err := desc.Attribute(name)
		if err != nil {
			return nil, err
		}
		if p.ValueType == component.ValueTypeRef {
			if value, err = s.resolveReference(ctx, p, value); err != nil {
				return nil, err
			}
		}
		inst.Apply(name, value)
	}
	return inst, nil
}

// resolveReference swaps an identifier-only stub for the referenced entity's
// default projection. A reference already materialized in this read
// operation is reused; a dangling reference keeps the stub.
func (s *LocalSet) resolveReference(ctx context.Context, p *component.Property, value any) (any, error) {
	stub, ok := value.(*component.Instance)
	if !ok {
		return value, nil
	}
	refID, ok := stub.ID()
	if !ok {
		return value, nil
	}
	if s.reg == nil {
		return value, nil
	}
	member, ok := s.reg.Member(p.Ref)
	if !ok {
		return value, nil
	}
	resolved, err := member.Get(ctx, refID, registry.GetOptions{AllowMissing: true})
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return stub, nil
	}
	return resolved, nil
}

func (s *LocalSet) resolver() codec.Resolver {
	if s.reg == nil {
		return nil
	}
	return registryResolver{reg: s.reg}
}

// registryResolver adapts the registry to the serializer's descriptor
// lookup.
type registryResolver struct {
	reg *registry.Registry
}

func (r registryResolver) Descriptor(name string) (*component.Descriptor, bool) {
	m, ok := r.reg.Member(name)
	if !ok {
		return nil, false
	}
	return m.Descriptor(), true
}

// stubOf builds an identifier-only instance referencing the same record.
func stubOf(inst *component.Instance) *component.Instance {
	stub := component.NewInstance(inst.Descriptor())
	if id, ok := inst.ID(); ok {
		stub.SetID(id)
	}
	return stub
}

// matchesFilter reports whether a record satisfies a flat equality filter.
// The identifier lives on the record itself rather than among the stored
// attributes, so a filter on it compares against the record ID. Other values
// compare after a JSON round trip so live and stored numeric forms agree.
func matchesFilter(identifier string, rec storage.Record, filter map[string]any) bool {
	for name, want := range filter {
		var got any
		present := false
		if name == identifier {
			got, present = rec.ID, true
		} else {
			got, present = rec.Attributes[name]
		}
		if !present {
			return false
		}
		if !reflect.DeepEqual(normalizeJSON(got), normalizeJSON(want)) {
			return false
		}
	}
	return true
}

func normalizeJSON(v any) any {
	encoded, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return v
	}
	return out
}
