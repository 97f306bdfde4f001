package document

import (
	"context"
	"fmt"

	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/registry"
)

// CRUD verbs exposed as implicit class methods on every local entity, so
// remote members on the other side can drive the full document lifecycle
// through plain invocations.
var crudVerbs = []string{"get", "find", "save", "delete"}

// BindCRUD declares (if absent) and binds the implicit CRUD class methods on
// the entity's component. Call before the component set is handed to an
// executor.
func BindCRUD(set *LocalSet) error {
	desc := set.Component().Descriptor()
	for _, verb := range crudVerbs {
		if desc.ClassProperty(verb) == nil {
			err := desc.AddClassProperty(component.Property{
				Name:     verb,
				Kind:     component.PropMethod,
				Exposure: component.Exposure{Call: true},
			})
			if err != nil {
				return err
			}
		}
	}

	comp := set.Component()
	if err := comp.BindClassMethod("get", set.crudGet); err != nil {
		return err
	}
	if err := comp.BindClassMethod("find", set.crudFind); err != nil {
		return err
	}
	if err := comp.BindClassMethod("save", set.crudSave); err != nil {
		return err
	}
	return comp.BindClassMethod("delete", set.crudDelete)
}

func (s *LocalSet) crudGet(ctx context.Context, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s.get requires an identifier", s.Name())
	}
	id, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s.get identifier must be a string, got %T", s.Name(), args[0])
	}
	var rawOpts any
	if len(args) > 1 {
		rawOpts = args[1]
	}
	opts, err := registry.GetOptionsFromWire(rawOpts)
	if err != nil {
		return nil, err
	}
	inst, err := s.Get(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, nil
	}
	return inst, nil
}

func (s *LocalSet) crudFind(ctx context.Context, args []any) (any, error) {
	var rawOpts any
	if len(args) > 0 {
		rawOpts = args[0]
	}
	opts, err := registry.FindOptionsFromWire(rawOpts)
	if err != nil {
		return nil, err
	}
	instances, err := s.Find(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(instances))
	for i, inst := range instances {
		out[i] = inst
	}
	return out, nil
}

func (s *LocalSet) crudSave(ctx context.Context, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s.save requires an instance", s.Name())
	}
	inst, ok := args[0].(*component.Instance)
	if !ok {
		return nil, fmt.Errorf("%s.save argument must be an instance, got %T", s.Name(), args[0])
	}
	if err := s.Save(ctx, inst); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *LocalSet) crudDelete(ctx context.Context, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s.delete requires an identifier", s.Name())
	}
	id, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s.delete identifier must be a string, got %T", s.Name(), args[0])
	}
	if err := s.Delete(ctx, id); err != nil {
		return nil, err
	}
	return nil, nil
}
