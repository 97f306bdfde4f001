package component

import (
	"github.com/tetherlab/tether/core/fault"
)

// undefinedValue is the loaded-but-undefined marker. Distinct from an unset
// attribute: an attribute can be set to Undefined and must survive transport
// that way.
type undefinedValue struct{}

// Undefined is the singleton loaded-but-undefined value.
var Undefined = undefinedValue{}

// IsUndefined reports whether v is the Undefined marker.
func IsUndefined(v any) bool {
	_, ok := v.(undefinedValue)
	return ok
}

// Instance is one live occurrence of a component. Each attribute is
// independently set or unset; unset attributes never travel over the wire.
type Instance struct {
	desc  *Descriptor
	attrs map[string]any
	isSet map[string]bool
}

// NewInstance creates an instance with every attribute unset.
func NewInstance(d *Descriptor) *Instance {
	return &Instance{
		desc:  d,
		attrs: make(map[string]any),
		isSet: make(map[string]bool),
	}
}

// Descriptor returns the instance's component descriptor.
func (i *Instance) Descriptor() *Descriptor { return i.desc }

// ComponentName returns the owning component's name.
func (i *Instance) ComponentName() string { return i.desc.Name }

// ID returns the identifier attribute value, if the component declares one
// and it is set.
func (i *Instance) ID() (string, bool) {
	if i.desc.Identifier == "" || !i.isSet[i.desc.Identifier] {
		return "", false
	}
	id, ok := i.attrs[i.desc.Identifier].(string)
	return id, ok
}

// SetID stores the identifier attribute, bypassing validators.
func (i *Instance) SetID(id string) {
	if i.desc.Identifier != "" {
		i.Apply(i.desc.Identifier, id)
	}
}

// IsSet reports whether the attribute has a value, even if that value is
// Undefined.
func (i *Instance) IsSet(name string) bool { return i.isSet[name] }

// Get returns the attribute value. An unset attribute with a declared
// default resolves and caches the default, marking the attribute set;
// otherwise the read fails with an unset-attribute error.
func (i *Instance) Get(name string) (any, error) {
	p, err := i.desc.Attribute(name)
	if err != nil {
		return nil, err
	}
	if i.isSet[name] {
		return i.attrs[name], nil
	}
	if p.DefaultFunc != nil {
		v := p.DefaultFunc(i)
		i.Apply(name, v)
		return v, nil
	}
	if p.Default != nil {
		i.Apply(name, p.Default)
		return p.Default, nil
	}
	return nil, fault.UnsetAttribute(i.desc.Name, name)
}

// Set assigns the attribute after running its declared validators in
// declaration order; the first failure rejects the assignment.
func (i *Instance) Set(name string, value any) error {
	p, err := i.desc.Attribute(name)
	if err != nil {
		return err
	}
	if !IsUndefined(value) {
		for _, v := range p.Validators {
			if err := Check(v, name, value); err != nil {
				return err
			}
		}
	}
	i.Apply(name, value)
	return nil
}

// Apply stores the attribute value without validation. Used when merging
// decoded transport values and response diffs, where the authoritative side
// already validated.
func (i *Instance) Apply(name string, value any) {
	i.attrs[name] = value
	i.isSet[name] = true
}

// Unset removes the attribute value, returning it to the not-loaded state.
func (i *Instance) Unset(name string) {
	delete(i.attrs, name)
	delete(i.isSet, name)
}

// SetAttributeNames returns the set attribute names in declaration order.
func (i *Instance) SetAttributeNames() []string {
	var names []string
	for _, name := range i.desc.AttributeNames() {
		if i.isSet[name] {
			names = append(names, name)
		}
	}
	return names
}
