// Package component defines the component model: descriptor tables for named
// entity types, per-property exposure, attribute validators and defaults, and
// live instances with per-attribute set/unset tracking.
package component

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetherlab/tether/core/fault"
)

// Kind classifies a component type.
type Kind string

const (
	KindComponent Kind = "component"
	KindModel     Kind = "model"
	KindEntity    Kind = "entity"
)

// PropertyKind distinguishes attributes from methods.
type PropertyKind string

const (
	PropAttribute PropertyKind = "attribute"
	PropMethod    PropertyKind = "method"
)

// Value types for attributes. ValueTypeRef marks a cross-component
// reference; the target component name lives in Property.Ref.
const (
	ValueTypeString  = "string"
	ValueTypeNumber  = "number"
	ValueTypeBoolean = "boolean"
	ValueTypeObject  = "object"
	ValueTypeArray   = "array"
	ValueTypeRef     = "ref"
)

// Exposure is the permission set governing remote access to a property.
// An operation whose flag is absent is rejected, never silently ignored.
type Exposure struct {
	Get  bool `json:"get,omitempty" yaml:"get,omitempty"`
	Set  bool `json:"set,omitempty" yaml:"set,omitempty"`
	Call bool `json:"call,omitempty" yaml:"call,omitempty"`
}

// Validator is a named validation rule attached to an attribute.
// Rules are identified by name so they can travel in introspection payloads
// and be rebuilt on the consuming side from the shared rule table.
type Validator struct {
	Rule    string `json:"rule" yaml:"rule"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// DefaultFunc produces an attribute default with the owning instance as
// context. It runs at first access and the result is cached on the instance.
type DefaultFunc func(inst *Instance) any

// Property describes one attribute or method of a component.
type Property struct {
	Name      string
	Kind      PropertyKind
	ValueType string
	Ref       string // target component for ValueTypeRef attributes

	Default       any
	DefaultFunc   DefaultFunc
	DefaultSource string // expression text for introspection, never executed

	Validators []Validator
	Exposure   Exposure
}

// HasDefault reports whether the property declares any default.
func (p *Property) HasDefault() bool {
	return p != nil && (p.Default != nil || p.DefaultFunc != nil)
}

// Descriptor describes an entity type: its class-level and prototype-level
// properties. Immutable after registration.
type Descriptor struct {
	Name       string
	Kind       Kind
	Identifier string // identifier attribute name, entities only

	ClassProperties    []Property
	InstanceProperties []Property
}

// NewDescriptor creates a descriptor. Entities get an implicit string
// identifier attribute ("id" unless overridden later) exposed for get.
func NewDescriptor(name string, kind Kind) *Descriptor {
	d := &Descriptor{Name: name, Kind: kind}
	if kind == KindEntity {
		d.Identifier = "id"
		d.InstanceProperties = append(d.InstanceProperties, Property{
			Name:      "id",
			Kind:      PropAttribute,
			ValueType: ValueTypeString,
			Exposure:  Exposure{Get: true},
		})
	}
	return d
}

// AddClassProperty appends a class-level property.
func (d *Descriptor) AddClassProperty(p Property) error {
	if d.ClassProperty(p.Name) != nil {
		return fmt.Errorf("component %s: duplicate class property %q", d.Name, p.Name)
	}
	d.ClassProperties = append(d.ClassProperties, p)
	return nil
}

// AddInstanceProperty appends a prototype-level property.
func (d *Descriptor) AddInstanceProperty(p Property) error {
	if d.InstanceProperty(p.Name) != nil {
		return fmt.Errorf("component %s: duplicate instance property %q", d.Name, p.Name)
	}
	d.InstanceProperties = append(d.InstanceProperties, p)
	return nil
}

// MergeFragment merges a reusable property fragment into the descriptor.
// Existing properties win over fragment properties of the same name.
func (d *Descriptor) MergeFragment(props []Property) {
	for _, p := range props {
		if d.InstanceProperty(p.Name) == nil {
			d.InstanceProperties = append(d.InstanceProperties, p)
		}
	}
}

// ClassProperty returns the named class-level property, or nil.
func (d *Descriptor) ClassProperty(name string) *Property {
	for i := range d.ClassProperties {
		if d.ClassProperties[i].Name == name {
			return &d.ClassProperties[i]
		}
	}
	return nil
}

// InstanceProperty returns the named prototype-level property, or nil.
func (d *Descriptor) InstanceProperty(name string) *Property {
	for i := range d.InstanceProperties {
		if d.InstanceProperties[i].Name == name {
			return &d.InstanceProperties[i]
		}
	}
	return nil
}

// Attribute returns the named instance attribute.
func (d *Descriptor) Attribute(name string) (*Property, error) {
	p := d.InstanceProperty(name)
	if p == nil || p.Kind != PropAttribute {
		return nil, fault.UnknownAttribute(d.Name, name)
	}
	return p, nil
}

// AttributeNames returns declared instance attribute names in declaration
// order.
func (d *Descriptor) AttributeNames() []string {
	var names []string
	for i := range d.InstanceProperties {
		if d.InstanceProperties[i].Kind == PropAttribute {
			names = append(names, d.InstanceProperties[i].Name)
		}
	}
	return names
}

// RelatedComponents returns the component names referenced by ref-typed
// attributes, sorted and de-duplicated.
func (d *Descriptor) RelatedComponents() []string {
	seen := map[string]bool{}
	for _, list := range [][]Property{d.ClassProperties, d.InstanceProperties} {
		for i := range list {
			if list[i].ValueType == ValueTypeRef && list[i].Ref != "" {
				seen[list[i].Ref] = true
			}
		}
	}
	var names []string
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MethodFunc is a prototype method implementation.
type MethodFunc func(ctx context.Context, recv *Instance, args []any) (any, error)

// ClassMethodFunc is a class-level method implementation.
type ClassMethodFunc func(ctx context.Context, args []any) (any, error)

// Component pairs a descriptor with the method implementations bound to it.
// The consuming side holds descriptors only; the authoritative side binds
// handlers at registration time.
type Component struct {
	descriptor   *Descriptor
	methods      map[string]MethodFunc
	classMethods map[string]ClassMethodFunc
}

// NewComponent creates a component around a descriptor with no bound methods.
func NewComponent(d *Descriptor) *Component {
	return &Component{
		descriptor:   d,
		methods:      make(map[string]MethodFunc),
		classMethods: make(map[string]ClassMethodFunc),
	}
}

// Descriptor returns the component's descriptor.
func (c *Component) Descriptor() *Descriptor { return c.descriptor }

// Name returns the component name.
func (c *Component) Name() string { return c.descriptor.Name }

// BindMethod binds a prototype method implementation to a declared method.
func (c *Component) BindMethod(name string, fn MethodFunc) error {
	p := c.descriptor.InstanceProperty(name)
	if p == nil || p.Kind != PropMethod {
		return fmt.Errorf("component %s declares no instance method %q", c.Name(), name)
	}
	c.methods[name] = fn
	return nil
}

// BindClassMethod binds a class-level method implementation.
func (c *Component) BindClassMethod(name string, fn ClassMethodFunc) error {
	p := c.descriptor.ClassProperty(name)
	if p == nil || p.Kind != PropMethod {
		return fmt.Errorf("component %s declares no class method %q", c.Name(), name)
	}
	c.classMethods[name] = fn
	return nil
}

// Method returns the bound prototype method implementation.
func (c *Component) Method(name string) (MethodFunc, bool) {
	fn, ok := c.methods[name]
	return fn, ok
}

// ClassMethod returns the bound class-level method implementation.
func (c *Component) ClassMethod(name string) (ClassMethodFunc, bool) {
	fn, ok := c.classMethods[name]
	return fn, ok
}

// UnboundMethods returns declared methods with no bound implementation.
func (c *Component) UnboundMethods() []string {
	var missing []string
	for i := range c.descriptor.ClassProperties {
		p := &c.descriptor.ClassProperties[i]
		if p.Kind == PropMethod {
			if _, ok := c.classMethods[p.Name]; !ok {
				missing = append(missing, p.Name)
			}
		}
	}
	for i := range c.descriptor.InstanceProperties {
		p := &c.descriptor.InstanceProperties[i]
		if p.Kind == PropMethod {
			if _, ok := c.methods[p.Name]; !ok {
				missing = append(missing, p.Name)
			}
		}
	}
	return missing
}
