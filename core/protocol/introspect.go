package protocol

import (
	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/fault"
)

// ComponentSchema is the wire form of a component descriptor, as returned by
// introspection. The issuing side synthesizes proxy components from these.
type ComponentSchema struct {
	Name               string           `json:"name"`
	Kind               string           `json:"kind"`
	Identifier         string           `json:"identifier,omitempty"`
	ClassProperties    []PropertySchema `json:"classProperties,omitempty"`
	InstanceProperties []PropertySchema `json:"instanceProperties,omitempty"`
	RelatedComponents  []string         `json:"relatedComponents,omitempty"`
}

// PropertySchema describes one property on the wire.
type PropertySchema struct {
	Name            string            `json:"name"`
	Kind            string            `json:"kind"`
	ValueType       string            `json:"valueType,omitempty"`
	Ref             string            `json:"ref,omitempty"`
	Exposure        ExposureSchema    `json:"exposure"`
	Default         any               `json:"default,omitempty"`
	DefaultFunction string            `json:"defaultFunction,omitempty"`
	Validators      []ValidatorSchema `json:"validators,omitempty"`
}

// ExposureSchema is the wire form of an exposure map.
type ExposureSchema struct {
	Get  bool `json:"get,omitempty"`
	Set  bool `json:"set,omitempty"`
	Call bool `json:"call,omitempty"`
}

// ValidatorSchema is the wire form of an attribute validator.
type ValidatorSchema struct {
	Rule    string `json:"rule"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// DescribeComponent converts a descriptor to its wire form, annotated with
// the component names its attributes reference so the issuing side can
// resolve cross-references without a second round trip.
func DescribeComponent(d *component.Descriptor) ComponentSchema {
	return ComponentSchema{
		Name:               d.Name,
		Kind:               string(d.Kind),
		Identifier:         d.Identifier,
		ClassProperties:    describeProperties(d.ClassProperties),
		InstanceProperties: describeProperties(d.InstanceProperties),
		RelatedComponents:  d.RelatedComponents(),
	}
}

func describeProperties(props []component.Property) []PropertySchema {
	var out []PropertySchema
	for i := range props {
		p := &props[i]
		ps := PropertySchema{
			Name:      p.Name,
			Kind:      string(p.Kind),
			ValueType: p.ValueType,
			Ref:       p.Ref,
			Exposure:  ExposureSchema{Get: p.Exposure.Get, Set: p.Exposure.Set, Call: p.Exposure.Call},
		}
		if p.DefaultFunc != nil || p.DefaultSource != "" {
			ps.DefaultFunction = p.DefaultSource
		} else if p.Default != nil {
			ps.Default = p.Default
		}
		for _, v := range p.Validators {
			ps.Validators = append(ps.Validators, ValidatorSchema{Rule: v.Rule, Value: v.Value, Message: v.Message})
		}
		out = append(out, ps)
	}
	return out
}

// BuildDescriptor reconstructs a read-only proxy descriptor from its wire
// form. Validators are rebuilt from the shared rule table; unknown rule
// names fail decoding. Function defaults stay metadata and are never
// executed on the proxy side.
func BuildDescriptor(s ComponentSchema) (*component.Descriptor, error) {
	d := &component.Descriptor{
		Name:       s.Name,
		Kind:       component.Kind(s.Kind),
		Identifier: s.Identifier,
	}
	var err error
	if d.ClassProperties, err = buildProperties(s.Name, s.ClassProperties); err != nil {
		return nil, err
	}
	if d.InstanceProperties, err = buildProperties(s.Name, s.InstanceProperties); err != nil {
		return nil, err
	}
	return d, nil
}

func buildProperties(componentName string, schemas []PropertySchema) ([]component.Property, error) {
	var out []component.Property
	for _, ps := range schemas {
		p := component.Property{
			Name:          ps.Name,
			Kind:          component.PropertyKind(ps.Kind),
			ValueType:     ps.ValueType,
			Ref:           ps.Ref,
			Default:       ps.Default,
			DefaultSource: ps.DefaultFunction,
			Exposure:      component.Exposure{Get: ps.Exposure.Get, Set: ps.Exposure.Set, Call: ps.Exposure.Call},
		}
		for _, vs := range ps.Validators {
			if !component.KnownRule(vs.Rule) {
				return nil, fault.Deserialization("component %s: unknown validator rule %q on %s", componentName, vs.Rule, ps.Name)
			}
			p.Validators = append(p.Validators, component.Validator{Rule: vs.Rule, Value: vs.Value, Message: vs.Message})
		}
		out = append(out, p)
	}
	return out, nil
}
