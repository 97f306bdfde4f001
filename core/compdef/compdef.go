// Package compdef loads declarative component definitions from YAML files
// and turns them into descriptor tables. Definitions replace annotation
// syntax: each file declares one component's attributes, methods, exposure,
// defaults and validators; reusable fragments declare shared attribute sets
// merged into components that name them.
package compdef

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tetherlab/tether/core/component"
)

// Definition is the YAML shape of one component.
type Definition struct {
	// Component is the unique, case-sensitive component name.
	Component string `yaml:"component"`

	// Kind is one of component, model, entity. Defaults to entity.
	Kind string `yaml:"kind,omitempty"`

	// Identifier names the identifier attribute for entities. Defaults to
	// "id".
	Identifier string `yaml:"identifier,omitempty"`

	// Mixins lists fragment names merged into this component.
	Mixins []string `yaml:"mixins,omitempty"`

	// Attributes declares instance attributes.
	Attributes map[string]AttributeDef `yaml:"attributes,omitempty"`

	// Methods declares instance methods.
	Methods map[string]MethodDef `yaml:"methods,omitempty"`

	// ClassMethods declares class-level methods.
	ClassMethods map[string]MethodDef `yaml:"classMethods,omitempty"`
}

// Fragment is a reusable attribute set, referenced by name from Mixins.
type Fragment struct {
	Fragment   string                  `yaml:"fragment"`
	Attributes map[string]AttributeDef `yaml:"attributes,omitempty"`
}

// AttributeDef is the YAML shape of one attribute.
type AttributeDef struct {
	Type       string               `yaml:"type"`
	To         string               `yaml:"to,omitempty"` // target component for ref type
	Expose     component.Exposure   `yaml:"expose,omitempty"`
	Default    any                  `yaml:"default,omitempty"`
	Validators []component.Validator `yaml:"validators,omitempty"`
}

// MethodDef is the YAML shape of one method.
type MethodDef struct {
	Expose component.Exposure `yaml:"expose,omitempty"`
}

// Handlers maps "Component.method" to prototype method implementations and
// "Component.method" under ClassHandlers to class-level ones. A declared
// method with no handler is a load error.
type Handlers struct {
	Methods      map[string]component.MethodFunc
	ClassMethods map[string]component.ClassMethodFunc
}

// LoadDir loads every component definition under dir (fragments first) and
// binds method handlers. Files named *.yaml or *.yml are considered;
// subdirectories are walked.
func LoadDir(dir string, handlers Handlers) ([]*component.Component, error) {
	defs, fragments, err := parseDir(dir)
	if err != nil {
		return nil, err
	}

	fragmentsByName := make(map[string]Fragment, len(fragments))
	for _, f := range fragments {
		if _, dup := fragmentsByName[f.Fragment]; dup {
			return nil, fmt.Errorf("fragment %q defined twice", f.Fragment)
		}
		fragmentsByName[f.Fragment] = f
	}

	var comps []*component.Component
	for _, def := range defs {
		comp, err := Build(def, fragmentsByName, handlers)
		if err != nil {
			return nil, err
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

// Build turns one definition into a component with bound handlers.
func Build(def Definition, fragments map[string]Fragment, handlers Handlers) (*component.Component, error) {
	if def.Component == "" {
		return nil, fmt.Errorf("component definition has no name")
	}
	kind := component.Kind(def.Kind)
	if def.Kind == "" {
		kind = component.KindEntity
	}
	switch kind {
	case component.KindComponent, component.KindModel, component.KindEntity:
	default:
		return nil, fmt.Errorf("component %s: unknown kind %q", def.Component, def.Kind)
	}

	desc := component.NewDescriptor(def.Component, kind)
	if def.Identifier != "" && kind == component.KindEntity {
		if p := desc.InstanceProperty(desc.Identifier); p != nil {
			p.Name = def.Identifier
		}
		desc.Identifier = def.Identifier
	}

	for _, name := range sortedKeys(def.Attributes) {
		prop, err := buildAttribute(def.Component, name, def.Attributes[name])
		if err != nil {
			return nil, err
		}
		if name == desc.Identifier {
			continue
		}
		if err := desc.AddInstanceProperty(prop); err != nil {
			return nil, err
		}
	}

	for _, mixin := range def.Mixins {
		frag, ok := fragments[mixin]
		if !ok {
			return nil, fmt.Errorf("component %s: unknown mixin %q", def.Component, mixin)
		}
		var props []component.Property
		for _, name := range sortedKeys(frag.Attributes) {
			prop, err := buildAttribute(def.Component, name, frag.Attributes[name])
			if err != nil {
				return nil, err
			}
			props = append(props, prop)
		}
		desc.MergeFragment(props)
	}

	for _, name := range sortedKeys(def.Methods) {
		err := desc.AddInstanceProperty(component.Property{
			Name:     name,
			Kind:     component.PropMethod,
			Exposure: def.Methods[name].Expose,
		})
		if err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(def.ClassMethods) {
		err := desc.AddClassProperty(component.Property{
			Name:     name,
			Kind:     component.PropMethod,
			Exposure: def.ClassMethods[name].Expose,
		})
		if err != nil {
			return nil, err
		}
	}

	comp := component.NewComponent(desc)
	for name := range def.Methods {
		key := def.Component + "." + name
		fn, ok := handlers.Methods[key]
		if !ok {
			return nil, fmt.Errorf("method %s declared but no handler registered", key)
		}
		if err := comp.BindMethod(name, fn); err != nil {
			return nil, err
		}
	}
	for name := range def.ClassMethods {
		key := def.Component + "." + name
		fn, ok := handlers.ClassMethods[key]
		if !ok {
			return nil, fmt.Errorf("class method %s declared but no handler registered", key)
		}
		if err := comp.BindClassMethod(name, fn); err != nil {
			return nil, err
		}
	}
	return comp, nil
}

func buildAttribute(componentName, name string, def AttributeDef) (component.Property, error) {
	valueType := def.Type
	if valueType == "" {
		valueType = component.ValueTypeString
	}
	switch valueType {
	case component.ValueTypeString, component.ValueTypeNumber, component.ValueTypeBoolean,
		component.ValueTypeObject, component.ValueTypeArray:
	case component.ValueTypeRef:
		if def.To == "" {
			return component.Property{}, fmt.Errorf("component %s: ref attribute %q has no target", componentName, name)
		}
	default:
		return component.Property{}, fmt.Errorf("component %s: attribute %q has unknown type %q", componentName, name, valueType)
	}

	for _, v := range def.Validators {
		if !component.KnownRule(v.Rule) {
			return component.Property{}, fmt.Errorf("component %s: attribute %q uses unknown validator rule %q", componentName, name, v.Rule)
		}
	}

	return component.Property{
		Name:       name,
		Kind:       component.PropAttribute,
		ValueType:  valueType,
		Ref:        def.To,
		Default:    def.Default,
		Validators: def.Validators,
		Exposure:   def.Expose,
	}, nil
}

func parseDir(dir string) ([]Definition, []Fragment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var defs []Definition
	var fragments []Fragment
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			subDefs, subFrags, err := parseDir(path)
			if err != nil {
				return nil, nil, err
			}
			defs = append(defs, subDefs...)
			fragments = append(fragments, subFrags...)
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".yaml") && !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read file %s: %w", path, err)
		}

		var probe struct {
			Component string `yaml:"component"`
			Fragment  string `yaml:"fragment"`
		}
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return nil, nil, fmt.Errorf("parse yaml %s: %w", path, err)
		}

		switch {
		case probe.Fragment != "":
			var frag Fragment
			if err := yaml.Unmarshal(data, &frag); err != nil {
				return nil, nil, fmt.Errorf("parse fragment %s: %w", path, err)
			}
			fragments = append(fragments, frag)
		case probe.Component != "":
			var def Definition
			if err := yaml.Unmarshal(data, &def); err != nil {
				return nil, nil, fmt.Errorf("parse component %s: %w", path, err)
			}
			defs = append(defs, def)
		default:
			return nil, nil, fmt.Errorf("%s declares neither a component nor a fragment", path)
		}
	}
	return defs, fragments, nil
}

func sortedKeys[M map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
