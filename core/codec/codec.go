// Package codec implements the bidirectional mapping between live values and
// transport-safe plain values. Non-JSON primitives travel as tagged maps:
// {"__undefined": true}, {"__function": source}, {"__error": message},
// {"__class": name} and {"__component": name, ...setAttributes}. Everything
// else passes through as JSON-representable data.
package codec

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/fault"
)

// Tag keys recognized on the wire.
const (
	tagUndefined = "__undefined"
	tagFunction  = "__function"
	tagError     = "__error"
	tagCode      = "code"
	tagClass     = "__class"
	tagComponent = "__component"
)

// Function is function source text traveling as metadata. It is never
// executed on the receiving side.
type Function struct {
	Source string
}

// ClassRef is a reference to a component class, as opposed to an instance.
type ClassRef struct {
	Name string
}

// Resolver maps component names to descriptors during decoding.
type Resolver interface {
	Descriptor(name string) (*component.Descriptor, bool)
}

// SerializeOptions control which instance attributes are emitted.
type SerializeOptions struct {
	// FilterGet emits only get-exposed attributes. Used by the executing
	// side for results and diffs, so attributes not exposed for reading
	// never leave the process.
	FilterGet bool

	// FilterSet emits only set-exposed attributes. Used by the issuing side
	// for outbound instances, so writes the exposure model forbids never
	// reach the wire.
	FilterSet bool
}

// DeserializeOptions control decoding.
type DeserializeOptions struct {
	// Resolver supplies known component descriptors. Decoding a component
	// tag with a nil resolver or an unknown name fails.
	Resolver Resolver

	// EnforceSet rejects incoming instance attributes that are not
	// set-exposed. Used by the executing side; identifier attributes are
	// always admitted.
	EnforceSet bool
}

// Serialize converts a live value into its transport representation.
func Serialize(v any, opts SerializeOptions) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int, int32, int64, float32, float64:
		return val, nil
	case Function:
		return map[string]any{tagFunction: val.Source}, nil
	case ClassRef:
		return map[string]any{tagClass: val.Name}, nil
	case *component.Instance:
		return serializeInstance(val, opts)
	case error:
		return serializeError(val), nil
	}
	if component.IsUndefined(v) {
		return map[string]any{tagUndefined: true}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			sv, err := Serialize(rv.Index(i).Interface(), opts)
			if err != nil {
				return nil, err
			}
			out[i] = sv
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot serialize map with %s keys", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		for _, key := range rv.MapKeys() {
			k := key.String()
			if strings.HasPrefix(k, "__") {
				return nil, fmt.Errorf("cannot serialize map key %q: reserved prefix", k)
			}
			sv, err := Serialize(rv.MapIndex(key).Interface(), opts)
			if err != nil {
				return nil, err
			}
			out[k] = sv
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot serialize value of type %T", v)
}

func serializeInstance(inst *component.Instance, opts SerializeOptions) (any, error) {
	desc := inst.Descriptor()
	out := map[string]any{tagComponent: desc.Name}
	for _, name := range inst.SetAttributeNames() {
		p, err := desc.Attribute(name)
		if err != nil {
			return nil, err
		}
		if name != desc.Identifier {
			if opts.FilterGet && !p.Exposure.Get {
				continue
			}
			if opts.FilterSet && !p.Exposure.Set {
				continue
			}
		}
		raw, err := inst.Get(name)
		if err != nil {
			return nil, err
		}
		sv, err := Serialize(raw, opts)
		if err != nil {
			return nil, err
		}
		out[name] = sv
	}
	return out, nil
}

func serializeError(err error) map[string]any {
	out := map[string]any{tagError: err.Error()}
	var fe *fault.Error
	if errors.As(err, &fe) {
		out[tagError] = fe.Message
		if fe.Code != "" {
			out[tagCode] = fe.Code
		}
	}
	return out
}

// Deserialize converts a transport value back into a live value. A decoded
// error tag is returned as the error, never as an ordinary result.
func Deserialize(tv any, opts DeserializeOptions) (any, error) {
	switch val := tv.(type) {
	case nil, bool, string, int, int32, int64, float32, float64:
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			dv, err := Deserialize(item, opts)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	case map[string]any:
		return deserializeMap(val, opts)
	}
	return nil, fault.Deserialization("cannot deserialize value of type %T", tv)
}

func deserializeMap(m map[string]any, opts DeserializeOptions) (any, error) {
	switch {
	case m[tagUndefined] == true:
		return component.Undefined, nil

	case m[tagFunction] != nil:
		src, ok := m[tagFunction].(string)
		if !ok {
			return nil, fault.Deserialization("function tag must carry source text")
		}
		return Function{Source: src}, nil

	case m[tagError] != nil:
		msg, _ := m[tagError].(string)
		code, _ := m[tagCode].(string)
		if code == "" {
			return nil, &fault.Error{Message: msg}
		}
		return nil, &fault.Error{Code: code, Message: msg}

	case m[tagClass] != nil:
		name, ok := m[tagClass].(string)
		if !ok {
			return nil, fault.Deserialization("class tag must carry a component name")
		}
		if opts.Resolver == nil {
			return nil, fault.Deserialization("unknown component %q", name)
		}
		if _, ok := opts.Resolver.Descriptor(name); !ok {
			return nil, fault.Deserialization("unknown component %q", name)
		}
		return ClassRef{Name: name}, nil

	case m[tagComponent] != nil:
		return deserializeInstance(m, opts)
	}

	for k := range m {
		if strings.HasPrefix(k, "__") {
			return nil, fault.Deserialization("unrecognized tag %q", k)
		}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		dv, err := Deserialize(v, opts)
		if err != nil {
			return nil, err
		}
		out[k] = dv
	}
	return out, nil
}

func deserializeInstance(m map[string]any, opts DeserializeOptions) (*component.Instance, error) {
	name, ok := m[tagComponent].(string)
	if !ok {
		return nil, fault.Deserialization("component tag must carry a component name")
	}
	if opts.Resolver == nil {
		return nil, fault.Deserialization("unknown component %q", name)
	}
	desc, ok := opts.Resolver.Descriptor(name)
	if !ok {
		return nil, fault.Deserialization("unknown component %q", name)
	}

	inst := component.NewInstance(desc)
	for k, v := range m {
		if k == tagComponent {
			continue
		}
		if strings.HasPrefix(k, "__") {
			return nil, fault.Deserialization("unrecognized tag %q", k)
		}
		p, err := desc.Attribute(k)
		if err != nil {
			return nil, err
		}
		if opts.EnforceSet && k != desc.Identifier && !p.Exposure.Set {
			return nil, fault.AccessDenied(name, k, "set")
		}
		dv, err := Deserialize(v, opts)
		if err != nil {
			return nil, err
		}
		inst.Apply(k, dv)
	}
	return inst, nil
}
