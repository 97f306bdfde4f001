// Package executor is the receiving side of the query protocol: it decodes
// queries against the local component set, enforces exposure, runs the
// target method, and ships back the result plus the attribute diffs of any
// instance arguments mutated as a side effect.
package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/tetherlab/tether/core/codec"
	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/fault"
	"github.com/tetherlab/tether/core/protocol"
)

// Executor executes decoded queries against a component set.
type Executor struct {
	components *component.Set
	version    int
	logger     zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithVersion overrides the protocol version the executor accepts.
func WithVersion(v int) Option {
	return func(e *Executor) { e.version = v }
}

// WithLogger sets the executor's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an executor over the given component set.
func New(set *component.Set, opts ...Option) *Executor {
	e := &Executor{
		components: set,
		version:    protocol.Version,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Version returns the protocol version the executor speaks.
func (e *Executor) Version() int { return e.version }

// Execute runs one request end to end. Failures are encoded into the
// response as error results; Execute itself never returns an error so the
// transport can stay payload-agnostic.
func (e *Executor) Execute(ctx context.Context, req *protocol.Request) *protocol.Response {
	resp, err := e.execute(ctx, req)
	if err != nil {
		e.logger.Debug().Err(err).Msg("query failed")
		return &protocol.Response{Result: errorResult(err)}
	}
	return resp
}

func (e *Executor) execute(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	// The version gate runs before any query processing.
	if req.Version != e.version {
		return nil, fault.VersionMismatch(req.Version, e.version)
	}

	query, err := protocol.Parse(req.Query)
	if err != nil {
		return nil, err
	}

	switch query.Kind {
	case protocol.QueryIntrospect:
		return e.introspect()
	case protocol.QueryInvoke:
		return e.invoke(ctx, query)
	default:
		return nil, fault.Deserialization("unsupported query kind %q", query.Kind)
	}
}

func (e *Executor) introspect() (*protocol.Response, error) {
	var schemas []protocol.ComponentSchema
	for _, d := range e.components.Descriptors() {
		schemas = append(schemas, protocol.DescribeComponent(d))
	}
	e.logger.Debug().Int("components", len(schemas)).Msg("introspection served")
	return &protocol.Response{Result: schemas}, nil
}

func (e *Executor) invoke(ctx context.Context, query *protocol.Query) (*protocol.Response, error) {
	decodeOpts := codec.DeserializeOptions{Resolver: e.components, EnforceSet: true}

	target, err := codec.Deserialize(query.Target, decodeOpts)
	if err != nil {
		return nil, err
	}
	args := make([]any, len(query.Args))
	for i, raw := range query.Args {
		if args[i], err = codec.Deserialize(raw, decodeOpts); err != nil {
			return nil, err
		}
	}

	// Snapshot the serialized form of every instance among target/args
	// before the call so mutations can be diffed afterwards.
	tracked, err := trackInstances(target, args)
	if err != nil {
		return nil, err
	}

	result, err := e.call(ctx, target, query.Method, args)
	if err != nil {
		return nil, err
	}

	serialized, err := codec.Serialize(result, codec.SerializeOptions{FilterGet: true})
	if err != nil {
		return nil, err
	}

	changes, err := diffTracked(tracked)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().Str("method", query.Method).Int("changes", len(changes)).Msg("invocation served")
	return &protocol.Response{Result: serialized, Changes: changes}, nil
}

func (e *Executor) call(ctx context.Context, target any, method string, args []any) (any, error) {
	switch t := target.(type) {
	case codec.ClassRef:
		comp, ok := e.components.Component(t.Name)
		if !ok {
			return nil, fault.Deserialization("unknown component %q", t.Name)
		}
		p := comp.Descriptor().ClassProperty(method)
		if p == nil || p.Kind != component.PropMethod {
			return nil, fault.UnknownAttribute(t.Name, method)
		}
		if !p.Exposure.Call {
			return nil, fault.AccessDenied(t.Name, method, "call")
		}
		fn, ok := comp.ClassMethod(method)
		if !ok {
			return nil, fmt.Errorf("component %s: class method %q has no implementation", t.Name, method)
		}
		return fn(ctx, args)

	case *component.Instance:
		name := t.ComponentName()
		comp, ok := e.components.Component(name)
		if !ok {
			return nil, fault.Deserialization("unknown component %q", name)
		}
		p := comp.Descriptor().InstanceProperty(method)
		if p == nil || p.Kind != component.PropMethod {
			return nil, fault.UnknownAttribute(name, method)
		}
		if !p.Exposure.Call {
			return nil, fault.AccessDenied(name, method, "call")
		}
		fn, ok := comp.Method(method)
		if !ok {
			return nil, fmt.Errorf("component %s: method %q has no implementation", name, method)
		}
		return fn(ctx, t, args)

	default:
		return nil, fault.Deserialization("invocation target must be a component class or instance, got %T", target)
	}
}

// trackedInstance pairs an instance argument with its pre-call snapshot and
// the stable reference key the diff is reported under.
type trackedInstance struct {
	key      string
	instance *component.Instance
	before   map[string]any
}

func trackInstances(target any, args []any) ([]trackedInstance, error) {
	var tracked []trackedInstance
	seen := map[*component.Instance]bool{}
	add := func(key string, v any) error {
		inst, ok := v.(*component.Instance)
		if !ok || seen[inst] {
			return nil
		}
		seen[inst] = true
		before, err := snapshotSerialized(inst)
		if err != nil {
			return err
		}
		tracked = append(tracked, trackedInstance{key: key, instance: inst, before: before})
		return nil
	}
	if err := add(protocol.TargetKey, target); err != nil {
		return nil, err
	}
	for i, arg := range args {
		if err := add(strconv.Itoa(i), arg); err != nil {
			return nil, err
		}
	}
	return tracked, nil
}

// snapshotSerialized captures the serialized form of every reportable set
// attribute. Snapshotting the serialized value rather than the live one
// keeps the snapshot independent of the instance, so a method that mutates
// an object or array attribute in place still produces a visible diff.
func snapshotSerialized(inst *component.Instance) (map[string]any, error) {
	desc := inst.Descriptor()
	snap := make(map[string]any)
	for _, name := range inst.SetAttributeNames() {
		p, err := desc.Attribute(name)
		if err != nil {
			return nil, err
		}
		if name != desc.Identifier && !p.Exposure.Get {
			continue
		}
		v, err := inst.Get(name)
		if err != nil {
			return nil, err
		}
		sv, err := codec.Serialize(v, codec.SerializeOptions{FilterGet: true})
		if err != nil {
			return nil, err
		}
		snap[name] = sv
	}
	return snap, nil
}

func diffTracked(tracked []trackedInstance) (map[string]map[string]any, error) {
	var changes map[string]map[string]any
	for _, t := range tracked {
		diff, err := diffInstance(t.instance, t.before)
		if err != nil {
			return nil, err
		}
		if len(diff) == 0 {
			continue
		}
		if changes == nil {
			changes = make(map[string]map[string]any)
		}
		changes[t.key] = diff
	}
	return changes, nil
}

// diffInstance computes the serialized values of attributes whose serialized
// form changed between the pre-call and post-call snapshots. Only get-exposed
// attributes appear in the snapshots, so attributes not exposed for reading
// never leave the process.
func diffInstance(inst *component.Instance, before map[string]any) (map[string]any, error) {
	after, err := snapshotSerialized(inst)
	if err != nil {
		return nil, err
	}
	var diff map[string]any
	for _, name := range inst.SetAttributeNames() {
		sv, ok := after[name]
		if !ok {
			continue
		}
		prev, had := before[name]
		if had && reflect.DeepEqual(prev, sv) {
			continue
		}
		if diff == nil {
			diff = make(map[string]any)
		}
		diff[name] = sv
	}
	return diff, nil
}

func errorResult(err error) map[string]any {
	out := map[string]any{"__error": err.Error()}
	var fe *fault.Error
	if errors.As(err, &fe) {
		out["__error"] = fe.Message
		if fe.Code != "" {
			out["code"] = fe.Code
		}
	}
	return out
}
