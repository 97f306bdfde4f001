// Package protocol defines the query payload shapes exchanged between the
// issuing and executing sides, and the wire form of component descriptors
// returned by introspection.
package protocol

import (
	"strings"

	"github.com/tetherlab/tether/core/fault"
)

// Version is the protocol version this build speaks. Every request carries
// it and the executing side rejects mismatches before touching the query.
const Version = 1

// Query map keys. A query is either the introspection marker or a pair of
// target ("<=") and invocation ("<method>=>" mapping "()" to the argument
// list).
const (
	TargetKey      = "<="
	CallSuffix     = "=>"
	ArgsKey        = "()"
	IntrospectName = "introspect"
)

// Request is the payload sent by the issuing side. Everything the executing
// side needs travels inside the query itself: instances are inlined where
// the target and arguments reference them.
type Request struct {
	Version int            `json:"version"`
	Query   map[string]any `json:"query"`
}

// Response is the payload returned by the executing side. Changes carries
// the attribute diffs of mutated instance arguments, keyed by "<=" for the
// target and by decimal position for args.
type Response struct {
	Result  any                       `json:"result,omitempty"`
	Changes map[string]map[string]any `json:"changes,omitempty"`
}

// QueryKind discriminates parsed queries.
type QueryKind string

const (
	QueryIntrospect QueryKind = "introspect"
	QueryInvoke     QueryKind = "invoke"
)

// Query is the decoded form of a request query. Target and Args hold
// serialized transport values; the executor deserializes them against its
// own component set.
type Query struct {
	Kind   QueryKind
	Target any
	Method string
	Args   []any
}

// NewIntrospect builds the introspection query map.
func NewIntrospect() map[string]any {
	return map[string]any{
		IntrospectName + CallSuffix: map[string]any{ArgsKey: []any{}},
	}
}

// NewInvoke builds a method invocation query map. target must already be a
// serialized transport value, as must each argument.
func NewInvoke(target any, method string, args []any) map[string]any {
	if args == nil {
		args = []any{}
	}
	return map[string]any{
		TargetKey:           target,
		method + CallSuffix: map[string]any{ArgsKey: args},
	}
}

// Parse decodes a query map into its structured form.
func Parse(q map[string]any) (*Query, error) {
	if len(q) == 0 {
		return nil, fault.Deserialization("empty query")
	}

	parsed := &Query{}
	hasTarget := false
	for key, value := range q {
		switch {
		case key == TargetKey:
			parsed.Target = value
			hasTarget = true
		case strings.HasSuffix(key, CallSuffix):
			if parsed.Method != "" {
				return nil, fault.Deserialization("query names more than one method")
			}
			parsed.Method = strings.TrimSuffix(key, CallSuffix)
			if parsed.Method == "" {
				return nil, fault.Deserialization("query names an empty method")
			}
			call, ok := value.(map[string]any)
			if !ok {
				return nil, fault.Deserialization("invocation expression for %q is not a map", parsed.Method)
			}
			rawArgs, ok := call[ArgsKey]
			if !ok {
				return nil, fault.Deserialization("invocation expression for %q has no argument list", parsed.Method)
			}
			args, ok := rawArgs.([]any)
			if !ok {
				return nil, fault.Deserialization("argument list for %q is not a list", parsed.Method)
			}
			parsed.Args = args
		default:
			return nil, fault.Deserialization("unrecognized query key %q", key)
		}
	}

	if parsed.Method == "" {
		return nil, fault.Deserialization("query names no method")
	}
	if parsed.Method == IntrospectName && !hasTarget {
		parsed.Kind = QueryIntrospect
		return parsed, nil
	}
	if !hasTarget {
		return nil, fault.Deserialization("invocation of %q has no target", parsed.Method)
	}
	parsed.Kind = QueryInvoke
	return parsed, nil
}
