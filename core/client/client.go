// Package client is the issuing side of the query protocol: it synthesizes
// proxy components from introspection, turns proxy operations into queries,
// and merges returned attribute diffs back into caller-held instances.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tetherlab/tether/core/codec"
	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/protocol"
)

// Client issues queries through a transport and maintains the proxy
// component set produced by introspection.
type Client struct {
	transport Transport
	version   int
	logger    zerolog.Logger

	set     *component.Set
	proxies map[string]*Proxy
}

// Option configures a Client.
type Option func(*Client)

// WithVersion overrides the protocol version the client reports.
func WithVersion(v int) Option {
	return func(c *Client) { c.version = v }
}

// WithLogger sets the client's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client over the given transport.
func New(t Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		version:   protocol.Version,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetComponents performs one introspection call and builds a proxy per
// returned descriptor. A version mismatch fails before any descriptor is
// materialized.
func (c *Client) GetComponents(ctx context.Context) ([]*Proxy, error) {
	req := &protocol.Request{Version: c.version, Query: protocol.NewIntrospect()}
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := errorFromResult(resp.Result); err != nil {
		return nil, err
	}

	schemas, err := decodeSchemas(resp.Result)
	if err != nil {
		return nil, err
	}

	comps := make([]*component.Component, 0, len(schemas))
	for _, s := range schemas {
		desc, err := protocol.BuildDescriptor(s)
		if err != nil {
			return nil, err
		}
		comps = append(comps, component.NewComponent(desc))
	}
	set, err := component.NewSet(comps...)
	if err != nil {
		return nil, err
	}

	c.set = set
	c.proxies = make(map[string]*Proxy, len(comps))
	var proxies []*Proxy
	for _, comp := range comps {
		p := &Proxy{client: c, desc: comp.Descriptor()}
		c.proxies[comp.Name()] = p
		proxies = append(proxies, p)
	}
	c.logger.Debug().Int("components", len(proxies)).Msg("proxy components synthesized")
	return proxies, nil
}

// Component returns the proxy for a component name. GetComponents must have
// run first.
func (c *Client) Component(name string) (*Proxy, bool) {
	p, ok := c.proxies[name]
	return p, ok
}

// Components returns the proxy component set, or nil before introspection.
func (c *Client) Components() *component.Set { return c.set }

// invoke issues one method invocation. target is a live value (ClassRef or
// instance); args are live values. Returned diffs are applied onto the
// instances recorded under their argument keys.
func (c *Client) invoke(ctx context.Context, target any, method string, args []any) (any, error) {
	if c.set == nil {
		return nil, fmt.Errorf("client has no components; call GetComponents first")
	}

	// Outbound instances carry only set-exposed attributes: writes the
	// exposure model forbids never reach the wire.
	outOpts := codec.SerializeOptions{FilterSet: true}
	serializedTarget, err := codec.Serialize(target, outOpts)
	if err != nil {
		return nil, err
	}
	serializedArgs := make([]any, len(args))
	for i, arg := range args {
		if serializedArgs[i], err = codec.Serialize(arg, outOpts); err != nil {
			return nil, err
		}
	}

	req := &protocol.Request{
		Version: c.version,
		Query:   protocol.NewInvoke(serializedTarget, method, serializedArgs),
	}
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := errorFromResult(resp.Result); err != nil {
		return nil, err
	}

	if err := c.applyChanges(resp.Changes, target, args); err != nil {
		return nil, err
	}

	result, err := codec.Deserialize(resp.Result, codec.DeserializeOptions{Resolver: c.set})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyChanges merges returned attribute diffs into the live instances the
// caller passed, overwriting changed attributes in place rather than
// replacing the instances.
func (c *Client) applyChanges(changes map[string]map[string]any, target any, args []any) error {
	if len(changes) == 0 {
		return nil
	}
	byKey := map[string]*component.Instance{}
	if inst, ok := target.(*component.Instance); ok {
		byKey[protocol.TargetKey] = inst
	}
	for i, arg := range args {
		if inst, ok := arg.(*component.Instance); ok {
			byKey[fmt.Sprintf("%d", i)] = inst
		}
	}

	for key, attrs := range changes {
		inst, ok := byKey[key]
		if !ok {
			continue
		}
		for name, raw := range attrs {
			value, err := codec.Deserialize(raw, codec.DeserializeOptions{Resolver: c.set})
			if err != nil {
				return err
			}
			inst.Apply(name, value)
		}
	}
	return nil
}

// errorFromResult surfaces an error result as a native error.
func errorFromResult(result any) error {
	m, ok := result.(map[string]any)
	if !ok || m["__error"] == nil {
		return nil
	}
	_, err := codec.Deserialize(m, codec.DeserializeOptions{})
	return err
}

// decodeSchemas accepts the introspection result either as typed schemas
// (loopback) or as decoded JSON maps (HTTP) by round-tripping through JSON.
func decodeSchemas(result any) ([]protocol.ComponentSchema, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode introspection result: %w", err)
	}
	var schemas []protocol.ComponentSchema
	if err := json.Unmarshal(encoded, &schemas); err != nil {
		return nil, fmt.Errorf("decode introspection result: %w", err)
	}
	return schemas, nil
}
