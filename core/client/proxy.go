package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/tetherlab/tether/core/codec"
	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/fault"
)

// Proxy is a synthesized local handle for a remote component class. Its
// operations mirror the descriptor's exposure: reads of unloaded attributes
// fail locally, writes run declared validators locally, and calls perform a
// remote invocation and merge the returned diff.
type Proxy struct {
	client *Client
	desc   *component.Descriptor
}

// Name returns the component name.
func (p *Proxy) Name() string { return p.desc.Name }

// Descriptor returns the proxy's read-only descriptor.
func (p *Proxy) Descriptor() *component.Descriptor { return p.desc }

// New creates a local instance with a client-side generated identifier.
// Supplied attributes run their declared validators; no I/O occurs.
func (p *Proxy) New(attrs map[string]any) (*component.Instance, error) {
	inst := component.NewInstance(p.desc)
	if p.desc.Identifier != "" {
		inst.SetID(uuid.NewString())
	}
	for name, value := range attrs {
		if err := inst.Set(name, value); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// Stub creates an identifier-only instance, useful as a reference.
func (p *Proxy) Stub(id string) *component.Instance {
	inst := component.NewInstance(p.desc)
	inst.SetID(id)
	return inst
}

// Call invokes a class-level method remotely.
func (p *Proxy) Call(ctx context.Context, method string, args ...any) (any, error) {
	prop := p.desc.ClassProperty(method)
	if prop == nil || prop.Kind != component.PropMethod {
		return nil, fault.UnknownAttribute(p.desc.Name, method)
	}
	if !prop.Exposure.Call {
		return nil, fault.AccessDenied(p.desc.Name, method, "call")
	}
	return p.client.invoke(ctx, codec.ClassRef{Name: p.desc.Name}, method, args)
}

// CallOn invokes a prototype method remotely with inst as the target. The
// returned diff is applied to inst before the decoded return value is
// handed back.
func (p *Proxy) CallOn(ctx context.Context, inst *component.Instance, method string, args ...any) (any, error) {
	prop := p.desc.InstanceProperty(method)
	if prop == nil || prop.Kind != component.PropMethod {
		return nil, fault.UnknownAttribute(p.desc.Name, method)
	}
	if !prop.Exposure.Call {
		return nil, fault.AccessDenied(p.desc.Name, method, "call")
	}
	return p.client.invoke(ctx, inst, method, args)
}
