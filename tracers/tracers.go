// Package tracers holds the version-independent tracer layer: a tracer is
// written once against the MultiVMTracer contract and projected onto the
// native hook surface of whichever engine generation ends up running it.
// The oldest generation has no hook points, so tracers silently do nothing
// there.
package tracers

import (
	"github.com/openrollup/multivm/engine/vmlatest"
	"github.com/openrollup/multivm/engine/vmvirtual"
)

// MultiVMTracer is a tracer usable across engine generations. Each method
// yields the native form for one generation; implementations typically share
// a single core behind both projections.
type MultiVMTracer interface {
	VirtualBlocks() vmvirtual.Tracer
	Latest() vmlatest.Tracer
}

// Dispatcher is an ordered collection of cross-version tracers. It projects
// as a whole onto a native dispatcher of the target generation, preserving
// member order. An empty dispatcher projects to an empty native dispatcher,
// which behaves exactly like no instrumentation.
type Dispatcher struct {
	members []MultiVMTracer
}

// NewDispatcher builds a dispatcher over the given members; registration
// order is preserved through projection.
func NewDispatcher(members ...MultiVMTracer) *Dispatcher {
	return &Dispatcher{members: members}
}

// Members returns the number of member tracers.
func (d *Dispatcher) Members() int {
	if d == nil {
		return 0
	}
	return len(d.members)
}

// IntoVirtualBlocks projects every member onto the virtual-blocks native
// contract. A nil dispatcher projects like an empty one.
func (d *Dispatcher) IntoVirtualBlocks() *vmvirtual.TracerDispatcher {
	if d == nil {
		return vmvirtual.NewTracerDispatcher()
	}
	native := make([]vmvirtual.Tracer, len(d.members))
	for i, m := range d.members {
		native[i] = m.VirtualBlocks()
	}
	return vmvirtual.NewTracerDispatcher(native...)
}

// IntoLatest projects every member onto the latest native contract. A nil
// dispatcher projects like an empty one.
func (d *Dispatcher) IntoLatest() *vmlatest.TracerDispatcher {
	if d == nil {
		return vmlatest.NewTracerDispatcher()
	}
	native := make([]vmlatest.Tracer, len(d.members))
	for i, m := range d.members {
		native[i] = m.Latest()
	}
	return vmlatest.NewTracerDispatcher(native...)
}
