// Package glue adapts each engine generation's native surface to the
// unified execution contract in package vm. All version reconciliation
// lives here: environment and result conversions, capability gaps and the
// bytecode compression pipeline.
package glue

import "github.com/openrollup/multivm/types"

// sizedEngine is the subsystem-size surface every engine generation exposes.
type sizedEngine interface {
	EventSinkSize() (size, history uint64)
	MemorySize() (size, history uint64)
	DecommitterSize() (size, history uint64)
	StorageSize() (size, history uint64)
}

func collectMemoryMetrics(e sizedEngine) types.MemoryMetrics {
	var m types.MemoryMetrics
	m.EventSinkSize, m.EventSinkHistory = e.EventSinkSize()
	m.MemorySize, m.MemoryHistory = e.MemorySize()
	m.DecommitterSize, m.DecommitterHistory = e.DecommitterSize()
	m.StorageOverlaySize, m.StorageOverlayHistory = e.StorageSize()
	return m
}
