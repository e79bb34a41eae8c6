// Package multivm selects and constructs the engine generation serving a
// batch. Callers pick a version, hand over the batch and system
// environments, and receive an instance of the unified execution contract.
package multivm

import (
	"fmt"

	"github.com/openrollup/multivm/glue"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/types"
	"github.com/openrollup/multivm/vm"
)

// Version identifies an engine generation.
type Version int

const (
	// VmV1 is the oldest supported generation: no tracer hook points, no
	// L2 blocks, no batch mode.
	VmV1 Version = iota

	// VmVirtualBlocks introduced tracer hook points and virtual L2 blocks.
	VmVirtualBlocks

	// VmLatest is the newest generation, with per-cycle tracer verdicts and
	// refund accounting.
	VmLatest
)

func (v Version) String() string {
	switch v {
	case VmV1:
		return "v1"
	case VmVirtualBlocks:
		return "virtualBlocks"
	case VmLatest:
		return "latest"
	default:
		return fmt.Sprintf("unknown(%d)", int(v))
	}
}

// NewVM constructs a history-disabled instance of the given version. The
// returned instance does not retain rollback history and never exposes the
// snapshot method group.
func NewVM(version Version, view *storage.View, batch types.BatchEnv, sys types.SystemEnv) vm.VM {
	switch version {
	case VmV1:
		return glue.NewLegacyVM[types.HistoryDisabled](view, batch, sys)
	case VmVirtualBlocks:
		return glue.NewVirtualBlocksVM[types.HistoryDisabled](view, batch, sys)
	case VmLatest:
		return glue.NewLatestVM[types.HistoryDisabled](view, batch, sys)
	default:
		panic("multivm: unknown version " + version.String())
	}
}

// NewHistoryVM constructs a history-enabled instance of the given version,
// with the snapshot method group available.
func NewHistoryVM(version Version, view *storage.View, batch types.BatchEnv, sys types.SystemEnv) vm.HistoryVM {
	switch version {
	case VmV1:
		return glue.NewHistoryLegacyVM(view, batch, sys)
	case VmVirtualBlocks:
		return glue.NewHistoryVirtualBlocksVM(view, batch, sys)
	case VmLatest:
		return glue.NewHistoryLatestVM(view, batch, sys)
	default:
		panic("multivm: unknown version " + version.String())
	}
}
