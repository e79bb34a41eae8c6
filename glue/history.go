package glue

import (
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/types"
)

// The snapshot method group is defined on these wrapper types only. A
// history-disabled adapter does not carry the methods at all, so asserting
// one against the history-extended contract fails at the type level instead
// of at call time; the engines' own journal checks remain as internal
// invariants, never as the gate.

// HistoryLegacyVM is the history-enabled form of the legacy adapter.
type HistoryLegacyVM struct {
	*LegacyVM
}

// NewHistoryLegacyVM builds a legacy adapter whose journal retains undo
// entries, with the snapshot method group available.
func NewHistoryLegacyVM(view *storage.View, batch types.BatchEnv, sys types.SystemEnv) *HistoryLegacyVM {
	return &HistoryLegacyVM{LegacyVM: NewLegacyVM[types.HistoryEnabled](view, batch, sys)}
}

func (g *HistoryLegacyVM) MakeSnapshot()             { g.inst.SaveCurrentVmAsSnapshot() }
func (g *HistoryLegacyVM) RollbackToLatestSnapshot() { g.inst.RollbackToLatestSnapshot() }
func (g *HistoryLegacyVM) PopSnapshotNoRollback()    { g.inst.PopSnapshotNoRollback() }

// HistoryVirtualBlocksVM is the history-enabled form of the virtual-blocks
// adapter.
type HistoryVirtualBlocksVM struct {
	*VirtualBlocksVM
}

// NewHistoryVirtualBlocksVM builds a virtual-blocks adapter whose journal
// retains undo entries, with the snapshot method group available.
func NewHistoryVirtualBlocksVM(view *storage.View, batch types.BatchEnv, sys types.SystemEnv) *HistoryVirtualBlocksVM {
	return &HistoryVirtualBlocksVM{VirtualBlocksVM: NewVirtualBlocksVM[types.HistoryEnabled](view, batch, sys)}
}

func (g *HistoryVirtualBlocksVM) MakeSnapshot()             { g.eng.MakeSnapshot() }
func (g *HistoryVirtualBlocksVM) RollbackToLatestSnapshot() { g.eng.RollbackToLatestSnapshot() }
func (g *HistoryVirtualBlocksVM) PopSnapshotNoRollback()    { g.eng.PopSnapshotNoRollback() }

// HistoryLatestVM is the history-enabled form of the latest adapter.
type HistoryLatestVM struct {
	*LatestVM
}

// NewHistoryLatestVM builds a latest adapter whose journal retains undo
// entries, with the snapshot method group available.
func NewHistoryLatestVM(view *storage.View, batch types.BatchEnv, sys types.SystemEnv) *HistoryLatestVM {
	return &HistoryLatestVM{LatestVM: NewLatestVM[types.HistoryEnabled](view, batch, sys)}
}

func (g *HistoryLatestVM) MakeSnapshot()             { g.eng.MakeSnapshot() }
func (g *HistoryLatestVM) RollbackToLatestSnapshot() { g.eng.RollbackToLatestSnapshot() }
func (g *HistoryLatestVM) PopSnapshotNoRollback()    { g.eng.PopSnapshotNoRollback() }
