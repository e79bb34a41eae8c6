package tracers

import (
	"github.com/openrollup/multivm/engine/vmlatest"
	"github.com/openrollup/multivm/engine/vmvirtual"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/types"
)

// Call is one recorded interpreter step of a traced execution.
type Call struct {
	TxIndex      int
	Cycle        uint32
	Opcode       byte
	Position     int
	GasRemaining uint64
}

// CallTracer records every interpreter step and publishes the collected
// trace through a ResultCell when the execution call finishes. One instance
// serves one execution call; reuse publishes twice and panics.
type CallTracer struct {
	core *callCore
}

// NewCallTracer builds a call tracer publishing into the given cell.
func NewCallTracer(cell *ResultCell[[]Call]) *CallTracer {
	return &CallTracer{core: &callCore{cell: cell}}
}

func (t *CallTracer) VirtualBlocks() vmvirtual.Tracer { return &callVirtual{core: t.core} }
func (t *CallTracer) Latest() vmlatest.Tracer         { return &callLatest{core: t.core} }

// callCore is the version-independent recording state shared by both
// projections.
type callCore struct {
	calls []Call
	cell  *ResultCell[[]Call]
}

func (c *callCore) record(call Call) {
	c.calls = append(c.calls, call)
}

func (c *callCore) publish() {
	if c.cell != nil {
		c.cell.Publish(append([]Call(nil), c.calls...))
	}
}

type callVirtual struct {
	vmvirtual.BaseTracer
	core *callCore
}

func (t *callVirtual) AfterExecution(state vmvirtual.CycleState, op vmvirtual.DecodedOpcode, _ *vmvirtual.SimpleMemory, _ *storage.View) {
	t.core.record(Call{
		TxIndex:      state.TxIndex,
		Cycle:        state.Cycle,
		Opcode:       op.Opcode,
		Position:     op.Position,
		GasRemaining: state.GasRemaining,
	})
}

func (t *callVirtual) SaveResults(*types.ExecutionResultAndLogs) {
	t.core.publish()
}

type callLatest struct {
	vmlatest.BaseTracer
	core *callCore
}

func (t *callLatest) AfterExecution(state vmlatest.CycleState, op vmlatest.DecodedOpcode, _ *vmlatest.SimpleMemory, _ *storage.View) {
	t.core.record(Call{
		TxIndex:      state.TxIndex,
		Cycle:        state.Cycle,
		Opcode:       op.Opcode,
		Position:     op.Position,
		GasRemaining: state.GasRemaining,
	})
}

func (t *callLatest) SaveResults(*types.ExecutionResultAndLogs) {
	t.core.publish()
}
