package glue

import (
	"github.com/openrollup/multivm/bytecode"
	"github.com/openrollup/multivm/engine/vmlatest"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/tracers"
	"github.com/openrollup/multivm/types"
)

// LatestVM adapts the newest engine generation. Its environment and result
// shapes are the unified ones already, so this adapter is a passthrough
// plus the compression pipeline.
type LatestVM struct {
	eng *vmlatest.Engine

	lastTxCompressed []bytecode.CompressionRecord
}

// NewLatestVM builds the adapter over a fresh engine instance.
func NewLatestVM[H types.HistoryMode](view *storage.View, batch types.BatchEnv, sys types.SystemEnv) *LatestVM {
	return &LatestVM{eng: vmlatest.NewEngine[H](view, batch, sys)}
}

func (g *LatestVM) PushTransaction(tx *types.Transaction) {
	g.lastTxCompressed = nil
	g.eng.PushTransaction(tx, nil)
}

func (g *LatestVM) Execute(mode types.ExecutionMode) *types.ExecutionResultAndLogs {
	return g.Inspect(nil, mode)
}

func (g *LatestVM) Inspect(dispatcher *tracers.Dispatcher, mode types.ExecutionMode) *types.ExecutionResultAndLogs {
	native := dispatcher.IntoLatest()
	switch mode {
	case types.OneTx:
		return g.eng.ExecuteOneTx(native)
	case types.Batch:
		return g.eng.ExecuteBatch(native)
	case types.Bootloader:
		return g.eng.ExecuteBootloaderStep(native)
	default:
		panic("glue: unknown execution mode " + mode.String())
	}
}

func (g *LatestVM) GetBootloaderMemory() types.BootloaderMemory {
	return g.eng.BootloaderMemory()
}

func (g *LatestVM) GetLastTxCompressedBytecodes() []bytecode.CompressionRecord {
	return g.lastTxCompressed
}

func (g *LatestVM) StartNewL2Block(block types.L2BlockEnv) {
	g.eng.StartNewL2Block(block)
}

func (g *LatestVM) GetCurrentExecutionState() types.CurrentExecutionState {
	return g.eng.ExecutionState()
}

func (g *LatestVM) ExecuteTransactionWithBytecodeCompression(tx *types.Transaction, withCompression bool) (*types.ExecutionResultAndLogs, error) {
	return g.InspectTransactionWithBytecodeCompression(nil, tx, withCompression)
}

func (g *LatestVM) InspectTransactionWithBytecodeCompression(dispatcher *tracers.Dispatcher, tx *types.Transaction, withCompression bool) (*types.ExecutionResultAndLogs, error) {
	g.lastTxCompressed = nil
	var records []bytecode.CompressionRecord
	if withCompression {
		records = bytecode.Plan(tx.FactoryDeps, g.eng.IsBytecodeKnown)
	}
	g.eng.PushTransaction(tx, records)
	g.lastTxCompressed = records
	res := g.eng.ExecuteOneTx(dispatcher.IntoLatest())
	if err := bytecode.VerifyKnown(records, g.eng.IsBytecodeKnown); err != nil {
		return res, err
	}
	return res, nil
}

func (g *LatestVM) RecordMemoryMetrics() types.MemoryMetrics {
	return collectMemoryMetrics(g.eng)
}

func (g *LatestVM) FinishBatch() types.FinishedL1Batch {
	empty := vmlatest.NewTracerDispatcher()
	for g.eng.PendingTxs() > 0 {
		g.eng.ExecuteOneTx(empty)
	}
	tip := g.eng.ExecuteBootloaderStep(empty)
	state := g.eng.ExecutionState()
	memory := g.eng.BootloaderMemory()
	g.eng.SealBatch()
	return types.FinishedL1Batch{
		BlockTipResult:        *tip,
		FinalExecutionState:   state,
		FinalBootloaderMemory: memory,
	}
}
