package glue

import (
	"github.com/openrollup/multivm/bytecode"
	"github.com/openrollup/multivm/engine/vmvirtual"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/tracers"
	"github.com/openrollup/multivm/types"
)

// VirtualBlocksVM adapts the virtual-blocks engine generation to the
// unified contract. This generation already has tracer hook points, L2
// blocks and on-demand execution state; the adapter mostly converts
// environment shapes and projects dispatchers.
type VirtualBlocksVM struct {
	eng *vmvirtual.Engine

	lastTxCompressed []bytecode.CompressionRecord
}

// NewVirtualBlocksVM builds the adapter over a fresh engine instance.
func NewVirtualBlocksVM[H types.HistoryMode](view *storage.View, batch types.BatchEnv, sys types.SystemEnv) *VirtualBlocksVM {
	eng := vmvirtual.NewEngine[H](view, toBatchContext(batch), toSystemSettings(sys), toL2Block(batch.FirstL2Block))
	return &VirtualBlocksVM{eng: eng}
}

func (g *VirtualBlocksVM) PushTransaction(tx *types.Transaction) {
	g.lastTxCompressed = nil
	g.eng.PushTransaction(tx, nil)
}

func (g *VirtualBlocksVM) Execute(mode types.ExecutionMode) *types.ExecutionResultAndLogs {
	return g.Inspect(nil, mode)
}

func (g *VirtualBlocksVM) Inspect(dispatcher *tracers.Dispatcher, mode types.ExecutionMode) *types.ExecutionResultAndLogs {
	native := dispatcher.IntoVirtualBlocks()
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

func (g *VirtualBlocksVM) GetBootloaderMemory() types.BootloaderMemory {
	return g.eng.BootloaderMemory()
}

func (g *VirtualBlocksVM) GetLastTxCompressedBytecodes() []bytecode.CompressionRecord {
	return g.lastTxCompressed
}

func (g *VirtualBlocksVM) StartNewL2Block(block types.L2BlockEnv) {
	g.eng.StartNewL2Block(toL2Block(block))
}

func (g *VirtualBlocksVM) GetCurrentExecutionState() types.CurrentExecutionState {
	return g.eng.ExecutionState()
}

func (g *VirtualBlocksVM) ExecuteTransactionWithBytecodeCompression(tx *types.Transaction, withCompression bool) (*types.ExecutionResultAndLogs, error) {
	return g.InspectTransactionWithBytecodeCompression(nil, tx, withCompression)
}

func (g *VirtualBlocksVM) InspectTransactionWithBytecodeCompression(dispatcher *tracers.Dispatcher, tx *types.Transaction, withCompression bool) (*types.ExecutionResultAndLogs, error) {
	g.lastTxCompressed = nil
	var records []bytecode.CompressionRecord
	if withCompression {
		records = bytecode.Plan(tx.FactoryDeps, g.eng.IsBytecodeKnown)
	}
	g.eng.PushTransaction(tx, records)
	g.lastTxCompressed = records
	res := g.eng.ExecuteOneTx(dispatcher.IntoVirtualBlocks())
	if err := bytecode.VerifyKnown(records, g.eng.IsBytecodeKnown); err != nil {
		return res, err
	}
	return res, nil
}

func (g *VirtualBlocksVM) RecordMemoryMetrics() types.MemoryMetrics {
	return collectMemoryMetrics(g.eng)
}

func (g *VirtualBlocksVM) FinishBatch() types.FinishedL1Batch {
	empty := vmvirtual.NewTracerDispatcher()
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

func toBatchContext(env types.BatchEnv) vmvirtual.BatchContext {
	return vmvirtual.BatchContext{
		Number:        env.Number,
		Timestamp:     env.Timestamp,
		FeeAccount:    env.FeeAccount,
		BaseFee:       derefOrZero(env.BaseFee),
		FairGasPrice:  derefOrZero(env.FairGasPrice),
		PrevBatchHash: env.PrevBatchHash,
	}
}

func toSystemSettings(env types.SystemEnv) vmvirtual.SystemSettings {
	return vmvirtual.SystemSettings{
		ChainID:            env.ChainID,
		Policy:             toPolicy(env.TxMode),
		BootloaderGasLimit: env.GasLimit,
		ValidationGasLimit: env.DefaultValidationGasLimit,
		Bootloader:         env.BaseSystemContracts.Bootloader,
		DefaultAA:          env.BaseSystemContracts.DefaultAA,
	}
}

func toPolicy(mode types.TxExecutionMode) vmvirtual.ExecutionPolicy {
	switch mode {
	case types.VerifyExecute:
		return vmvirtual.PolicyVerifyExecute
	case types.EstimateFee:
		return vmvirtual.PolicyEstimateGas
	case types.EthCall:
		return vmvirtual.PolicyCallOnly
	default:
		panic("glue: unknown transaction execution mode " + mode.String())
	}
}

func toL2Block(block types.L2BlockEnv) vmvirtual.L2Block {
	return vmvirtual.L2Block{
		Number:           block.Number,
		Timestamp:        block.Timestamp,
		PrevHash:         block.PrevBlockHash,
		MaxVirtualBlocks: block.MaxVirtualBlocksToCreate,
	}
}
