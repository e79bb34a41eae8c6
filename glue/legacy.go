package glue

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/openrollup/multivm/bytecode"
	"github.com/openrollup/multivm/engine/vm1"
	"github.com/openrollup/multivm/internal/oracle"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/tracers"
	"github.com/openrollup/multivm/types"
)

// LegacyVM adapts the oldest engine generation to the unified contract.
// This generation has no tracer hook points, no L2-block concept, no batch
// mode and no on-demand execution state; the adapter papers over what it
// can and fails loudly on what it cannot.
type LegacyVM struct {
	inst *vm1.VmInstance
	sys  types.SystemEnv

	lastTxCompressed []bytecode.CompressionRecord
	finalState       *types.CurrentExecutionState
}

// NewLegacyVM builds the adapter over a fresh legacy engine instance.
func NewLegacyVM[H types.HistoryMode](view *storage.View, batch types.BatchEnv, sys types.SystemEnv) *LegacyVM {
	blockCtx := vm1.BlockContext{
		BlockNumber:     batch.Number,
		BlockTimestamp:  batch.Timestamp,
		OperatorAddress: batch.FeeAccount,
		FairL2GasPrice:  derefOrZero(batch.FairGasPrice),
		BaseFee:         derefOrZero(batch.BaseFee),
	}
	// The legacy engine wants the default account code hash as a number.
	var aaHash uint256.Int
	aaHash.SetBytes(sys.BaseSystemContracts.DefaultAA.Hash.Bytes())
	props := vm1.BlockProperties{DefaultAACodeHash: aaHash}
	inst := vm1.InitVmWithGasLimit(oracle.NewTools[H](view), blockCtx, props,
		sys.BaseSystemContracts.Bootloader, sys.BaseSystemContracts.DefaultAA, sys.GasLimit)
	return &LegacyVM{inst: inst, sys: sys}
}

func (g *LegacyVM) PushTransaction(tx *types.Transaction) {
	g.lastTxCompressed = nil
	g.inst.PushTransactionToBootloaderMemory(tx, g.validationMode(), nil)
}

func (g *LegacyVM) Execute(mode types.ExecutionMode) *types.ExecutionResultAndLogs {
	return g.Inspect(nil, mode)
}

// Inspect drives the engine per the mode. The legacy engine has no hook
// points, so the dispatcher is dropped.
func (g *LegacyVM) Inspect(dispatcher *tracers.Dispatcher, mode types.ExecutionMode) *types.ExecutionResultAndLogs {
	if n := dispatcher.Members(); n > 0 {
		log.Debug("legacy engine has no tracer hook points, dispatcher dropped", "members", n)
	}
	switch mode {
	case types.OneTx:
		return g.executeOneTx()
	case types.Batch:
		panic("glue: legacy engine does not support batch execution")
	case types.Bootloader:
		tip := g.inst.ExecuteBlockTip()
		return convertLegacyResult(tip)
	default:
		panic("glue: unknown execution mode " + mode.String())
	}
}

// executeOneTx follows the per-policy split of this generation: full
// validation executes exactly one transaction, the simulation policies run
// the bootloader straight to end of job.
func (g *LegacyVM) executeOneTx() *types.ExecutionResultAndLogs {
	if g.sys.TxMode == types.VerifyExecute {
		res := g.inst.ExecuteNextTx(g.sys.DefaultValidationGasLimit)
		return convertLegacyResult(res.Result)
	}
	block := g.inst.ExecuteTillBlockEnd(vm1.TransactionExecution)
	return convertLegacyResult(block.FullResult)
}

// GetBootloaderMemory returns an empty image: the legacy engine does not
// expose memory introspection.
func (g *LegacyVM) GetBootloaderMemory() types.BootloaderMemory {
	return types.BootloaderMemory{}
}

func (g *LegacyVM) GetLastTxCompressedBytecodes() []bytecode.CompressionRecord {
	return g.lastTxCompressed
}

// StartNewL2Block is a no-op: the legacy engine predates L2 blocks.
func (g *LegacyVM) StartNewL2Block(types.L2BlockEnv) {}

// GetCurrentExecutionState is well-defined only after FinishBatch on this
// generation; calling earlier is a fatal caller error.
func (g *LegacyVM) GetCurrentExecutionState() types.CurrentExecutionState {
	if g.finalState == nil {
		panic("glue: legacy engine has no execution state before FinishBatch")
	}
	return *g.finalState
}

func (g *LegacyVM) ExecuteTransactionWithBytecodeCompression(tx *types.Transaction, withCompression bool) (*types.ExecutionResultAndLogs, error) {
	return g.InspectTransactionWithBytecodeCompression(nil, tx, withCompression)
}

func (g *LegacyVM) InspectTransactionWithBytecodeCompression(dispatcher *tracers.Dispatcher, tx *types.Transaction, withCompression bool) (*types.ExecutionResultAndLogs, error) {
	if n := dispatcher.Members(); n > 0 {
		log.Debug("legacy engine has no tracer hook points, dispatcher dropped", "members", n)
	}
	g.lastTxCompressed = nil
	var records []bytecode.CompressionRecord
	if withCompression {
		records = bytecode.Plan(tx.FactoryDeps, g.inst.IsBytecodeKnown)
	}
	g.inst.PushTransactionToBootloaderMemory(tx, g.validationMode(), records)
	g.lastTxCompressed = records
	res := g.executeOneTx()
	if err := bytecode.VerifyKnown(records, g.inst.IsBytecodeKnown); err != nil {
		return res, err
	}
	return res, nil
}

func (g *LegacyVM) RecordMemoryMetrics() types.MemoryMetrics {
	return collectMemoryMetrics(g.inst)
}

func (g *LegacyVM) FinishBatch() types.FinishedL1Batch {
	block := g.inst.ExecuteTillBlockEnd(vm1.BlockPostprocessing)
	state := types.CurrentExecutionState{
		Events:             block.FullResult.Events,
		StorageLogs:        block.FullResult.StorageLogs,
		UsedContractHashes: block.FullResult.UsedContractHashes,
	}
	g.finalState = &state
	return types.FinishedL1Batch{
		BlockTipResult:      *convertLegacyResult(block.BlockTipResult),
		FinalExecutionState: state,
	}
}

func (g *LegacyVM) validationMode() vm1.AccountValidationMode {
	if g.sys.TxMode == types.VerifyExecute {
		return vm1.ValidationFull
	}
	return vm1.ValidationSkipped
}

// convertLegacyResult translates the native result record into the unified
// shape. The legacy engine tracks no refunds, so they stay zero.
func convertLegacyResult(res vm1.VmExecutionResult) *types.ExecutionResultAndLogs {
	return &types.ExecutionResultAndLogs{
		Result: types.ExecutionResult{
			Output: res.ReturnData,
			Revert: res.RevertReason,
			Halt:   res.Halt,
		},
		Logs: types.ExecutionLogs{
			Events:      res.Events,
			StorageLogs: res.StorageLogs,
		},
		Statistics: types.ExecutionStatistics{
			ContractsUsed: res.ContractsUsed,
			CyclesUsed:    res.CyclesUsed,
			GasUsed:       res.GasUsed,
		},
	}
}

func derefOrZero(v *uint256.Int) uint256.Int {
	if v == nil {
		return uint256.Int{}
	}
	return *v
}
