// Package vm defines the unified execution contract every engine version
// must satisfy. Callers drive any version through this one surface; the
// per-version adapters in package glue reconcile the differences behind it.
package vm

import (
	"github.com/openrollup/multivm/bytecode"
	"github.com/openrollup/multivm/tracers"
	"github.com/openrollup/multivm/types"
)

// VM is the version-independent execution contract. An instance is bound to
// a single L1 batch: it is constructed once, mutated by push/execute calls in
// strict caller order, and terminated by FinishBatch. Instances are not safe
// for concurrent use.
//
// Capability differences between engine versions surface through this
// contract as documented per method: an operation is either supported, a
// true no-op, or fails loudly. Callers must not probe behavior indirectly.
type VM interface {
	// PushTransaction appends a transaction to the pending queue. No
	// execution occurs.
	PushTransaction(tx *types.Transaction)

	// Execute runs the next execution step. It is exactly equivalent to
	// Inspect with an empty dispatcher, for every mode and version.
	Execute(mode types.ExecutionMode) *types.ExecutionResultAndLogs

	// Inspect is the core execution primitive. OneTx executes exactly the
	// next pending transaction; Batch executes all remaining work (fatal on
	// versions that do not support it); Bootloader advances the bootloader
	// to its next natural boundary.
	Inspect(dispatcher *tracers.Dispatcher, mode types.ExecutionMode) *types.ExecutionResultAndLogs

	// GetBootloaderMemory returns the ordered queue of memory cells holding
	// pending serialized transactions. Introspection only.
	GetBootloaderMemory() types.BootloaderMemory

	// GetLastTxCompressedBytecodes returns the compression records of the
	// most recently executed transaction. Empty before any transaction ran.
	GetLastTxCompressedBytecodes() []bytecode.CompressionRecord

	// StartNewL2Block signals an L2 block boundary. Versions without the
	// concept treat it as a no-op.
	StartNewL2Block(block types.L2BlockEnv)

	// GetCurrentExecutionState returns the aggregate execution data of the
	// batch. On the oldest version it is valid only after FinishBatch;
	// calling earlier is a fatal caller error.
	GetCurrentExecutionState() types.CurrentExecutionState

	// ExecuteTransactionWithBytecodeCompression is the convenience form of
	// InspectTransactionWithBytecodeCompression with an empty dispatcher.
	ExecuteTransactionWithBytecodeCompression(tx *types.Transaction, withCompression bool) (*types.ExecutionResultAndLogs, error)

	// InspectTransactionWithBytecodeCompression pushes the transaction's
	// factory dependencies through the compressor, submits and executes the
	// transaction, and verifies that every pending bytecode became known.
	// Returns types.ErrBytecodeCompressionFailed when verification fails.
	InspectTransactionWithBytecodeCompression(dispatcher *tracers.Dispatcher, tx *types.Transaction, withCompression bool) (*types.ExecutionResultAndLogs, error)

	// RecordMemoryMetrics reports the current and history sizes of the
	// engine's internal subsystems.
	RecordMemoryMetrics() types.MemoryMetrics

	// FinishBatch finalizes the batch and returns its aggregate result.
	// Terminal: no further push or per-transaction execution is permitted.
	FinishBatch() types.FinishedL1Batch
}

// HistoryVM extends VM with the snapshot method group. It exists only for
// history-enabled instances; snapshots form a strict LIFO stack.
type HistoryVM interface {
	VM

	// MakeSnapshot pushes a snapshot of the current state.
	MakeSnapshot()

	// RollbackToLatestSnapshot restores the most recent snapshot and
	// discards it.
	RollbackToLatestSnapshot()

	// PopSnapshotNoRollback discards the most recent snapshot without
	// restoring it.
	PopSnapshotNoRollback()
}
