package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event is a single log record emitted during execution.
type Event struct {
	BatchNumber uint64
	TxIndex     uint32
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
}

// StorageLog records one write applied to the storage overlay.
type StorageLog struct {
	Address common.Address
	Key     common.Hash
	Value   common.Hash
}

// ExecutionResult is the outcome of one transaction (or of the block tip).
// Exactly one of the failure fields is set when the transaction did not
// succeed; both are nil on success.
type ExecutionResult struct {
	Output []byte

	// Revert is set when the transaction's own logic intentionally reverted.
	Revert *RevertReason

	// Halt is set when the bootloader stopped the transaction abnormally.
	Halt *Halt
}

// Failed reports whether the transaction did not complete successfully.
func (r *ExecutionResult) Failed() bool {
	return r.Revert != nil || r.Halt != nil
}

// ExecutionLogs collects everything a transaction emitted.
type ExecutionLogs struct {
	Events      []Event
	StorageLogs []StorageLog
}

// ExecutionStatistics carries the per-call interpreter accounting.
type ExecutionStatistics struct {
	ContractsUsed        int
	CyclesUsed           uint32
	GasUsed              uint64
	ComputationalGasUsed uint64
}

// Refunds reports the gas returned to the sender. Only engine versions that
// track refunds populate it; older versions leave it zero.
type Refunds struct {
	GasRefunded             uint64
	OperatorSuggestedRefund uint64
}

// ExecutionResultAndLogs is the full record returned by Execute/Inspect.
// Immutable once returned to the caller.
type ExecutionResultAndLogs struct {
	Result     ExecutionResult
	Logs       ExecutionLogs
	Statistics ExecutionStatistics
	Refunds    Refunds
}

// CurrentExecutionState is the aggregate state of a batch, well-defined once
// the engine version says so (for the oldest version, only after FinishBatch).
type CurrentExecutionState struct {
	Events             []Event
	StorageLogs        []StorageLog
	UsedContractHashes []common.Hash
}

// BootloaderMemoryCell is one word of the bootloader's transaction memory.
type BootloaderMemoryCell struct {
	Index uint64
	Value uint256.Int
}

// BootloaderMemory is the ordered queue of memory cells representing pending
// and serialized transactions. Introspection only; never a mutation channel.
type BootloaderMemory []BootloaderMemoryCell

// FinishedL1Batch is the aggregate result of a whole batch, produced exactly
// once by FinishBatch.
type FinishedL1Batch struct {
	BlockTipResult        ExecutionResultAndLogs
	FinalExecutionState   CurrentExecutionState
	FinalBootloaderMemory BootloaderMemory
}

// MemoryMetrics reports the current size and history size of each major
// engine subsystem. History sizes are zero for history-disabled instances.
type MemoryMetrics struct {
	EventSinkSize         uint64
	EventSinkHistory      uint64
	MemorySize            uint64
	MemoryHistory         uint64
	DecommitterSize       uint64
	DecommitterHistory    uint64
	StorageOverlaySize    uint64
	StorageOverlayHistory uint64
}

// Total returns the combined footprint across all subsystems.
func (m MemoryMetrics) Total() uint64 {
	return m.EventSinkSize + m.EventSinkHistory +
		m.MemorySize + m.MemoryHistory +
		m.DecommitterSize + m.DecommitterHistory +
		m.StorageOverlaySize + m.StorageOverlayHistory
}
