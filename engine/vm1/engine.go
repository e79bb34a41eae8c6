// Package vm1 is the native engine of the oldest generation. It has no
// tracer hook points and no L2-block concept; the bootloader processes the
// staged transaction queue and seals the batch in a single postprocessing
// job. The glue adapter on top of it translates this surface into the
// unified execution contract.
package vm1

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/openrollup/multivm/bytecode"
	"github.com/openrollup/multivm/internal/oracle"
	"github.com/openrollup/multivm/types"
)

// Gas schedule of the bootloader.
const (
	intrinsicGas = 21000
	dataByteGas  = 16
)

// Well-known system contract addresses.
var (
	nonceHolderAddress   = common.HexToAddress("0x0000000000000000000000000000000000008003")
	systemContextAddress = common.HexToAddress("0x000000000000000000000000000000000000800b")
	eventWriterAddress   = common.HexToAddress("0x000000000000000000000000000000000000800d")
)

// revertSelector is the 4-byte Error(string) selector; calldata starting
// with it makes the transaction revert with that payload.
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// sealedBatchSlot is the system-context slot recording the sealed batch
// number at block postprocessing.
var sealedBatchSlot = common.HexToHash("0x01")

// BlockProperties are the version-native construction arguments derived from
// the system environment. The default account code hash arrives as a numeric
// field, not a hash; the glue layer performs the reinterpretation.
type BlockProperties struct {
	DefaultAACodeHash uint256.Int
	ZKPorterAvailable bool
}

// BlockContext is the version-native view of the batch environment.
type BlockContext struct {
	BlockNumber     uint64
	BlockTimestamp  uint64
	OperatorAddress common.Address
	FairL2GasPrice  uint256.Int
	BaseFee         uint256.Int
}

// AccountValidationMode selects whether the bootloader runs the account
// validation step for a transaction.
type AccountValidationMode int

const (
	ValidationFull AccountValidationMode = iota
	ValidationSkipped
)

// BootloaderJobType selects what a till-block-end run finishes with.
type BootloaderJobType int

const (
	TransactionExecution BootloaderJobType = iota
	BlockPostprocessing
)

// TxExecutionStatus is the native per-transaction outcome classification.
type TxExecutionStatus int

const (
	TxSuccess TxExecutionStatus = iota
	TxFailure
)

// VmExecutionResult is the native execution record of this engine
// generation. The glue layer converts it into the unified result shape.
type VmExecutionResult struct {
	Events             []types.Event
	StorageLogs        []types.StorageLog
	UsedContractHashes []common.Hash
	ReturnData         []byte
	GasUsed            uint64
	CyclesUsed         uint32
	ContractsUsed      int
	RevertReason       *types.RevertReason
	Halt               *types.Halt
}

// VmTxExecutionResult wraps a per-transaction result with its status.
type VmTxExecutionResult struct {
	Status TxExecutionStatus
	Result VmExecutionResult
}

// VmBlockResult is the outcome of running the bootloader to block end: the
// aggregate over the whole batch plus the block-tip portion.
type VmBlockResult struct {
	FullResult     VmExecutionResult
	BlockTipResult VmExecutionResult
}

type stagedTx struct {
	tx         *types.Transaction
	validation AccountValidationMode
	compressed []bytecode.CompressionRecord
}

type vmSnapshot struct {
	journalOffset int
}

// VmInstance is the native engine instance, bound to one batch.
type VmInstance struct {
	tools    *oracle.Tools
	blockCtx BlockContext
	props    BlockProperties
	gasLimit uint64

	txs    []*stagedTx
	cursor int

	gasUsedTotal uint64
	cyclesTotal  uint32
	snapshots    []vmSnapshot
	finished     bool
}

// InitVmWithGasLimit boots a fresh engine instance. The base system contract
// hashes are registered with the decommitter so they count as used contracts
// from the start.
func InitVmWithGasLimit(tools *oracle.Tools, blockCtx BlockContext, props BlockProperties,
	bootloader, defaultAA types.SystemContract, gasLimit uint64) *VmInstance {
	tools.Decommitter.RegisterHash(bootloader.Hash, bootloader.Code)
	tools.Decommitter.RegisterHash(defaultAA.Hash, defaultAA.Code)
	return &VmInstance{
		tools:    tools,
		blockCtx: blockCtx,
		props:    props,
		gasLimit: gasLimit,
	}
}

// PushTransactionToBootloaderMemory stages a transaction: the serialized
// words land in bootloader memory, the transaction joins the FIFO queue. No
// execution occurs.
func (vm *VmInstance) PushTransactionToBootloaderMemory(tx *types.Transaction,
	validation AccountValidationMode, compressed []bytecode.CompressionRecord) {
	vm.requireActive("push transaction")
	vm.appendStaged(&stagedTx{tx: tx, validation: validation, compressed: compressed})
	for _, word := range tx.Encode() {
		vm.tools.Memory.Append(word)
	}
	// The hashes of the compressed dependency payloads submitted alongside
	// the transaction are part of the bootloader's input as well.
	for _, rec := range compressed {
		var word uint256.Int
		word.SetBytes(rec.Hash.Bytes())
		vm.tools.Memory.Append(word)
	}
	log.Trace("vm1: staged transaction", "hash", tx.Hash(), "queue", vm.PendingTxs())
}

// ExecuteNextTx runs exactly the next staged transaction. Calling with an
// empty queue is a caller error.
func (vm *VmInstance) ExecuteNextTx(validationGasLimit uint64) VmTxExecutionResult {
	vm.requireActive("execute next transaction")
	if vm.cursor >= len(vm.txs) {
		panic("vm1: no staged transaction to execute")
	}
	staged := vm.txs[vm.cursor]
	vm.advanceCursor()
	res := vm.runTx(staged, validationGasLimit)
	status := TxSuccess
	if res.RevertReason != nil || res.Halt != nil {
		status = TxFailure
	}
	return VmTxExecutionResult{Status: status, Result: res}
}

// ExecuteTillBlockEnd drains the staged queue and, for a postprocessing job,
// seals the batch: the storage overlay and registered bytecodes are flushed
// into the shared view and the instance becomes terminal.
func (vm *VmInstance) ExecuteTillBlockEnd(job BootloaderJobType) VmBlockResult {
	vm.requireActive("execute till block end")
	for vm.cursor < len(vm.txs) {
		staged := vm.txs[vm.cursor]
		vm.advanceCursor()
		vm.runTx(staged, vm.gasLimit)
	}
	tip := vm.ExecuteBlockTip()
	full := vm.aggregateResult()
	if job == BlockPostprocessing {
		vm.tools.Storage.Commit()
		vm.tools.Decommitter.Commit()
		vm.finished = true
	}
	return VmBlockResult{FullResult: full, BlockTipResult: tip}
}

// ExecuteBlockTip advances the bootloader past the last transaction
// boundary: the sealed-batch marker is written and a tip event emitted.
func (vm *VmInstance) ExecuteBlockTip() VmExecutionResult {
	vm.requireActive("execute block tip")
	var number uint256.Int
	number.SetUint64(vm.blockCtx.BlockNumber)
	vm.tools.Storage.Write(systemContextAddress, sealedBatchSlot, common.Hash(number.Bytes32()))
	event := types.Event{
		BatchNumber: vm.blockCtx.BlockNumber,
		Address:     systemContextAddress,
		Topics:      []common.Hash{common.Hash(number.Bytes32())},
	}
	vm.tools.EventSink.Append(event)
	vm.bumpCycles(1)
	return VmExecutionResult{
		Events:             []types.Event{event},
		StorageLogs:        []types.StorageLog{{Address: systemContextAddress, Key: sealedBatchSlot, Value: common.Hash(number.Bytes32())}},
		UsedContractHashes: vm.tools.Decommitter.UsedHashes(),
		CyclesUsed:         1,
	}
}

// IsBytecodeKnown reports whether a bytecode hash is resolvable, either
// through this batch's decommitter or the backing storage.
func (vm *VmInstance) IsBytecodeKnown(hash common.Hash) bool {
	return vm.tools.Decommitter.IsKnown(hash)
}

// PendingTxs returns the number of staged, not yet executed transactions.
func (vm *VmInstance) PendingTxs() int {
	return len(vm.txs) - vm.cursor
}

// SaveCurrentVmAsSnapshot pushes a snapshot of the full engine state.
func (vm *VmInstance) SaveCurrentVmAsSnapshot() {
	if !vm.tools.Journal.Enabled() {
		panic("vm1: snapshots require a history-enabled instance")
	}
	vm.snapshots = append(vm.snapshots, vmSnapshot{journalOffset: vm.tools.Journal.Length()})
}

// RollbackToLatestSnapshot restores the most recent snapshot and discards
// it. Snapshots are strictly LIFO.
func (vm *VmInstance) RollbackToLatestSnapshot() {
	last := vm.popSnapshot()
	vm.tools.Journal.RevertTo(last.journalOffset)
}

// PopSnapshotNoRollback discards the most recent snapshot, keeping the
// current state.
func (vm *VmInstance) PopSnapshotNoRollback() {
	vm.popSnapshot()
}

func (vm *VmInstance) popSnapshot() vmSnapshot {
	if len(vm.snapshots) == 0 {
		panic("vm1: no snapshot to pop")
	}
	last := vm.snapshots[len(vm.snapshots)-1]
	vm.snapshots = vm.snapshots[:len(vm.snapshots)-1]
	return last
}

// Subsystem size metrics, in the order the memory-metrics record reports
// them.

func (vm *VmInstance) EventSinkSize() (size, history uint64) {
	return uint64(vm.tools.EventSink.Size()), uint64(vm.tools.EventSink.HistorySize())
}

func (vm *VmInstance) MemorySize() (size, history uint64) {
	return uint64(vm.tools.Memory.Size()) * bytecode.WordSize, uint64(vm.tools.Memory.HistorySize()) * bytecode.WordSize
}

func (vm *VmInstance) DecommitterSize() (size, history uint64) {
	return vm.tools.Decommitter.Size(), vm.tools.Decommitter.HistorySize()
}

func (vm *VmInstance) StorageSize() (size, history uint64) {
	return vm.tools.Storage.Size(), vm.tools.Storage.HistorySize()
}

// Finished reports whether the batch has been sealed.
func (vm *VmInstance) Finished() bool { return vm.finished }

// aggregateResult collects the whole-batch view from the subsystem sinks.
func (vm *VmInstance) aggregateResult() VmExecutionResult {
	return VmExecutionResult{
		Events:             append([]types.Event(nil), vm.tools.EventSink.Items()...),
		StorageLogs:        append([]types.StorageLog(nil), vm.tools.Storage.Logs()...),
		UsedContractHashes: vm.tools.Decommitter.UsedHashes(),
		GasUsed:            vm.gasUsedTotal,
		CyclesUsed:         vm.cyclesTotal,
		ContractsUsed:      int(vm.tools.Decommitter.Size()),
	}
}

func (vm *VmInstance) requireActive(op string) {
	if vm.finished {
		panic("vm1: " + op + " after batch was sealed")
	}
}

func (vm *VmInstance) appendStaged(staged *stagedTx) {
	vm.txs = append(vm.txs, staged)
	vm.tools.Journal.Append(func() {
		vm.txs = vm.txs[:len(vm.txs)-1]
	})
}

func (vm *VmInstance) advanceCursor() {
	prev := vm.cursor
	vm.cursor++
	vm.tools.Journal.Append(func() {
		vm.cursor = prev
	})
}

func (vm *VmInstance) bumpGas(used uint64) {
	prev := vm.gasUsedTotal
	vm.gasUsedTotal += used
	vm.tools.Journal.Append(func() {
		vm.gasUsedTotal = prev
	})
}

func (vm *VmInstance) bumpCycles(cycles uint32) {
	prev := vm.cyclesTotal
	vm.cyclesTotal += cycles
	vm.tools.Journal.Append(func() {
		vm.cyclesTotal = prev
	})
}

func (vm *VmInstance) nonceOf(addr common.Address) uint64 {
	stored := vm.tools.Storage.Read(nonceHolderAddress, nonceSlot(addr))
	return binary.BigEndian.Uint64(stored[24:])
}

func (vm *VmInstance) setNonce(addr common.Address, nonce uint64) types.StorageLog {
	var value common.Hash
	binary.BigEndian.PutUint64(value[24:], nonce)
	vm.tools.Storage.Write(nonceHolderAddress, nonceSlot(addr), value)
	return types.StorageLog{Address: nonceHolderAddress, Key: nonceSlot(addr), Value: value}
}

func nonceSlot(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// runTx executes one staged transaction against the subsystem sinks.
func (vm *VmInstance) runTx(staged *stagedTx, validationGasLimit uint64) VmExecutionResult {
	tx := staged.tx
	cost := uint64(intrinsicGas + dataByteGas*len(tx.Data))
	cycles := uint32(1 + bytecode.WordCount(tx.Data))

	if cost > tx.GasLimit {
		vm.bumpGas(tx.GasLimit)
		vm.bumpCycles(1)
		return VmExecutionResult{
			GasUsed:    tx.GasLimit,
			CyclesUsed: 1,
			Halt:       &types.Halt{Reason: types.HaltNotEnoughGas},
		}
	}
	if staged.validation == ValidationFull {
		if cost > validationGasLimit {
			vm.bumpCycles(1)
			return VmExecutionResult{
				CyclesUsed: 1,
				Halt:       &types.Halt{Reason: types.HaltValidationFailed, Details: "validation gas limit exceeded"},
			}
		}
		if want := vm.nonceOf(tx.From); tx.Nonce != want {
			vm.bumpCycles(1)
			return VmExecutionResult{
				CyclesUsed: 1,
				Halt:       &types.Halt{Reason: types.HaltValidationFailed, Details: "nonce mismatch"},
			}
		}
	}

	contracts := 0
	for _, dep := range tx.FactoryDeps {
		if vm.tools.Decommitter.Register(dep) {
			contracts++
		}
	}
	nonceLog := vm.setNonce(tx.From, tx.Nonce+1)
	vm.bumpGas(cost)
	vm.bumpCycles(cycles)

	res := VmExecutionResult{
		StorageLogs:        []types.StorageLog{nonceLog},
		UsedContractHashes: vm.tools.Decommitter.UsedHashes(),
		GasUsed:            cost,
		CyclesUsed:         cycles,
		ContractsUsed:      contracts,
	}
	if len(tx.Data) >= 4 && string(tx.Data[:4]) == string(revertSelector) {
		reason := types.ParseRevertReason(tx.Data)
		res.RevertReason = &reason
		return res
	}
	event := types.Event{
		BatchNumber: vm.blockCtx.BlockNumber,
		TxIndex:     uint32(vm.cursor - 1),
		Address:     eventWriterAddress,
		Topics:      []common.Hash{tx.Hash()},
	}
	vm.tools.EventSink.Append(event)
	res.Events = []types.Event{event}
	return res
}
