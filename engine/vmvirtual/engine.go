// Package vmvirtual is the native engine of the virtual-blocks generation:
// the first generation with tracer hook points in the interpretation loop,
// an L2-block concept and on-demand execution state.
package vmvirtual

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/openrollup/multivm/bytecode"
	"github.com/openrollup/multivm/internal/oracle"
	"github.com/openrollup/multivm/storage"
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

var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// System-context slots.
var (
	sealedBatchSlot = common.HexToHash("0x01")
	l2BlockInfoSlot = common.HexToHash("0x02")
)

// ExecutionPolicy is the version-native execution policy. The glue layer
// maps the unified transaction mode onto it.
type ExecutionPolicy int

const (
	PolicyVerifyExecute ExecutionPolicy = iota
	PolicyEstimateGas
	PolicyCallOnly
)

// BatchContext is the version-native view of the batch environment.
type BatchContext struct {
	Number        uint64
	Timestamp     uint64
	FeeAccount    common.Address
	BaseFee       uint256.Int
	FairGasPrice  uint256.Int
	PrevBatchHash common.Hash
}

// SystemSettings is the version-native execution policy bundle.
type SystemSettings struct {
	ChainID            uint64
	Policy             ExecutionPolicy
	BootloaderGasLimit uint64
	ValidationGasLimit uint64
	Bootloader         types.SystemContract
	DefaultAA          types.SystemContract
}

// L2Block is the native representation of an L2 block boundary.
type L2Block struct {
	Number           uint64
	Timestamp        uint64
	PrevHash         common.Hash
	MaxVirtualBlocks uint32
}

// BootloaderState is the bootloader-side state handed to lifecycle hooks.
type BootloaderState struct {
	L2Block              L2Block
	TxIndex              int
	PendingTxs           int
	VirtualBlocksCreated uint32
}

type stagedTx struct {
	tx         *types.Transaction
	compressed []bytecode.CompressionRecord
}

type engineSnapshot struct {
	journalOffset int
	bootloader    BootloaderState
}

// Engine is the native engine instance, bound to one batch.
type Engine struct {
	view       *storage.View
	tools      *oracle.Tools
	batchCtx   BatchContext
	settings   SystemSettings
	bootloader BootloaderState

	txs    []*stagedTx
	cursor int

	gasUsedTotal uint64
	cyclesTotal  uint32
	snapshots    []engineSnapshot
	sealed       bool
}

// NewEngine boots a fresh engine instance over a shared storage view. The
// history marker H decides at instantiation time whether the instance can
// be rolled back.
func NewEngine[H types.HistoryMode](view *storage.View, batchCtx BatchContext,
	settings SystemSettings, firstBlock L2Block) *Engine {
	tools := oracle.NewTools[H](view)
	tools.Decommitter.RegisterHash(settings.Bootloader.Hash, settings.Bootloader.Code)
	tools.Decommitter.RegisterHash(settings.DefaultAA.Hash, settings.DefaultAA.Code)
	return &Engine{
		view:       view,
		tools:      tools,
		batchCtx:   batchCtx,
		settings:   settings,
		bootloader: BootloaderState{L2Block: firstBlock},
	}
}

// PushTransaction stages a transaction: serialized words land in bootloader
// memory, the transaction joins the FIFO queue.
func (e *Engine) PushTransaction(tx *types.Transaction, compressed []bytecode.CompressionRecord) {
	e.requireActive("push transaction")
	prevTxs, prevPending := e.txs, e.bootloader.PendingTxs
	e.txs = append(e.txs, &stagedTx{tx: tx, compressed: compressed})
	e.bootloader.PendingTxs++
	e.tools.Journal.Append(func() {
		e.txs = prevTxs
		e.bootloader.PendingTxs = prevPending
	})
	for _, word := range tx.Encode() {
		e.tools.Memory.Append(word)
	}
	for _, rec := range compressed {
		var word uint256.Int
		word.SetBytes(rec.Hash.Bytes())
		e.tools.Memory.Append(word)
	}
	log.Trace("vmvirtual: staged transaction", "hash", tx.Hash(), "queue", e.bootloader.PendingTxs)
}

// ExecuteOneTx runs exactly the next staged transaction under the given
// tracer. Calling with an empty queue is a caller error.
func (e *Engine) ExecuteOneTx(tracer Tracer) *types.ExecutionResultAndLogs {
	e.requireActive("execute next transaction")
	if e.cursor >= len(e.txs) {
		panic("vmvirtual: no staged transaction to execute")
	}
	tracer.Initialize(e)
	res, stopped := e.runTx(tracer, e.nextStaged())
	reason := VmFinished
	if stopped {
		reason = TracerRequestedStop
	}
	tracer.AfterVmExecution(e, &e.bootloader, reason)
	tracer.SaveResults(res)
	return res
}

// ExecuteBatch drains the staged queue and runs the block tip, under the
// given tracer. The returned result aggregates the whole run.
func (e *Engine) ExecuteBatch(tracer Tracer) *types.ExecutionResultAndLogs {
	e.requireActive("execute batch")
	tracer.Initialize(e)
	stopped := false
	for e.cursor < len(e.txs) && !stopped {
		_, stopped = e.runTx(tracer, e.nextStaged())
	}
	if !stopped {
		e.sealL2Block()
	}
	res := e.aggregateResult()
	reason := VmFinished
	if stopped {
		reason = TracerRequestedStop
		res.Result.Halt = &types.Halt{Reason: types.HaltTracerRequested}
	}
	tracer.AfterVmExecution(e, &e.bootloader, reason)
	tracer.SaveResults(res)
	return res
}

// ExecuteBootloaderStep advances the bootloader to its next natural
// boundary: the current L2 block is sealed without requiring a transaction
// boundary.
func (e *Engine) ExecuteBootloaderStep(tracer Tracer) *types.ExecutionResultAndLogs {
	e.requireActive("execute bootloader step")
	tracer.Initialize(e)
	res := e.sealL2Block()
	tracer.AfterVmExecution(e, &e.bootloader, VmFinished)
	tracer.SaveResults(res)
	return res
}

// StartNewL2Block opens a new L2 block: the block info lands in the system
// context and the bootloader state switches over.
func (e *Engine) StartNewL2Block(block L2Block) {
	e.requireActive("start new L2 block")
	prev := e.bootloader
	e.bootloader.L2Block = block
	e.bootloader.VirtualBlocksCreated = 0
	e.tools.Journal.Append(func() {
		e.bootloader = prev
	})
	e.tools.Storage.Write(systemContextAddress, l2BlockInfoSlot, packBlockInfo(block.Number, block.Timestamp))
	log.Trace("vmvirtual: started L2 block", "number", block.Number, "timestamp", block.Timestamp)
}

// ExecutionState returns the aggregate batch state. Available on demand for
// this generation.
func (e *Engine) ExecutionState() types.CurrentExecutionState {
	return types.CurrentExecutionState{
		Events:             append([]types.Event(nil), e.tools.EventSink.Items()...),
		StorageLogs:        append([]types.StorageLog(nil), e.tools.Storage.Logs()...),
		UsedContractHashes: e.tools.Decommitter.UsedHashes(),
	}
}

// BootloaderMemory returns the ordered memory cells holding the serialized
// transaction queue.
func (e *Engine) BootloaderMemory() types.BootloaderMemory {
	words := e.tools.Memory.Items()
	mem := make(types.BootloaderMemory, len(words))
	for i, w := range words {
		mem[i] = types.BootloaderMemoryCell{Index: uint64(i), Value: w}
	}
	return mem
}

// SealBatch flushes the storage overlay and registered bytecodes into the
// shared view and makes the instance terminal.
func (e *Engine) SealBatch() {
	e.requireActive("seal batch")
	e.tools.Storage.Commit()
	e.tools.Decommitter.Commit()
	e.sealed = true
}

// IsBytecodeKnown reports whether a bytecode hash is resolvable.
func (e *Engine) IsBytecodeKnown(hash common.Hash) bool {
	return e.tools.Decommitter.IsKnown(hash)
}

// PendingTxs returns the number of staged, not yet executed transactions.
func (e *Engine) PendingTxs() int { return len(e.txs) - e.cursor }

// Sealed reports whether the batch has been sealed.
func (e *Engine) Sealed() bool { return e.sealed }

// MakeSnapshot pushes a snapshot of the full engine state.
func (e *Engine) MakeSnapshot() {
	if !e.tools.Journal.Enabled() {
		panic("vmvirtual: snapshots require a history-enabled instance")
	}
	e.snapshots = append(e.snapshots, engineSnapshot{
		journalOffset: e.tools.Journal.Length(),
		bootloader:    e.bootloader,
	})
}

// RollbackToLatestSnapshot restores the most recent snapshot and discards
// it. Snapshots are strictly LIFO.
func (e *Engine) RollbackToLatestSnapshot() {
	last := e.popSnapshot()
	e.tools.Journal.RevertTo(last.journalOffset)
	e.bootloader = last.bootloader
}

// PopSnapshotNoRollback discards the most recent snapshot, keeping the
// current state.
func (e *Engine) PopSnapshotNoRollback() {
	e.popSnapshot()
}

func (e *Engine) popSnapshot() engineSnapshot {
	if len(e.snapshots) == 0 {
		panic("vmvirtual: no snapshot to pop")
	}
	last := e.snapshots[len(e.snapshots)-1]
	e.snapshots = e.snapshots[:len(e.snapshots)-1]
	return last
}

// Subsystem size metrics.

func (e *Engine) EventSinkSize() (size, history uint64) {
	return uint64(e.tools.EventSink.Size()), uint64(e.tools.EventSink.HistorySize())
}

func (e *Engine) MemorySize() (size, history uint64) {
	return uint64(e.tools.Memory.Size()) * bytecode.WordSize, uint64(e.tools.Memory.HistorySize()) * bytecode.WordSize
}

func (e *Engine) DecommitterSize() (size, history uint64) {
	return e.tools.Decommitter.Size(), e.tools.Decommitter.HistorySize()
}

func (e *Engine) StorageSize() (size, history uint64) {
	return e.tools.Storage.Size(), e.tools.Storage.HistorySize()
}

func (e *Engine) requireActive(op string) {
	if e.sealed {
		panic("vmvirtual: " + op + " after batch was sealed")
	}
}

func (e *Engine) nextStaged() *stagedTx {
	staged := e.txs[e.cursor]
	prevCursor, prevState := e.cursor, e.bootloader
	e.cursor++
	e.bootloader.TxIndex = e.cursor - 1
	e.bootloader.PendingTxs--
	if e.bootloader.VirtualBlocksCreated < e.bootloader.L2Block.MaxVirtualBlocks {
		e.bootloader.VirtualBlocksCreated++
	}
	e.tools.Journal.Append(func() {
		e.cursor = prevCursor
		e.bootloader = prevState
	})
	return staged
}

func (e *Engine) bumpGas(used uint64) {
	prev := e.gasUsedTotal
	e.gasUsedTotal += used
	e.tools.Journal.Append(func() {
		e.gasUsedTotal = prev
	})
}

func (e *Engine) bumpCycles(cycles uint32) {
	prev := e.cyclesTotal
	e.cyclesTotal += cycles
	e.tools.Journal.Append(func() {
		e.cyclesTotal = prev
	})
}

// sealL2Block writes the block-sealed marker and emits the tip event.
func (e *Engine) sealL2Block() *types.ExecutionResultAndLogs {
	var number uint256.Int
	number.SetUint64(e.batchCtx.Number)
	e.tools.Storage.Write(systemContextAddress, sealedBatchSlot, common.Hash(number.Bytes32()))
	event := types.Event{
		BatchNumber: e.batchCtx.Number,
		Address:     systemContextAddress,
		Topics:      []common.Hash{common.Hash(number.Bytes32())},
	}
	e.tools.EventSink.Append(event)
	e.bumpCycles(1)
	return &types.ExecutionResultAndLogs{
		Logs: types.ExecutionLogs{
			Events:      []types.Event{event},
			StorageLogs: []types.StorageLog{{Address: systemContextAddress, Key: sealedBatchSlot, Value: common.Hash(number.Bytes32())}},
		},
		Statistics: types.ExecutionStatistics{CyclesUsed: 1},
	}
}

// aggregateResult collects the whole-batch view from the subsystem sinks.
func (e *Engine) aggregateResult() *types.ExecutionResultAndLogs {
	return &types.ExecutionResultAndLogs{
		Logs: types.ExecutionLogs{
			Events:      append([]types.Event(nil), e.tools.EventSink.Items()...),
			StorageLogs: append([]types.StorageLog(nil), e.tools.Storage.Logs()...),
		},
		Statistics: types.ExecutionStatistics{
			ContractsUsed: int(e.tools.Decommitter.Size()),
			CyclesUsed:    e.cyclesTotal,
			GasUsed:       e.gasUsedTotal,
		},
	}
}

func (e *Engine) nonceOf(addr common.Address) uint64 {
	stored := e.tools.Storage.Read(nonceHolderAddress, nonceSlot(addr))
	return binary.BigEndian.Uint64(stored[24:])
}

func (e *Engine) setNonce(addr common.Address, nonce uint64) types.StorageLog {
	var value common.Hash
	binary.BigEndian.PutUint64(value[24:], nonce)
	e.tools.Storage.Write(nonceHolderAddress, nonceSlot(addr), value)
	return types.StorageLog{Address: nonceHolderAddress, Key: nonceSlot(addr), Value: value}
}

func nonceSlot(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func packBlockInfo(number, timestamp uint64) common.Hash {
	var packed common.Hash
	binary.BigEndian.PutUint64(packed[16:24], number)
	binary.BigEndian.PutUint64(packed[24:], timestamp)
	return packed
}

// calldataWords chunks calldata into 32-byte interpreter words. Every
// transaction occupies at least one word.
func calldataWords(data []byte) [][bytecode.WordSize]byte {
	n := bytecode.WordCount(data)
	if n == 0 {
		n = 1
	}
	words := make([][bytecode.WordSize]byte, n)
	for i := range words {
		off := i * bytecode.WordSize
		if off < len(data) {
			copy(words[i][:], data[off:])
		}
	}
	return words
}

// runTx executes one staged transaction, firing the structural hooks once
// per interpreter cycle and polling the stop request after each one.
func (e *Engine) runTx(tracer Tracer, staged *stagedTx) (*types.ExecutionResultAndLogs, bool) {
	tx := staged.tx
	cost := uint64(intrinsicGas + dataByteGas*len(tx.Data))

	if cost > tx.GasLimit {
		e.bumpGas(tx.GasLimit)
		e.bumpCycles(1)
		return &types.ExecutionResultAndLogs{
			Result:     types.ExecutionResult{Halt: &types.Halt{Reason: types.HaltNotEnoughGas}},
			Statistics: types.ExecutionStatistics{CyclesUsed: 1, GasUsed: tx.GasLimit},
		}, false
	}
	if e.settings.Policy == PolicyVerifyExecute {
		if cost > e.settings.ValidationGasLimit {
			e.bumpCycles(1)
			return &types.ExecutionResultAndLogs{
				Result:     types.ExecutionResult{Halt: &types.Halt{Reason: types.HaltValidationFailed, Details: "validation gas limit exceeded"}},
				Statistics: types.ExecutionStatistics{CyclesUsed: 1},
			}, false
		}
		if want := e.nonceOf(tx.From); tx.Nonce != want {
			e.bumpCycles(1)
			return &types.ExecutionResultAndLogs{
				Result:     types.ExecutionResult{Halt: &types.Halt{Reason: types.HaltValidationFailed, Details: "nonce mismatch"}},
				Statistics: types.ExecutionStatistics{CyclesUsed: 1},
			}, false
		}
	}

	memory := &SimpleMemory{words: e.tools.Memory}
	words := calldataWords(tx.Data)
	spent := uint64(intrinsicGas)
	stopped := false
	var cycles uint32
	for i, word := range words {
		state := CycleState{
			TxIndex:      e.bootloader.TxIndex,
			Cycle:        cycles,
			GasRemaining: tx.GasLimit - spent,
		}
		tracer.BeforeDecoding(state, memory)
		op := DecodedOpcode{Opcode: word[0], Position: i}
		op.Operand.SetBytes(word[:])
		tracer.AfterDecoding(state, op, memory)
		tracer.BeforeExecution(state, op, memory, e.view)
		spent += dataByteGas * bytecode.WordSize
		if spent > cost {
			spent = cost
		}
		tracer.AfterExecution(state, op, memory, e.view)
		cycles++
		tracer.AfterCycle(e, &e.bootloader)
		if tracer.ShouldStopExecution() {
			stopped = true
			break
		}
	}
	e.bumpCycles(cycles)

	if stopped {
		e.bumpGas(spent)
		return &types.ExecutionResultAndLogs{
			Result:     types.ExecutionResult{Halt: &types.Halt{Reason: types.HaltTracerRequested}},
			Statistics: types.ExecutionStatistics{CyclesUsed: cycles, GasUsed: spent},
		}, true
	}

	contracts := 0
	for _, dep := range tx.FactoryDeps {
		if e.tools.Decommitter.Register(dep) {
			contracts++
		}
	}
	nonceLog := e.setNonce(tx.From, tx.Nonce+1)
	e.bumpGas(cost)

	res := &types.ExecutionResultAndLogs{
		Logs: types.ExecutionLogs{StorageLogs: []types.StorageLog{nonceLog}},
		Statistics: types.ExecutionStatistics{
			ContractsUsed: contracts,
			CyclesUsed:    cycles,
			GasUsed:       cost,
		},
	}
	if len(tx.Data) >= 4 && string(tx.Data[:4]) == string(revertSelector) {
		reason := types.ParseRevertReason(tx.Data)
		res.Result.Revert = &reason
		return res, false
	}
	event := types.Event{
		BatchNumber: e.batchCtx.Number,
		TxIndex:     uint32(e.bootloader.TxIndex),
		Address:     eventWriterAddress,
		Topics:      []common.Hash{tx.Hash()},
	}
	e.tools.EventSink.Append(event)
	res.Logs.Events = []types.Event{event}
	return res, false
}
