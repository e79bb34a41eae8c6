package vmlatest

import (
	"github.com/holiman/uint256"

	"github.com/openrollup/multivm/internal/history"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/types"
)

// StopReason tells tracers why interpretation halted.
type StopReason int

const (
	// VmFinished means the bootloader reached the natural end of the
	// requested work.
	VmFinished StopReason = iota

	// TracerRequestedStop means a tracer returned TracerStop from
	// FinishCycle.
	TracerRequestedStop
)

// TracerExecutionStatus is the verdict a tracer returns at the end of each
// cycle. This generation replaced the polled stop flag of the previous one
// with an explicit per-cycle verdict.
type TracerExecutionStatus int

const (
	TracerContinue TracerExecutionStatus = iota
	TracerStop
)

// CycleState is the per-cycle local state handed to the structural hooks.
type CycleState struct {
	TxIndex      int
	Cycle        uint32
	GasRemaining uint64
}

// DecodedOpcode is the decoded form of the word the interpreter is about to
// process.
type DecodedOpcode struct {
	Opcode   byte
	Operand  uint256.Int
	Position int
}

// SimpleMemory is the read-only view of bootloader memory given to the
// structural hooks.
type SimpleMemory struct {
	words *history.Vector[uint256.Int]
}

// Word returns the memory word at the given index.
func (m *SimpleMemory) Word(index int) uint256.Int {
	return m.words.Items()[index]
}

// Len returns the number of words currently in memory.
func (m *SimpleMemory) Len() int { return m.words.Size() }

// Tracer is the native instrumentation contract of the latest engine
// generation. The structural hooks fire once per cycle; FinishCycle closes
// each cycle and decides whether interpretation continues. Embed BaseTracer
// to implement only a subset.
type Tracer interface {
	BeforeDecoding(state CycleState, memory *SimpleMemory)
	AfterDecoding(state CycleState, op DecodedOpcode, memory *SimpleMemory)
	BeforeExecution(state CycleState, op DecodedOpcode, memory *SimpleMemory, storage *storage.View)
	AfterExecution(state CycleState, op DecodedOpcode, memory *SimpleMemory, storage *storage.View)

	Initialize(state *Engine)
	FinishCycle(state *Engine, bootloader *BootloaderState) TracerExecutionStatus
	AfterVmExecution(state *Engine, bootloader *BootloaderState, reason StopReason)
	SaveResults(result *types.ExecutionResultAndLogs)
}

// BaseTracer is a no-op implementation of every hook.
type BaseTracer struct{}

func (BaseTracer) BeforeDecoding(CycleState, *SimpleMemory)                                {}
func (BaseTracer) AfterDecoding(CycleState, DecodedOpcode, *SimpleMemory)                  {}
func (BaseTracer) BeforeExecution(CycleState, DecodedOpcode, *SimpleMemory, *storage.View) {}
func (BaseTracer) AfterExecution(CycleState, DecodedOpcode, *SimpleMemory, *storage.View)  {}
func (BaseTracer) Initialize(*Engine)                                                      {}
func (BaseTracer) AfterVmExecution(*Engine, *BootloaderState, StopReason)                  {}
func (BaseTracer) SaveResults(*types.ExecutionResultAndLogs)                               {}

func (BaseTracer) FinishCycle(*Engine, *BootloaderState) TracerExecutionStatus {
	return TracerContinue
}

// TracerDispatcher fans every hook out to an ordered list of member tracers.
// It never reorders, batches or drops a call, and it is itself a Tracer, so
// dispatchers nest. With zero members it behaves exactly like no
// instrumentation at all.
type TracerDispatcher struct {
	tracers []Tracer
}

// NewTracerDispatcher builds a dispatcher over the given members;
// registration order is call order for every hook.
func NewTracerDispatcher(tracers ...Tracer) *TracerDispatcher {
	return &TracerDispatcher{tracers: tracers}
}

// Members returns the number of member tracers.
func (d *TracerDispatcher) Members() int { return len(d.tracers) }

func (d *TracerDispatcher) BeforeDecoding(state CycleState, memory *SimpleMemory) {
	for _, t := range d.tracers {
		t.BeforeDecoding(state, memory)
	}
}

func (d *TracerDispatcher) AfterDecoding(state CycleState, op DecodedOpcode, memory *SimpleMemory) {
	for _, t := range d.tracers {
		t.AfterDecoding(state, op, memory)
	}
}

func (d *TracerDispatcher) BeforeExecution(state CycleState, op DecodedOpcode, memory *SimpleMemory, storage *storage.View) {
	for _, t := range d.tracers {
		t.BeforeExecution(state, op, memory, storage)
	}
}

func (d *TracerDispatcher) AfterExecution(state CycleState, op DecodedOpcode, memory *SimpleMemory, storage *storage.View) {
	for _, t := range d.tracers {
		t.AfterExecution(state, op, memory, storage)
	}
}

func (d *TracerDispatcher) Initialize(state *Engine) {
	for _, t := range d.tracers {
		t.Initialize(state)
	}
}

// FinishCycle asks every member for its verdict. A single TracerStop stops
// the run, but every member is asked even after one has voted to stop.
func (d *TracerDispatcher) FinishCycle(state *Engine, bootloader *BootloaderState) TracerExecutionStatus {
	verdict := TracerContinue
	for _, t := range d.tracers {
		if t.FinishCycle(state, bootloader) == TracerStop {
			verdict = TracerStop
		}
	}
	return verdict
}

func (d *TracerDispatcher) AfterVmExecution(state *Engine, bootloader *BootloaderState, reason StopReason) {
	for _, t := range d.tracers {
		t.AfterVmExecution(state, bootloader, reason)
	}
}

func (d *TracerDispatcher) SaveResults(result *types.ExecutionResultAndLogs) {
	for _, t := range d.tracers {
		t.SaveResults(result)
	}
}
