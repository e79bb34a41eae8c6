package vmvirtual

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	view := storage.NewView(storage.NewMemStore())
	return NewEngine[types.HistoryEnabled](view, BatchContext{Number: 9},
		SystemSettings{Policy: PolicyVerifyExecute, ValidationGasLimit: 1 << 30},
		L2Block{Number: 1, MaxVirtualBlocks: 10})
}

func testTx(nonce uint64, data []byte) *types.Transaction {
	return &types.Transaction{
		From:     common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		Nonce:    nonce,
		Value:    uint256.NewInt(0),
		GasLimit: 1_000_000,
		Data:     data,
	}
}

// recordingTracer notes every hook invocation under a label.
type recordingTracer struct {
	BaseTracer
	label string
	log   *[]string
}

func (r *recordingTracer) note(hook string) {
	*r.log = append(*r.log, r.label+":"+hook)
}

func (r *recordingTracer) BeforeDecoding(CycleState, *SimpleMemory) { r.note("beforeDecoding") }
func (r *recordingTracer) AfterDecoding(CycleState, DecodedOpcode, *SimpleMemory) {
	r.note("afterDecoding")
}
func (r *recordingTracer) BeforeExecution(CycleState, DecodedOpcode, *SimpleMemory, *storage.View) {
	r.note("beforeExecution")
}
func (r *recordingTracer) AfterExecution(CycleState, DecodedOpcode, *SimpleMemory, *storage.View) {
	r.note("afterExecution")
}
func (r *recordingTracer) Initialize(*Engine)                   { r.note("initialize") }
func (r *recordingTracer) AfterCycle(*Engine, *BootloaderState) { r.note("afterCycle") }
func (r *recordingTracer) AfterVmExecution(*Engine, *BootloaderState, StopReason) {
	r.note("afterVmExecution")
}
func (r *recordingTracer) SaveResults(*types.ExecutionResultAndLogs) { r.note("saveResults") }

// stopTracer answers the stop poll with a fixed verdict and counts polls.
type stopTracer struct {
	BaseTracer
	stop  bool
	polls int
}

func (s *stopTracer) ShouldStopExecution() bool {
	s.polls++
	return s.stop
}

func TestDispatcherPreservesOrder(t *testing.T) {
	var log []string
	a := &recordingTracer{label: "a", log: &log}
	b := &recordingTracer{label: "b", log: &log}
	d := NewTracerDispatcher(a, b)

	d.BeforeDecoding(CycleState{}, nil)
	d.AfterCycle(nil, nil)
	require.Equal(t, []string{"a:beforeDecoding", "b:beforeDecoding", "a:afterCycle", "b:afterCycle"}, log)
}

func TestDispatcherStopIsNonShortCircuitOr(t *testing.T) {
	first := &stopTracer{stop: false}
	second := &stopTracer{stop: true}
	third := &stopTracer{stop: false}
	d := NewTracerDispatcher(first, second, third)

	require.True(t, d.ShouldStopExecution())
	require.Equal(t, 1, first.polls)
	require.Equal(t, 1, second.polls)
	require.Equal(t, 1, third.polls, "members after a stop vote are still polled")

	quiet := NewTracerDispatcher(&stopTracer{}, &stopTracer{})
	require.False(t, quiet.ShouldStopExecution())
}

func TestDispatcherNests(t *testing.T) {
	inner := NewTracerDispatcher(&stopTracer{stop: true})
	outer := NewTracerDispatcher(inner)
	require.True(t, outer.ShouldStopExecution())
}

func TestHooksFireOncePerCycle(t *testing.T) {
	eng := newTestEngine(t)
	var log []string
	tracer := &recordingTracer{label: "t", log: &log}

	eng.PushTransaction(testTx(0, make([]byte, 96)), nil) // 3 words, 3 cycles
	res := eng.ExecuteOneTx(NewTracerDispatcher(tracer))
	require.False(t, res.Result.Failed())
	require.EqualValues(t, 3, res.Statistics.CyclesUsed)

	counts := make(map[string]int)
	for _, entry := range log {
		counts[entry]++
	}
	require.Equal(t, 1, counts["t:initialize"])
	require.Equal(t, 3, counts["t:beforeDecoding"])
	require.Equal(t, 3, counts["t:afterDecoding"])
	require.Equal(t, 3, counts["t:beforeExecution"])
	require.Equal(t, 3, counts["t:afterExecution"])
	require.Equal(t, 3, counts["t:afterCycle"])
	require.Equal(t, 1, counts["t:afterVmExecution"])
	require.Equal(t, 1, counts["t:saveResults"])
}

func TestEmptyDispatcherMatchesBaseTracer(t *testing.T) {
	run := func(tracer Tracer) *types.ExecutionResultAndLogs {
		eng := newTestEngine(t)
		eng.PushTransaction(testTx(0, []byte{1, 2, 3}), nil)
		return eng.ExecuteOneTx(tracer)
	}
	require.Equal(t, run(BaseTracer{}), run(NewTracerDispatcher()),
		"zero members behave exactly like no instrumentation")
}

func TestTracerStopHaltsExecution(t *testing.T) {
	eng := newTestEngine(t)
	eng.PushTransaction(testTx(0, make([]byte, 96)), nil)

	res := eng.ExecuteOneTx(NewTracerDispatcher(&stopTracer{stop: true}))
	require.NotNil(t, res.Result.Halt)
	require.Equal(t, types.HaltTracerRequested, res.Result.Halt.Reason)
	require.EqualValues(t, 1, res.Statistics.CyclesUsed, "stopped after the first cycle")
}

func TestExecuteBatchDrainsQueueAndSeals(t *testing.T) {
	eng := newTestEngine(t)
	eng.PushTransaction(testTx(0, nil), nil)
	eng.PushTransaction(testTx(1, nil), nil)

	res := eng.ExecuteBatch(NewTracerDispatcher())
	require.Equal(t, 0, eng.PendingTxs())
	require.Len(t, res.Logs.Events, 3, "two tx events plus the block tip event")

	state := eng.ExecutionState()
	require.Len(t, state.Events, 3)
}

func TestStartNewL2Block(t *testing.T) {
	eng := newTestEngine(t)
	eng.StartNewL2Block(L2Block{Number: 2, Timestamp: 100, MaxVirtualBlocks: 5})
	require.EqualValues(t, 2, eng.bootloader.L2Block.Number)
	require.Zero(t, eng.bootloader.VirtualBlocksCreated)

	var found bool
	for _, sl := range eng.ExecutionState().StorageLogs {
		if sl.Address == systemContextAddress && sl.Key == l2BlockInfoSlot {
			found = true
		}
	}
	require.True(t, found, "block info recorded in the system context")
}

func TestSnapshotRestoresBootloaderState(t *testing.T) {
	eng := newTestEngine(t)
	eng.MakeSnapshot()
	eng.StartNewL2Block(L2Block{Number: 2})
	eng.PushTransaction(testTx(0, nil), nil)
	eng.ExecuteOneTx(NewTracerDispatcher())

	eng.RollbackToLatestSnapshot()
	require.EqualValues(t, 1, eng.bootloader.L2Block.Number)
	require.Zero(t, eng.bootloader.PendingTxs)
	require.Empty(t, eng.ExecutionState().Events)
}

func TestBootloaderMemoryCells(t *testing.T) {
	eng := newTestEngine(t)
	require.Empty(t, eng.BootloaderMemory())

	eng.PushTransaction(testTx(0, []byte{1, 2, 3}), nil)
	mem := eng.BootloaderMemory()
	require.NotEmpty(t, mem)
	for i, cell := range mem {
		require.EqualValues(t, i, cell.Index)
	}
}

func TestSealBatchTerminal(t *testing.T) {
	eng := newTestEngine(t)
	eng.SealBatch()
	require.True(t, eng.Sealed())
	require.Panics(t, func() { eng.PushTransaction(testTx(0, nil), nil) })
}
