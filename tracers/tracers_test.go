package tracers

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/openrollup/multivm/engine/vmlatest"
	"github.com/openrollup/multivm/engine/vmvirtual"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/types"
)

// taggedTracer projects into native tracers that record their tag on every
// Initialize call.
type taggedTracer struct {
	tag string
	log *[]string
}

func (t *taggedTracer) VirtualBlocks() vmvirtual.Tracer { return &taggedVirtual{t: t} }
func (t *taggedTracer) Latest() vmlatest.Tracer         { return &taggedLatest{t: t} }

type taggedVirtual struct {
	vmvirtual.BaseTracer
	t *taggedTracer
}

func (v *taggedVirtual) Initialize(*vmvirtual.Engine) {
	*v.t.log = append(*v.t.log, v.t.tag)
}

type taggedLatest struct {
	vmlatest.BaseTracer
	t *taggedTracer
}

func (l *taggedLatest) Initialize(*vmlatest.Engine) {
	*l.t.log = append(*l.t.log, l.t.tag)
}

func TestProjectionPreservesOrder(t *testing.T) {
	var log []string
	d := NewDispatcher(
		&taggedTracer{tag: "a", log: &log},
		&taggedTracer{tag: "b", log: &log},
		&taggedTracer{tag: "c", log: &log},
	)

	d.IntoVirtualBlocks().Initialize(nil)
	require.Equal(t, []string{"a", "b", "c"}, log)

	log = log[:0]
	d.IntoLatest().Initialize(nil)
	require.Equal(t, []string{"a", "b", "c"}, log)
}

func TestNilDispatcherProjectsEmpty(t *testing.T) {
	var d *Dispatcher
	require.Equal(t, 0, d.Members())
	require.Equal(t, 0, d.IntoVirtualBlocks().Members())
	require.Equal(t, 0, d.IntoLatest().Members())
}

func TestResultCell(t *testing.T) {
	cell := NewResultCell[int]()
	_, ok := cell.Take()
	require.False(t, ok)

	cell.Publish(7)
	got, ok := cell.Take()
	require.True(t, ok)
	require.Equal(t, 7, got)

	require.Panics(t, func() { cell.Publish(8) }, "a cell accepts exactly one result")
}

func newVirtualEngine(t *testing.T) *vmvirtual.Engine {
	t.Helper()
	view := storage.NewView(storage.NewMemStore())
	return vmvirtual.NewEngine[types.HistoryEnabled](view, vmvirtual.BatchContext{Number: 1},
		vmvirtual.SystemSettings{Policy: vmvirtual.PolicyVerifyExecute, ValidationGasLimit: 1 << 30},
		vmvirtual.L2Block{Number: 1})
}

func newLatestEngine(t *testing.T) *vmlatest.Engine {
	t.Helper()
	view := storage.NewView(storage.NewMemStore())
	batch := types.BatchEnv{Number: 1, BaseFee: uint256.NewInt(1), FairGasPrice: uint256.NewInt(1)}
	sys := types.SystemEnv{TxMode: types.VerifyExecute, GasLimit: 1 << 30, DefaultValidationGasLimit: 1 << 30}
	return vmlatest.NewEngine[types.HistoryEnabled](view, batch, sys)
}

func traceTx(data []byte) *types.Transaction {
	return &types.Transaction{
		From:     common.HexToAddress("0x00000000000000000000000000000000000000ee"),
		Value:    uint256.NewInt(0),
		GasLimit: 1_000_000,
		Data:     data,
	}
}

func TestCallTracerOnVirtualBlocks(t *testing.T) {
	cell := NewResultCell[[]Call]()
	d := NewDispatcher(NewCallTracer(cell))

	eng := newVirtualEngine(t)
	eng.PushTransaction(traceTx(make([]byte, 64)), nil) // 2 cycles
	res := eng.ExecuteOneTx(d.IntoVirtualBlocks())
	require.False(t, res.Result.Failed())

	calls, ok := cell.Take()
	require.True(t, ok, "trace published when the execution call finished")
	require.Len(t, calls, 2)
	require.EqualValues(t, 0, calls[0].Cycle)
	require.EqualValues(t, 1, calls[1].Cycle)
	require.Equal(t, 0, calls[0].Position)
	require.Equal(t, 1, calls[1].Position)
}

func TestCallTracerOnLatest(t *testing.T) {
	cell := NewResultCell[[]Call]()
	d := NewDispatcher(NewCallTracer(cell))

	eng := newLatestEngine(t)
	eng.PushTransaction(traceTx(make([]byte, 96)), nil)
	eng.ExecuteOneTx(d.IntoLatest())

	calls, ok := cell.Take()
	require.True(t, ok)
	require.Len(t, calls, 3, "same tracer core records on the newest generation too")
}

func TestDeadlineTracerStopsVirtualBlocks(t *testing.T) {
	d := NewDispatcher(NewDeadlineTracer(time.Now().Add(-time.Second)))

	eng := newVirtualEngine(t)
	eng.PushTransaction(traceTx(make([]byte, 96)), nil)
	res := eng.ExecuteOneTx(d.IntoVirtualBlocks())

	require.NotNil(t, res.Result.Halt)
	require.Equal(t, types.HaltTracerRequested, res.Result.Halt.Reason)
}

func TestDeadlineTracerStopsLatest(t *testing.T) {
	d := NewDispatcher(NewDeadlineTracer(time.Now().Add(-time.Second)))

	eng := newLatestEngine(t)
	eng.PushTransaction(traceTx(make([]byte, 96)), nil)
	res := eng.ExecuteOneTx(d.IntoLatest())

	require.NotNil(t, res.Result.Halt)
	require.Equal(t, types.HaltTracerRequested, res.Result.Halt.Reason)
}

func TestDeadlineTracerFutureDeadlineDoesNotStop(t *testing.T) {
	d := NewDispatcher(NewDeadlineTracer(time.Now().Add(time.Hour)))

	eng := newVirtualEngine(t)
	eng.PushTransaction(traceTx([]byte{1}), nil)
	res := eng.ExecuteOneTx(d.IntoVirtualBlocks())
	require.False(t, res.Result.Failed())
}
