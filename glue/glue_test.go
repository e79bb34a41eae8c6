package glue_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/openrollup/multivm"
	"github.com/openrollup/multivm/bytecode"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/tracers"
	"github.com/openrollup/multivm/types"
	"github.com/openrollup/multivm/vm"
)

var allVersions = []multivm.Version{multivm.VmV1, multivm.VmVirtualBlocks, multivm.VmLatest}

func testEnvs(mode types.TxExecutionMode) (types.BatchEnv, types.SystemEnv) {
	batch := types.BatchEnv{
		Number:       1,
		Timestamp:    1,
		BaseFee:      uint256.NewInt(1),
		FairGasPrice: uint256.NewInt(1),
		FirstL2Block: types.L2BlockEnv{Number: 1, MaxVirtualBlocksToCreate: 1},
	}
	sys := types.SystemEnv{
		ChainID:                   270,
		TxMode:                    mode,
		GasLimit:                  1 << 30,
		DefaultValidationGasLimit: 1 << 30,
	}
	return batch, sys
}

func newVM(t *testing.T, version multivm.Version) vm.VM {
	t.Helper()
	batch, sys := testEnvs(types.VerifyExecute)
	return multivm.NewVM(version, storage.NewView(storage.NewMemStore()), batch, sys)
}

func newHistoryVM(t *testing.T, version multivm.Version) vm.HistoryVM {
	t.Helper()
	batch, sys := testEnvs(types.VerifyExecute)
	return multivm.NewHistoryVM(version, storage.NewView(storage.NewMemStore()), batch, sys)
}

func glueTx(nonce uint64, data []byte) *types.Transaction {
	return &types.Transaction{
		From:     common.HexToAddress("0x00000000000000000000000000000000000000ff"),
		Nonce:    nonce,
		Value:    uint256.NewInt(0),
		GasLimit: 1_000_000,
		Data:     data,
	}
}

func wellFormedDep(fill byte) []byte {
	dep := make([]byte, 3*32)
	for i := range dep {
		dep[i] = fill
	}
	return dep
}

func TestExecuteEqualsInspectWithEmptyDispatcher(t *testing.T) {
	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			executed := newVM(t, version)
			executed.PushTransaction(glueTx(0, []byte{1, 2, 3}))
			inspected := newVM(t, version)
			inspected.PushTransaction(glueTx(0, []byte{1, 2, 3}))

			require.Equal(t,
				executed.Execute(types.OneTx),
				inspected.Inspect(tracers.NewDispatcher(), types.OneTx))
		})
	}
}

func TestOneTxSequence(t *testing.T) {
	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			instance := newVM(t, version)

			var topics []common.Hash
			for nonce := uint64(0); nonce < 3; nonce++ {
				instance.PushTransaction(glueTx(nonce, []byte{byte(nonce)}))
				res := instance.Execute(types.OneTx)
				require.False(t, res.Result.Failed())
				require.Len(t, res.Logs.Events, 1)
				topics = append(topics, res.Logs.Events[0].Topics[0])
			}

			require.NotEqual(t, topics[0], topics[1])
			require.NotEqual(t, topics[1], topics[2])

			finished := instance.FinishBatch()
			require.Len(t, finished.FinalExecutionState.Events, 4, "three tx events plus the tip")
		})
	}
}

func TestBatchModeUnsupportedOnLegacy(t *testing.T) {
	instance := newVM(t, multivm.VmV1)
	instance.PushTransaction(glueTx(0, nil))
	require.Panics(t, func() { instance.Execute(types.Batch) })
}

func TestBatchModeOnNewerVersions(t *testing.T) {
	for _, version := range []multivm.Version{multivm.VmVirtualBlocks, multivm.VmLatest} {
		t.Run(version.String(), func(t *testing.T) {
			instance := newVM(t, version)
			instance.PushTransaction(glueTx(0, nil))
			instance.PushTransaction(glueTx(1, nil))
			res := instance.Execute(types.Batch)
			require.Len(t, res.Logs.Events, 3, "two tx events plus the tip")
		})
	}
}

func TestLegacyExecutionStateOnlyAfterFinishBatch(t *testing.T) {
	instance := newVM(t, multivm.VmV1)
	instance.PushTransaction(glueTx(0, nil))
	instance.Execute(types.OneTx)

	require.Panics(t, func() { instance.GetCurrentExecutionState() })

	instance.FinishBatch()
	state := instance.GetCurrentExecutionState()
	require.Len(t, state.Events, 2, "tx event plus the tip")
}

func TestExecutionStateAvailableAnytimeOnNewerVersions(t *testing.T) {
	for _, version := range []multivm.Version{multivm.VmVirtualBlocks, multivm.VmLatest} {
		t.Run(version.String(), func(t *testing.T) {
			instance := newVM(t, version)
			require.Empty(t, instance.GetCurrentExecutionState().Events)

			instance.PushTransaction(glueTx(0, nil))
			instance.Execute(types.OneTx)
			require.Len(t, instance.GetCurrentExecutionState().Events, 1)
		})
	}
}

func TestBytecodeCompressionPipeline(t *testing.T) {
	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			instance := newVM(t, version)

			a := wellFormedDep(0xaa)
			b := wellFormedDep(0xbb)
			tx := glueTx(0, nil)
			tx.FactoryDeps = [][]byte{a, a, b}

			res, err := instance.ExecuteTransactionWithBytecodeCompression(tx, true)
			require.NoError(t, err)
			require.False(t, res.Result.Failed())

			records := instance.GetLastTxCompressedBytecodes()
			require.Len(t, records, 2, "duplicate dependency submitted once")
			require.Equal(t, bytecode.Hash(a), records[0].Hash)
			require.Equal(t, bytecode.Hash(b), records[1].Hash)
		})
	}
}

func TestBytecodeCompressionFailure(t *testing.T) {
	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			instance := newVM(t, version)

			tx := glueTx(0, nil)
			tx.FactoryDeps = [][]byte{make([]byte, 64)} // refused by the decommitter

			res, err := instance.ExecuteTransactionWithBytecodeCompression(tx, true)
			require.ErrorIs(t, err, types.ErrBytecodeCompressionFailed)
			require.NotNil(t, res, "the execution result is returned alongside the error")
		})
	}
}

func TestLastTxCompressedBytecodesReflectLatestTx(t *testing.T) {
	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			instance := newVM(t, version)

			for nonce := uint64(0); nonce < 3; nonce++ {
				tx := glueTx(nonce, nil)
				tx.FactoryDeps = [][]byte{wellFormedDep(byte(nonce + 1))}
				_, err := instance.ExecuteTransactionWithBytecodeCompression(tx, true)
				require.NoError(t, err)
			}

			records := instance.GetLastTxCompressedBytecodes()
			require.Len(t, records, 1)
			require.Equal(t, bytecode.Hash(wellFormedDep(3)), records[0].Hash,
				"records reflect only the most recent transaction")
		})
	}
}

func TestCompressionSkippedWhenDisabled(t *testing.T) {
	instance := newVM(t, multivm.VmLatest)
	tx := glueTx(0, nil)
	tx.FactoryDeps = [][]byte{make([]byte, 64)}

	// Without compression there is nothing to verify, even for a dependency
	// the decommitter refuses.
	_, err := instance.ExecuteTransactionWithBytecodeCompression(tx, false)
	require.NoError(t, err)
	require.Empty(t, instance.GetLastTxCompressedBytecodes())
}

func TestLegacyDropsDispatcher(t *testing.T) {
	cell := tracers.NewResultCell[[]tracers.Call]()
	d := tracers.NewDispatcher(tracers.NewCallTracer(cell))

	instance := newVM(t, multivm.VmV1)
	instance.PushTransaction(glueTx(0, []byte{1}))
	res := instance.Inspect(d, types.OneTx)
	require.False(t, res.Result.Failed())

	_, published := cell.Take()
	require.False(t, published, "no hook points on the legacy engine")
}

func TestCallTracerThroughUnifiedSurface(t *testing.T) {
	for _, version := range []multivm.Version{multivm.VmVirtualBlocks, multivm.VmLatest} {
		t.Run(version.String(), func(t *testing.T) {
			cell := tracers.NewResultCell[[]tracers.Call]()
			d := tracers.NewDispatcher(tracers.NewCallTracer(cell))

			instance := newVM(t, version)
			instance.PushTransaction(glueTx(0, make([]byte, 64)))
			instance.Inspect(d, types.OneTx)

			calls, published := cell.Take()
			require.True(t, published)
			require.Len(t, calls, 2)
		})
	}
}

func TestLegacySimulationModeRunsToBlockEnd(t *testing.T) {
	batch, sys := testEnvs(types.EstimateFee)
	instance := multivm.NewVM(multivm.VmV1, storage.NewView(storage.NewMemStore()), batch, sys)

	instance.PushTransaction(glueTx(0, nil))
	instance.PushTransaction(glueTx(7, nil)) // nonce unchecked in simulation

	res := instance.Execute(types.OneTx)
	require.Len(t, res.Logs.Events, 3, "both txs ran plus the tip")
}

func TestStartNewL2BlockIsNoopOnLegacy(t *testing.T) {
	instance := newVM(t, multivm.VmV1)
	instance.StartNewL2Block(types.L2BlockEnv{Number: 2})
	require.Empty(t, instance.GetBootloaderMemory())
}

func TestSnapshotRollbackThroughUnifiedSurface(t *testing.T) {
	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			instance := newHistoryVM(t, version)
			instance.PushTransaction(glueTx(0, nil))

			instance.MakeSnapshot()
			res := instance.Execute(types.OneTx)
			require.False(t, res.Result.Failed())

			instance.RollbackToLatestSnapshot()

			// The transaction is pending again and re-executes cleanly.
			again := instance.Execute(types.OneTx)
			require.False(t, again.Result.Failed())
			require.Panics(t, func() { instance.RollbackToLatestSnapshot() })
		})
	}
}

func TestPopSnapshotNoRollbackThroughUnifiedSurface(t *testing.T) {
	instance := newHistoryVM(t, multivm.VmLatest)
	instance.PushTransaction(glueTx(0, nil))
	instance.MakeSnapshot()
	instance.Execute(types.OneTx)

	instance.PopSnapshotNoRollback()
	require.Len(t, instance.GetCurrentExecutionState().Events, 1, "state kept")
	require.Panics(t, func() { instance.RollbackToLatestSnapshot() })
}

func TestHistoryDisabledInstanceLacksSnapshotGroup(t *testing.T) {
	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			instance := newVM(t, version)
			_, ok := instance.(vm.HistoryVM)
			require.False(t, ok, "snapshot methods must not exist on a history-disabled instance")
		})
	}
}

func TestMemoryMetricsHistoryGating(t *testing.T) {
	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			plain := newVM(t, version)
			plain.PushTransaction(glueTx(0, []byte{1}))
			m := plain.RecordMemoryMetrics()
			require.NotZero(t, m.MemorySize)
			require.Zero(t, m.MemoryHistory)
			require.Zero(t, m.EventSinkHistory)
			require.Zero(t, m.StorageOverlayHistory)

			journaled := newHistoryVM(t, version)
			journaled.PushTransaction(glueTx(0, []byte{1}))
			m = journaled.RecordMemoryMetrics()
			require.NotZero(t, m.MemoryHistory)
			require.NotZero(t, m.Total())
		})
	}
}

func TestFinishBatchArtifacts(t *testing.T) {
	for _, version := range allVersions {
		t.Run(version.String(), func(t *testing.T) {
			instance := newVM(t, version)
			instance.PushTransaction(glueTx(0, nil))

			finished := instance.FinishBatch()
			require.NotEmpty(t, finished.BlockTipResult.Logs.StorageLogs, "tip writes the sealed marker")
			require.Len(t, finished.FinalExecutionState.Events, 2)
			if version != multivm.VmV1 {
				require.NotEmpty(t, finished.FinalBootloaderMemory)
			}
		})
	}
}

func TestBootloaderMemoryIntrospection(t *testing.T) {
	for _, version := range []multivm.Version{multivm.VmVirtualBlocks, multivm.VmLatest} {
		t.Run(version.String(), func(t *testing.T) {
			instance := newVM(t, version)
			require.Empty(t, instance.GetBootloaderMemory())
			instance.PushTransaction(glueTx(0, []byte{1, 2, 3}))
			require.NotEmpty(t, instance.GetBootloaderMemory())
		})
	}
}
