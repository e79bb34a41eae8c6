// vmplay replays a JSON transaction fixture through a chosen engine
// version and prints the per-transaction outcomes. It exists to compare
// engine generations against each other on the same inputs.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/openrollup/multivm"
	"github.com/openrollup/multivm/bytecode"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/types"
	"github.com/openrollup/multivm/vm"
)

var (
	versionFlag = &cli.StringFlag{
		Name:  "vm",
		Usage: `engine version to run ("v1", "virtualBlocks", "latest")`,
		Value: "latest",
	}
	historyFlag = &cli.BoolFlag{
		Name:  "history",
		Usage: "run a history-enabled instance",
	}
	dbFlag = &cli.StringFlag{
		Name:  "db",
		Usage: "leveldb directory backing the storage view (in-memory when empty)",
	}
	txsFlag = &cli.StringFlag{
		Name:     "txs",
		Usage:    "JSON transaction fixture to replay",
		Required: true,
	}
	compressFlag = &cli.BoolFlag{
		Name:  "compress",
		Usage: "submit factory dependencies through the bytecode compressor",
		Value: true,
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "log verbosity (0=silent, 5=trace)",
		Value: 3,
	}
)

func main() {
	app := &cli.App{
		Name:   "vmplay",
		Usage:  "replay a transaction fixture through one engine version",
		Flags:  []cli.Flag{versionFlag, historyFlag, dbFlag, txsFlag, compressFlag, verbosityFlag},
		Action: replay,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// fixtureTx is the JSON shape of one fixture transaction.
type fixtureTx struct {
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Nonce       uint64          `json:"nonce"`
	Value       *hexutil.Big    `json:"value"`
	GasLimit    uint64          `json:"gasLimit"`
	Data        hexutil.Bytes   `json:"data"`
	FactoryDeps []hexutil.Bytes `json:"factoryDeps"`
}

func replay(ctx *cli.Context) error {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)), false)
	log.SetDefault(log.NewLogger(handler))

	version, err := parseVersion(ctx.String(versionFlag.Name))
	if err != nil {
		return err
	}
	txs, err := loadFixture(ctx.String(txsFlag.Name))
	if err != nil {
		return err
	}

	var store storage.KeyValueStore
	if dir := ctx.String(dbFlag.Name); dir != "" {
		ldb, err := storage.OpenLevelDB(dir)
		if err != nil {
			return err
		}
		defer ldb.Close()
		store = ldb
	} else {
		store = storage.NewMemStore()
	}
	view := storage.NewView(store)

	batch, sys := defaultEnvs()
	var instance vm.VM
	if ctx.Bool(historyFlag.Name) {
		instance = multivm.NewHistoryVM(version, view, batch, sys)
	} else {
		instance = multivm.NewVM(version, view, batch, sys)
	}

	withCompression := ctx.Bool(compressFlag.Name)
	for i, tx := range txs {
		res, err := instance.ExecuteTransactionWithBytecodeCompression(tx, withCompression)
		if err != nil {
			log.Error("bytecode compression failed", "tx", i, "err", err)
			continue
		}
		printResult(i, tx, res, instance.GetLastTxCompressedBytecodes())
	}
	multivm.ReportMemoryMetrics(instance.RecordMemoryMetrics())

	finished := instance.FinishBatch()
	fmt.Printf("batch sealed: %d events, %d storage logs, %d contracts\n",
		len(finished.FinalExecutionState.Events),
		len(finished.FinalExecutionState.StorageLogs),
		len(finished.FinalExecutionState.UsedContractHashes))
	return nil
}

func parseVersion(s string) (multivm.Version, error) {
	for _, v := range []multivm.Version{multivm.VmV1, multivm.VmVirtualBlocks, multivm.VmLatest} {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown engine version %q", s)
}

func loadFixture(path string) ([]*types.Transaction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fixture []fixtureTx
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("invalid fixture %s: %w", path, err)
	}
	txs := make([]*types.Transaction, len(fixture))
	for i, f := range fixture {
		tx := &types.Transaction{
			From:     f.From,
			To:       f.To,
			Nonce:    f.Nonce,
			Value:    new(uint256.Int),
			GasLimit: f.GasLimit,
			Data:     f.Data,
		}
		if f.Value != nil {
			tx.Value.SetFromBig(f.Value.ToInt())
		}
		for _, dep := range f.FactoryDeps {
			tx.FactoryDeps = append(tx.FactoryDeps, dep)
		}
		txs[i] = tx
	}
	return txs, nil
}

func printResult(i int, tx *types.Transaction, res *types.ExecutionResultAndLogs, compressed []bytecode.CompressionRecord) {
	status := "ok"
	switch {
	case res.Result.Revert != nil:
		status = "revert: " + res.Result.Revert.String()
	case res.Result.Halt != nil:
		status = "halt: " + res.Result.Halt.Reason.String()
	}
	fmt.Printf("tx %d %s: %s gas=%d cycles=%d refunded=%d compressed=%d\n",
		i, tx.Hash().TerminalString(), status,
		res.Statistics.GasUsed, res.Statistics.CyclesUsed,
		res.Refunds.GasRefunded, len(compressed))
}

func defaultEnvs() (types.BatchEnv, types.SystemEnv) {
	batch := types.BatchEnv{
		Number:       1,
		Timestamp:    1,
		BaseFee:      uint256.NewInt(250_000_000),
		FairGasPrice: uint256.NewInt(250_000_000),
		FirstL2Block: types.L2BlockEnv{Number: 1, Timestamp: 1, MaxVirtualBlocksToCreate: 1},
	}
	sys := types.SystemEnv{
		ChainID:                   270,
		TxMode:                    types.VerifyExecute,
		GasLimit:                  1 << 30,
		DefaultValidationGasLimit: 1 << 25,
	}
	return batch, sys
}
