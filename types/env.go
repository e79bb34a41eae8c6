package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BatchEnv holds the creation-time inputs scoping a VM instance to one L1
// batch. It is owned exclusively by the instance and never mutated after
// construction.
type BatchEnv struct {
	Number        uint64
	Timestamp     uint64
	BaseFee       *uint256.Int
	FairGasPrice  *uint256.Int
	FeeAccount    common.Address
	PrevBatchHash common.Hash

	// FirstL2Block describes the block open when the batch starts. Versions
	// without an L2-block concept ignore it.
	FirstL2Block L2BlockEnv
}

// L2BlockEnv describes one L2 block boundary within a batch.
type L2BlockEnv struct {
	Number        uint64
	Timestamp     uint64
	PrevBlockHash common.Hash

	// MaxVirtualBlocksToCreate bounds how many virtual blocks the bootloader
	// may open while this block is current.
	MaxVirtualBlocksToCreate uint32
}

// SystemContract is one of the base system contracts an engine is booted with.
type SystemContract struct {
	Hash common.Hash
	Code []byte
}

// BaseSystemContracts are the contracts every engine version requires at
// construction time.
type BaseSystemContracts struct {
	Bootloader SystemContract
	DefaultAA  SystemContract
}

// SystemEnv holds the batch-independent execution policy for a VM instance.
type SystemEnv struct {
	ChainID                   uint64
	TxMode                    TxExecutionMode
	GasLimit                  uint64
	DefaultValidationGasLimit uint64
	BaseSystemContracts       BaseSystemContracts
}
