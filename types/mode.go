package types

import "fmt"

// ExecutionMode selects how far a single Execute/Inspect call drives the
// engine.
type ExecutionMode int

const (
	// OneTx executes exactly the next pending transaction to completion, or
	// until a tracer requests an early stop.
	OneTx ExecutionMode = iota

	// Batch executes all remaining pending work to completion. Not supported
	// by the oldest engine version.
	Batch

	// Bootloader advances the bootloader program to its next natural boundary
	// without requiring a full transaction boundary.
	Bootloader
)

func (m ExecutionMode) String() string {
	switch m {
	case OneTx:
		return "oneTx"
	case Batch:
		return "batch"
	case Bootloader:
		return "bootloader"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// TxExecutionMode is the per-batch execution policy: full validation, or one
// of the simulation policies with relaxed validation and different gas
// accounting.
type TxExecutionMode int

const (
	// VerifyExecute drives the full validate-and-execute path per transaction.
	VerifyExecute TxExecutionMode = iota

	// EstimateFee simulates execution for fee estimation; validation is
	// skipped and the bootloader runs straight to end of job.
	EstimateFee

	// EthCall simulates a read-only call; like EstimateFee, without the
	// validation path.
	EthCall
)

func (m TxExecutionMode) String() string {
	switch m {
	case VerifyExecute:
		return "verifyExecute"
	case EstimateFee:
		return "estimateFee"
	case EthCall:
		return "ethCall"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}
