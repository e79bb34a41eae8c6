package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrBytecodeCompressionFailed reports that a dependency bytecode requested
// for compression was never recognized as known by the end of transaction
// execution. Recoverable: the caller may retry without compression or discard
// the transaction.
var ErrBytecodeCompressionFailed = errors.New("bytecode compression failed")

// HaltReason classifies an abnormal interpreter stop.
type HaltReason int

const (
	HaltUnexpectedBehavior HaltReason = iota
	HaltValidationFailed
	HaltBootloaderOutOfGas
	HaltNotEnoughGas
	HaltTracerRequested
)

func (r HaltReason) String() string {
	switch r {
	case HaltUnexpectedBehavior:
		return "unexpected VM behavior"
	case HaltValidationFailed:
		return "account validation failed"
	case HaltBootloaderOutOfGas:
		return "bootloader out of gas"
	case HaltNotEnoughGas:
		return "not enough gas for transaction"
	case HaltTracerRequested:
		return "tracer requested stop"
	default:
		return fmt.Sprintf("unknown halt reason (%d)", int(r))
	}
}

// Halt describes an abnormal interpreter stop. It is surfaced inside the
// execution result, never thrown as a fatal error.
type Halt struct {
	Reason  HaltReason
	Details string
}

func (h *Halt) String() string {
	if h.Details == "" {
		return h.Reason.String()
	}
	return h.Reason.String() + ": " + h.Details
}

// RevertReason describes an intentional revert by the transaction's own
// logic. When the payload carries a decodable Error(string) encoding, Msg
// holds the decoded message; otherwise the reason degrades to the raw payload
// so the failure is never lost.
type RevertReason struct {
	Msg string
	Raw []byte
}

// Parsed reports whether the revert payload was decoded into a structured
// message.
func (r *RevertReason) Parsed() bool {
	return r.Msg != ""
}

func (r *RevertReason) String() string {
	if r.Parsed() {
		return r.Msg
	}
	if len(r.Raw) == 0 {
		return "execution reverted"
	}
	return "execution reverted: " + hexutil.Encode(r.Raw)
}

// ParseRevertReason decodes a revert payload. Payloads that do not carry a
// well-formed Error(string) encoding are kept raw rather than dropped.
func ParseRevertReason(payload []byte) RevertReason {
	msg, err := abi.UnpackRevert(payload)
	if err != nil {
		return RevertReason{Raw: append([]byte(nil), payload...)}
	}
	return RevertReason{Msg: msg, Raw: append([]byte(nil), payload...)}
}
