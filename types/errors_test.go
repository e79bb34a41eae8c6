package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// encodeErrorString builds the Error(string) revert payload for msg.
func encodeErrorString(msg string) []byte {
	payload := []byte{0x08, 0xc3, 0x79, 0xa0}
	var offset, length [32]byte
	offset[31] = 0x20
	length[31] = byte(len(msg))
	payload = append(payload, offset[:]...)
	payload = append(payload, length[:]...)
	data := make([]byte, (len(msg)+31)/32*32)
	copy(data, msg)
	return append(payload, data...)
}

func TestParseRevertReason(t *testing.T) {
	payload := encodeErrorString("not enough balance")
	reason := ParseRevertReason(payload)
	require.True(t, reason.Parsed())
	require.Equal(t, "not enough balance", reason.Msg)
	require.Equal(t, "not enough balance", reason.String())
	require.Equal(t, payload, reason.Raw)
}

func TestParseRevertReasonKeepsGarbageRaw(t *testing.T) {
	payload := []byte{0x08, 0xc3, 0x79, 0xa0, 0x01, 0x02}
	reason := ParseRevertReason(payload)
	require.False(t, reason.Parsed())
	require.Equal(t, payload, reason.Raw)
	require.Contains(t, reason.String(), "execution reverted")
}

func TestRevertReasonEmpty(t *testing.T) {
	reason := ParseRevertReason(nil)
	require.False(t, reason.Parsed())
	require.Equal(t, "execution reverted", reason.String())
}

func TestHaltString(t *testing.T) {
	h := Halt{Reason: HaltValidationFailed, Details: "nonce mismatch"}
	require.Equal(t, "account validation failed: nonce mismatch", h.String())

	bare := Halt{Reason: HaltNotEnoughGas}
	require.Equal(t, "not enough gas for transaction", bare.String())
}

func TestExecutionResultFailed(t *testing.T) {
	var ok ExecutionResult
	require.False(t, ok.Failed())

	reverted := ExecutionResult{Revert: &RevertReason{Msg: "x"}}
	require.True(t, reverted.Failed())

	halted := ExecutionResult{Halt: &Halt{Reason: HaltNotEnoughGas}}
	require.True(t, halted.Failed())
}
