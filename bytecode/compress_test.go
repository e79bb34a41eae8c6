package bytecode

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/openrollup/multivm/types"
)

func wellFormed(fill byte) []byte {
	code := make([]byte, 3*WordSize)
	for i := range code {
		code[i] = fill
	}
	return code
}

func neverKnown(common.Hash) bool { return false }

func TestPlanDeduplicates(t *testing.T) {
	a := wellFormed(0xaa)
	b := wellFormed(0xbb)

	records := Plan([][]byte{a, a, b}, neverKnown)
	require.Len(t, records, 2)
	require.Equal(t, Hash(a), records[0].Hash, "first-occurrence order")
	require.Equal(t, Hash(b), records[1].Hash)
}

func TestPlanSkipsKnown(t *testing.T) {
	a := wellFormed(0xaa)
	b := wellFormed(0xbb)
	known := Hash(a)

	records := Plan([][]byte{a, b}, func(h common.Hash) bool { return h == known })
	require.Len(t, records, 1)
	require.Equal(t, Hash(b), records[0].Hash)
}

func TestPlanCompressesWhenSmaller(t *testing.T) {
	// Highly repetitive content compresses; the record carries the payload.
	rec := Plan([][]byte{wellFormed(0x11)}, neverKnown)
	require.Len(t, rec, 1)
	require.NotNil(t, rec[0].Compressed)
	require.Less(t, rec[0].PayloadSize(), len(rec[0].Original))

	restored, err := Decompress(rec[0])
	require.NoError(t, err)
	require.True(t, bytes.Equal(restored, rec[0].Original))
}

func TestVerifyKnown(t *testing.T) {
	a := wellFormed(0xaa)
	records := Plan([][]byte{a}, neverKnown)

	require.NoError(t, VerifyKnown(records, func(common.Hash) bool { return true }))

	err := VerifyKnown(records, neverKnown)
	require.ErrorIs(t, err, types.ErrBytecodeCompressionFailed)

	// No pending records means nothing to verify.
	require.NoError(t, VerifyKnown(nil, neverKnown))
}
