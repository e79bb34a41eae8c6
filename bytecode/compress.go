package bytecode

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/snappy"

	"github.com/openrollup/multivm/types"
)

// CompressionRecord is the per-dependency outcome of the compression pass:
// the content hash of the bytecode and, when compression paid off, the
// compressed payload to submit in place of the original.
type CompressionRecord struct {
	Hash       common.Hash
	Original   []byte
	Compressed []byte // nil when the bytecode is submitted verbatim
}

// PayloadSize returns the number of bytes actually submitted for this record.
func (r *CompressionRecord) PayloadSize() int {
	if r.Compressed != nil {
		return len(r.Compressed)
	}
	return len(r.Original)
}

// compress produces a record for one bytecode. The compressed payload is kept
// only when it is strictly smaller than the original.
func compress(code []byte) CompressionRecord {
	rec := CompressionRecord{Hash: Hash(code), Original: code}
	if c := snappy.Encode(nil, code); len(c) < len(code) {
		rec.Compressed = c
	}
	return rec
}

// Decompress restores the original payload of a record.
func Decompress(rec CompressionRecord) ([]byte, error) {
	if rec.Compressed == nil {
		return rec.Original, nil
	}
	return snappy.Decode(nil, rec.Compressed)
}

// Plan deduplicates a transaction's declared dependency bytecodes and
// compresses the ones not already resolvable. A dependency is skipped when
// its hash occurred earlier in the same list, or when isKnown already
// recognizes it. The returned records preserve first-occurrence order; their
// hashes are the "pending" set the post-execution check must verify.
func Plan(deps [][]byte, isKnown func(common.Hash) bool) []CompressionRecord {
	seen := mapset.NewThreadUnsafeSet[common.Hash]()
	var records []CompressionRecord
	for _, code := range deps {
		hash := Hash(code)
		if !seen.Add(hash) || isKnown(hash) {
			continue
		}
		records = append(records, compress(code))
	}
	return records
}

// VerifyKnown runs the post-execution check: every pending hash must now be
// recognized. A single unresolved hash fails the whole operation; no partial
// success is reported.
func VerifyKnown(records []CompressionRecord, isKnown func(common.Hash) bool) error {
	for _, rec := range records {
		if !isKnown(rec.Hash) {
			return types.ErrBytecodeCompressionFailed
		}
	}
	return nil
}
