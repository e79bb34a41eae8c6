// Package bytecode implements content addressing and dependency compression
// for factory bytecodes.
package bytecode

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// WordSize is the machine word the engines operate on.
const WordSize = 32

// hashVersion is the marker byte identifying the current hashing scheme.
const hashVersion = 1

// WordCount returns the bytecode length in words, rounding up.
func WordCount(code []byte) int {
	return (len(code) + WordSize - 1) / WordSize
}

// IsWellFormed reports whether a bytecode satisfies the engine's shape rules:
// word-aligned length and an odd number of words. The decommitter refuses to
// register bytecodes that violate them.
func IsWellFormed(code []byte) bool {
	if len(code) == 0 || len(code)%WordSize != 0 {
		return false
	}
	words := len(code) / WordSize
	return words%2 == 1 && words < 1<<16
}

// Hash computes the versioned content hash of a bytecode: a Keccak256 digest
// with the first two bytes replaced by the scheme marker and the next two by
// the big-endian word count. Two bytecodes of different length therefore
// never collide even under a digest collision.
func Hash(code []byte) common.Hash {
	digest := crypto.Keccak256Hash(code)
	digest[0] = hashVersion
	digest[1] = 0
	binary.BigEndian.PutUint16(digest[2:4], uint16(WordCount(code)))
	return digest
}
