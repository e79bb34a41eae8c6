package types

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Transaction is a single unit of work submitted to a VM instance. Ownership
// transfers to the VM on push; the instance consumes it exactly once.
type Transaction struct {
	From     common.Address
	To       *common.Address // nil means contract deployment
	Nonce    uint64
	Value    *uint256.Int
	GasLimit uint64
	Data     []byte

	// FactoryDeps are the bytecodes this transaction may deploy or reference.
	// Each must be resolvable by content hash before or during execution.
	FactoryDeps [][]byte

	// hash caches the transaction hash after the first computation.
	hash atomic.Pointer[common.Hash]
}

// rlpTransaction mirrors Transaction for hashing purposes, without the cache.
type rlpTransaction struct {
	From        common.Address
	To          *common.Address `rlp:"nil"`
	Nonce       uint64
	Value       *uint256.Int
	GasLimit    uint64
	Data        []byte
	FactoryDeps [][]byte
}

// Hash returns the content hash of the transaction. The hash is computed
// lazily and cached.
func (tx *Transaction) Hash() common.Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	enc, err := rlp.EncodeToBytes(&rlpTransaction{
		From:        tx.From,
		To:          tx.To,
		Nonce:       tx.Nonce,
		Value:       tx.Value,
		GasLimit:    tx.GasLimit,
		Data:        tx.Data,
		FactoryDeps: tx.FactoryDeps,
	})
	if err != nil {
		panic("transaction not encodable: " + err.Error())
	}
	h := crypto.Keccak256Hash(enc)
	tx.hash.Store(&h)
	return h
}

// Encode serializes the transaction into 32-byte bootloader memory words.
// The first word carries the total encoded length, the rest the RLP payload
// padded to a word boundary.
func (tx *Transaction) Encode() []uint256.Int {
	enc, err := rlp.EncodeToBytes(&rlpTransaction{
		From:        tx.From,
		To:          tx.To,
		Nonce:       tx.Nonce,
		Value:       tx.Value,
		GasLimit:    tx.GasLimit,
		Data:        tx.Data,
		FactoryDeps: tx.FactoryDeps,
	})
	if err != nil {
		panic("transaction not encodable: " + err.Error())
	}
	words := make([]uint256.Int, 0, len(enc)/32+2)
	words = append(words, *uint256.NewInt(uint64(len(enc))))
	for off := 0; off < len(enc); off += 32 {
		var chunk [32]byte
		copy(chunk[:], enc[off:])
		var w uint256.Int
		w.SetBytes(chunk[:])
		words = append(words, w)
	}
	return words
}
