package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
)

// Key prefixes inside the backing store.
var (
	slotPrefix     = []byte("s") // slotPrefix + address + key -> storage value
	bytecodePrefix = []byte("c") // bytecodePrefix + hash -> bytecode payload
	knownPrefix    = []byte("k") // knownPrefix + hash -> bytecode-known marker
)

// bytecodeCacheSize bounds the in-memory bytecode-resolution cache.
const bytecodeCacheSize = 1024

// View is the shared storage handle. It layers slot access and bytecode
// bookkeeping over a raw KeyValueStore and keeps a bounded cache of resolved
// bytecodes in front of it.
//
// The View is shared by reference between a VM instance and its tracers.
// Single-writer discipline: only the instance that owns the batch may call
// the mutating methods.
type View struct {
	store KeyValueStore
	cache *lru.Cache // bytecode hash -> payload

	reads  uint64
	writes uint64
}

// NewView wraps a KeyValueStore into a storage view.
func NewView(store KeyValueStore) *View {
	cache, err := lru.New(bytecodeCacheSize)
	if err != nil {
		panic(err) // only fails on non-positive size
	}
	return &View{store: store, cache: cache}
}

func slotKey(addr common.Address, key common.Hash) []byte {
	k := make([]byte, 0, 1+common.AddressLength+common.HashLength)
	k = append(k, slotPrefix...)
	k = append(k, addr.Bytes()...)
	k = append(k, key.Bytes()...)
	return k
}

func hashKey(prefix []byte, hash common.Hash) []byte {
	k := make([]byte, 0, 1+common.HashLength)
	k = append(k, prefix...)
	k = append(k, hash.Bytes()...)
	return k
}

// ReadValue returns the current value of a storage slot, or the zero hash if
// the slot was never written.
func (v *View) ReadValue(addr common.Address, key common.Hash) common.Hash {
	v.reads++
	data, err := v.store.Get(slotKey(addr, key))
	if err == ErrNotFound {
		return common.Hash{}
	}
	if err != nil {
		log.Crit("storage backend read failure", "addr", addr, "key", key, "err", err)
	}
	return common.BytesToHash(data)
}

// WriteValue sets a storage slot. Only the owning VM instance may call this.
func (v *View) WriteValue(addr common.Address, key, value common.Hash) {
	v.writes++
	if err := v.store.Put(slotKey(addr, key), value.Bytes()); err != nil {
		log.Crit("storage backend write failure", "addr", addr, "key", key, "err", err)
	}
}

// LoadBytecode resolves a bytecode by content hash.
func (v *View) LoadBytecode(hash common.Hash) ([]byte, bool) {
	if code, ok := v.cache.Get(hash); ok {
		return code.([]byte), true
	}
	code, err := v.store.Get(hashKey(bytecodePrefix, hash))
	if err == ErrNotFound {
		return nil, false
	}
	if err != nil {
		log.Crit("storage backend bytecode read failure", "hash", hash, "err", err)
	}
	v.cache.Add(hash, code)
	return code, true
}

// StoreBytecode persists a bytecode payload under its content hash and marks
// it known. Only the owning VM instance may call this.
func (v *View) StoreBytecode(hash common.Hash, code []byte) {
	if err := v.store.Put(hashKey(bytecodePrefix, hash), code); err != nil {
		log.Crit("storage backend bytecode write failure", "hash", hash, "err", err)
	}
	v.cache.Add(hash, append([]byte(nil), code...))
	v.MarkBytecodeKnown(hash)
}

// MarkBytecodeKnown records that a bytecode hash is resolvable.
func (v *View) MarkBytecodeKnown(hash common.Hash) {
	if err := v.store.Put(hashKey(knownPrefix, hash), []byte{1}); err != nil {
		log.Crit("storage backend marker write failure", "hash", hash, "err", err)
	}
}

// IsBytecodeKnown reports whether the bytecode hash is resolvable.
func (v *View) IsBytecodeKnown(hash common.Hash) bool {
	if v.cache.Contains(hash) {
		return true
	}
	ok, err := v.store.Has(hashKey(knownPrefix, hash))
	if err != nil {
		log.Crit("storage backend marker read failure", "hash", hash, "err", err)
	}
	return ok
}

// Stats returns the number of slot reads and writes performed through the
// view since creation.
func (v *View) Stats() (reads, writes uint64) {
	return v.reads, v.writes
}
