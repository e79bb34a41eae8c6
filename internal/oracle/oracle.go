// Package oracle bundles the engine-internal subsystems every engine
// generation is built around: event sink, bootloader memory, bytecode
// decommitter and storage overlay. Each subsystem reports a current size
// and, for history-enabled instances, a history size.
package oracle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/openrollup/multivm/bytecode"
	"github.com/openrollup/multivm/internal/history"
	"github.com/openrollup/multivm/storage"
	"github.com/openrollup/multivm/types"
)

// SlotID addresses one cell of the storage overlay.
type SlotID struct {
	Addr common.Address
	Key  common.Hash
}

// Overlay buffers storage writes over the shared view until the batch is
// sealed. Reads fall through to the view for untouched slots.
type Overlay struct {
	view  *storage.View
	cells *history.Map[SlotID, common.Hash]
	logs  *history.Vector[types.StorageLog]
}

func newOverlay(view *storage.View, j *history.Journal) *Overlay {
	return &Overlay{
		view:  view,
		cells: history.NewMap[SlotID, common.Hash](j),
		logs:  history.NewVector[types.StorageLog](j),
	}
}

// Read returns the current value of a slot, overlay first.
func (o *Overlay) Read(addr common.Address, key common.Hash) common.Hash {
	if v, ok := o.cells.Get(SlotID{addr, key}); ok {
		return v
	}
	return o.view.ReadValue(addr, key)
}

// Write records a slot write in the overlay and the ordered log.
func (o *Overlay) Write(addr common.Address, key, value common.Hash) {
	o.cells.Set(SlotID{addr, key}, value)
	o.logs.Append(types.StorageLog{Address: addr, Key: key, Value: value})
}

// Logs returns the ordered write log. Callers must not modify it.
func (o *Overlay) Logs() []types.StorageLog { return o.logs.Items() }

// Commit flushes the overlay into the shared view. Called once, when the
// batch is sealed.
func (o *Overlay) Commit() {
	o.cells.Range(func(id SlotID, value common.Hash) {
		o.view.WriteValue(id.Addr, id.Key, value)
	})
}

// Size and HistorySize report the overlay footprint.
func (o *Overlay) Size() uint64        { return uint64(o.cells.Size()) }
func (o *Overlay) HistorySize() uint64 { return uint64(o.cells.HistorySize()) }

// Decommitter is the bytecode-resolution subsystem. Bytecodes registered
// during the batch are visible immediately; rollback unregisters them.
type Decommitter struct {
	view  *storage.View
	known *history.Map[common.Hash, []byte]
	order *history.Vector[common.Hash]
}

func newDecommitter(view *storage.View, j *history.Journal) *Decommitter {
	return &Decommitter{
		view:  view,
		known: history.NewMap[common.Hash, []byte](j),
		order: history.NewVector[common.Hash](j),
	}
}

// Register makes a bytecode resolvable for the rest of the batch. Returns
// false when the bytecode violates the engine's shape rules; such bytecodes
// are refused, not registered.
func (d *Decommitter) Register(code []byte) bool {
	if !bytecode.IsWellFormed(code) {
		return false
	}
	d.RegisterHash(bytecode.Hash(code), code)
	return true
}

// RegisterHash registers a bytecode under an externally computed hash,
// bypassing the shape rules. Used for the base system contracts.
func (d *Decommitter) RegisterHash(hash common.Hash, code []byte) {
	if _, ok := d.known.Get(hash); !ok {
		d.order.Append(hash)
	}
	d.known.Set(hash, code)
}

// IsKnown reports whether a hash is resolvable, either through this batch's
// registrations or the backing storage.
func (d *Decommitter) IsKnown(hash common.Hash) bool {
	if _, ok := d.known.Get(hash); ok {
		return true
	}
	return d.view.IsBytecodeKnown(hash)
}

// UsedHashes returns the hashes registered during this batch, in first
// registration order.
func (d *Decommitter) UsedHashes() []common.Hash {
	return append([]common.Hash(nil), d.order.Items()...)
}

// Commit persists the registered bytecodes into the shared view.
func (d *Decommitter) Commit() {
	d.known.Range(func(h common.Hash, code []byte) {
		d.view.StoreBytecode(h, code)
	})
}

// Size and HistorySize report the decommitter footprint.
func (d *Decommitter) Size() uint64        { return uint64(d.known.Size()) }
func (d *Decommitter) HistorySize() uint64 { return uint64(d.known.HistorySize()) }

// Tools is the subsystem bundle shared by one engine instance.
type Tools struct {
	Journal     *history.Journal
	EventSink   *history.Vector[types.Event]
	Memory      *history.Vector[uint256.Int]
	Decommitter *Decommitter
	Storage     *Overlay
}

// NewTools builds the bundle over a shared storage view. The history marker
// H decides at instantiation time whether mutations retain undo entries.
func NewTools[H types.HistoryMode](view *storage.View) *Tools {
	j := history.NewJournal(types.HistoryRetained[H]())
	return &Tools{
		Journal:     j,
		EventSink:   history.NewVector[types.Event](j),
		Memory:      history.NewVector[uint256.Int](j),
		Decommitter: newDecommitter(view, j),
		Storage:     newOverlay(view, j),
	}
}
