// Package history provides journaled containers for engine state. When
// history is enabled every mutation records an undo entry, and snapshots are
// plain journal offsets: rolling back replays the undo entries above the
// offset in reverse order.
package history

// Journal is an ordered log of undo operations. A disabled journal records
// nothing and costs nothing, which is how history-disabled engines are built.
type Journal struct {
	enabled bool
	entries []func()
}

// NewJournal creates a journal. When enabled is false all appends are
// dropped and snapshots are not meaningful.
func NewJournal(enabled bool) *Journal {
	return &Journal{enabled: enabled}
}

// Enabled reports whether the journal retains undo entries.
func (j *Journal) Enabled() bool { return j.enabled }

// Append records an undo operation.
func (j *Journal) Append(undo func()) {
	if !j.enabled {
		return
	}
	j.entries = append(j.entries, undo)
}

// Length returns the current journal offset, used as a snapshot marker.
func (j *Journal) Length() int { return len(j.entries) }

// RevertTo runs and discards all undo entries above the given offset, most
// recent first.
func (j *Journal) RevertTo(offset int) {
	if offset < 0 || offset > len(j.entries) {
		panic("history: revert offset out of range")
	}
	for i := len(j.entries) - 1; i >= offset; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:offset]
}

// Vector is an append-only sequence whose length can be rolled back.
type Vector[T any] struct {
	journal  *Journal
	items    []T
	recorded int
}

// NewVector creates a vector journaled through j.
func NewVector[T any](j *Journal) *Vector[T] {
	return &Vector[T]{journal: j}
}

// Append adds an item, recording an undo entry that truncates it again.
func (v *Vector[T]) Append(item T) {
	v.items = append(v.items, item)
	if !v.journal.enabled {
		return
	}
	v.recorded++
	v.journal.Append(func() {
		v.items = v.items[:len(v.items)-1]
		v.recorded--
	})
}

// Items returns the underlying slice. Callers must not modify it.
func (v *Vector[T]) Items() []T { return v.items }

// Size returns the number of live items.
func (v *Vector[T]) Size() int { return len(v.items) }

// HistorySize returns the number of undo entries currently retained.
func (v *Vector[T]) HistorySize() int { return v.recorded }

// Map is a key-value overlay whose writes can be rolled back.
type Map[K comparable, V any] struct {
	journal  *Journal
	data     map[K]V
	recorded int
}

// NewMap creates a map journaled through j.
func NewMap[K comparable, V any](j *Journal) *Map[K, V] {
	return &Map[K, V]{journal: j, data: make(map[K]V)}
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.data[key]
	return v, ok
}

// Set stores a value, recording an undo entry restoring the previous state
// of the key.
func (m *Map[K, V]) Set(key K, value V) {
	prev, existed := m.data[key]
	m.data[key] = value
	if !m.journal.enabled {
		return
	}
	m.recorded++
	m.journal.Append(func() {
		if existed {
			m.data[key] = prev
		} else {
			delete(m.data, key)
		}
		m.recorded--
	})
}

// Size returns the number of live keys.
func (m *Map[K, V]) Size() int { return len(m.data) }

// HistorySize returns the number of undo entries currently retained.
func (m *Map[K, V]) HistorySize() int { return m.recorded }

// Range calls fn for every key-value pair, in unspecified order.
func (m *Map[K, V]) Range(fn func(K, V)) {
	for k, v := range m.data {
		fn(k, v)
	}
}
