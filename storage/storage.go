// Package storage provides the shared key-value handle a VM instance and its
// tracers operate on. A single View is shared by reference between the
// instance and any tracers that inspect it mid-execution; only the owning
// instance may mutate it.
package storage

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a key is absent from the backend.
var ErrNotFound = errors.New("storage: not found")

// KeyValueStore is the raw byte-keyed backend a View reads through.
type KeyValueStore interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Close() error
}

// MemStore is an in-memory KeyValueStore, used by tests and short-lived
// simulations.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (s *MemStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemStore) Has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *MemStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *MemStore) Close() error { return nil }

// Len returns the number of stored entries.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
