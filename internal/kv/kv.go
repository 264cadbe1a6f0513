// Package kv provides the small key/value store backing the engine's
// equivalence registry. Values are opaque byte slices; keys are namespaced
// by the caller.
package kv

import (
	"sync"

	"docsync-go/internal/engine"
)

// MemoryStore is an in-memory key/value store. It is useful for tests and
// for configurations that do not want equivalence sets to survive restarts.
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ engine.KeyValue = (*MemoryStore)(nil)
