package chunkstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It keeps all chunk bodies in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string][]byte
}

// NewMemoryStore creates a new in-memory chunk store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Idempotent: storing the same id multiple times is safe.
	m.chunks[id] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.chunks[id]
	if !ok {
		return nil, ErrChunkNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Has(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chunks[id]
	return ok, nil
}

// Len returns the number of stored chunks.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

var _ Store = (*MemoryStore)(nil)
