package testutil

import (
	"sync"
	"time"

	"docsync-go/internal/engine"
)

// MemoryKV is an in-memory engine.KeyValue for tests.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }

// Len returns the number of stored keys.
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

var _ engine.KeyValue = (*MemoryKV)(nil)

// MockClock is a settable engine.Clock.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(now time.Time) *MockClock {
	return &MockClock{now: now}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ engine.Clock = (*MockClock)(nil)

// MemoryConflictQueue records conflict deferrals in memory.
type MemoryConflictQueue struct {
	mu    sync.Mutex
	paths []string
}

func NewMemoryConflictQueue() *MemoryConflictQueue {
	return &MemoryConflictQueue{}
}

func (q *MemoryConflictQueue) Push(path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.paths {
		if p == path {
			return nil
		}
	}
	q.paths = append(q.paths, path)
	return nil
}

func (q *MemoryConflictQueue) Remove(path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, p := range q.paths {
		if p == path {
			q.paths = append(q.paths[:i], q.paths[i+1:]...)
			return nil
		}
	}
	return nil
}

// Paths returns a snapshot of the queued paths.
func (q *MemoryConflictQueue) Paths() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.paths...)
}

var _ engine.ConflictQueue = (*MemoryConflictQueue)(nil)
