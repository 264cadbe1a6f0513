package conflictqueue

import "sync"

// MemoryQueue is an in-memory implementation of the Queue interface.
// Queued paths do not survive restarts, making it useful for testing and
// write-through configurations. Safe for concurrent use.
type MemoryQueue struct {
	mu     sync.Mutex
	order  []string
	queued map[string]struct{}
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{queued: make(map[string]struct{})}
}

func (q *MemoryQueue) Push(path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[path]; ok {
		return nil
	}
	q.queued[path] = struct{}{}
	q.order = append(q.order, path)
	return nil
}

func (q *MemoryQueue) Remove(path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(path)
	return nil
}

func (q *MemoryQueue) removeLocked(path string) {
	if _, ok := q.queued[path]; !ok {
		return
	}
	delete(q.queued, path)
	for i, p := range q.order {
		if p == path {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

func (q *MemoryQueue) Pop() (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return "", nil
	}
	path := q.order[0]
	q.removeLocked(path)
	return path, nil
}

func (q *MemoryQueue) List() ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.order...), nil
}

func (q *MemoryQueue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order), nil
}

var _ Queue = (*MemoryQueue)(nil)
