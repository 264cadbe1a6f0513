package engine

import "sync"

// PathLocker serializes operations keyed by logical path. Operations for
// the same key queue behind each other; operations for distinct keys run
// independently. Lock entries are reference counted and removed once the
// last waiter releases, so the map does not grow with the file set.
type PathLocker struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func NewPathLocker() *PathLocker {
	return &PathLocker{locks: make(map[string]*pathLock)}
}

// RunSerialized runs fn while holding the lock for key. The key must be the
// canonical normalized path; every entry point that touches the same
// logical file has to compute it the same way or the serialization is void.
func (l *PathLocker) RunSerialized(key string, fn func() error) error {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &pathLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}()

	return fn()
}
