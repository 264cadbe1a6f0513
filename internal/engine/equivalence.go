package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// KeyValue abstracts the persistence backing the equivalence registry.
// Implementations do not need to be safe for concurrent use; the registry
// serializes its own access.
type KeyValue interface {
	// Get returns the value for key, or ok=false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

const equivalenceKeyPrefix = "equiv:"

// EquivalenceRegistry remembers, per path, sets of timestamps that were
// judged to represent the same logical change despite numeric mismatch.
// It exists to break reconciliation loops caused by sub-resolution clock
// drift: once two timestamps are marked equivalent for a path, comparisons
// between them (and anything later merged into the same set) report
// Equivalent instead of staleness.
type EquivalenceRegistry struct {
	mu    sync.Mutex
	kv    KeyValue
	cache map[string]map[int64]struct{}
}

// NewEquivalenceRegistry creates a registry persisted through kv.
// Entries are loaded lazily per path; the registry starts empty.
func NewEquivalenceRegistry(kv KeyValue) *EquivalenceRegistry {
	return &EquivalenceRegistry{
		kv:    kv,
		cache: make(map[string]map[int64]struct{}),
	}
}

// Mark registers t1 and t2 as the same change for path. Equal timestamps
// are a no-op. If the existing set for the path intersects {t1, t2} the
// pair is unioned in (transitive merge); otherwise a fresh two-element set
// replaces any unrelated prior set.
func (r *EquivalenceRegistry) Mark(path string, t1, t2 time.Time) error {
	m1 := t1.UnixMilli()
	m2 := t2.UnixMilli()
	if m1 == m2 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, err := r.load(path)
	if err != nil {
		return err
	}

	_, has1 := set[m1]
	_, has2 := set[m2]
	if len(set) == 0 || (!has1 && !has2) {
		set = make(map[int64]struct{}, 2)
	}
	set[m1] = struct{}{}
	set[m2] = struct{}{}
	r.cache[path] = set
	return r.persist(path, set)
}

// IsEquivalent reports whether every timestamp in times is registered in
// the path's equivalence set. A single unregistered value forces the caller
// back to the raw comparator.
func (r *EquivalenceRegistry) IsEquivalent(path string, times []time.Time) bool {
	if len(times) == 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, err := r.load(path)
	if err != nil || len(set) == 0 {
		return false
	}
	for _, t := range times {
		if _, ok := set[t.UnixMilli()]; !ok {
			return false
		}
	}
	return true
}

// Unmark forgets the path's equivalence set entirely. Called when a path's
// change is fully reconciled or invalidated.
func (r *EquivalenceRegistry) Unmark(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.cache, path)
	if r.kv == nil {
		return nil
	}
	if err := r.kv.Delete(equivalenceKeyPrefix + path); err != nil {
		return fmt.Errorf("deleting equivalence set: %w", err)
	}
	return nil
}

// load returns the cached set for path, reading through to the KV store on
// first access. Callers must hold r.mu.
func (r *EquivalenceRegistry) load(path string) (map[int64]struct{}, error) {
	if set, ok := r.cache[path]; ok {
		return set, nil
	}
	set := make(map[int64]struct{})
	if r.kv != nil {
		raw, ok, err := r.kv.Get(equivalenceKeyPrefix + path)
		if err != nil {
			return nil, fmt.Errorf("loading equivalence set: %w", err)
		}
		if ok {
			var values []int64
			if err := json.Unmarshal(raw, &values); err != nil {
				return nil, fmt.Errorf("decoding equivalence set: %w", err)
			}
			for _, v := range values {
				set[v] = struct{}{}
			}
		}
	}
	r.cache[path] = set
	return set, nil
}

// persist writes the set through to the KV store. Callers must hold r.mu.
func (r *EquivalenceRegistry) persist(path string, set map[int64]struct{}) error {
	if r.kv == nil {
		return nil
	}
	values := make([]int64, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding equivalence set: %w", err)
	}
	if err := r.kv.Put(equivalenceKeyPrefix+path, raw); err != nil {
		return fmt.Errorf("persisting equivalence set: %w", err)
	}
	return nil
}
