package testutil

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"docsync-go/internal/engine"
)

// mockRevision is one point in a mock document's edit history.
type mockRevision struct {
	rev       string
	modTime   time.Time
	createdAt time.Time
	deleted   bool
	legacy    bool
	data      []byte
	leaf      bool
}

// mockDocument is a document with its full revision history.
type mockDocument struct {
	id        string
	revisions map[string]*mockRevision
}

// liveLeaves returns the non-deleted leaf revisions sorted so the winner
// (highest generation, then highest token) comes first.
func (d *mockDocument) liveLeaves() []*mockRevision {
	var leaves []*mockRevision
	for _, r := range d.revisions {
		if r.leaf && !r.deleted && !r.legacy {
			leaves = append(leaves, r)
		}
	}
	sort.Slice(leaves, func(i, j int) bool {
		gi, gj := engine.RevGeneration(leaves[i].rev), engine.RevGeneration(leaves[j].rev)
		if gi != gj {
			return gi > gj
		}
		return leaves[i].rev > leaves[j].rev
	})
	return leaves
}

// winner returns the winning revision, falling back to the most recent
// tombstone when no live leaf remains.
func (d *mockDocument) winner() *mockRevision {
	if leaves := d.liveLeaves(); len(leaves) > 0 {
		return leaves[0]
	}
	var tombstone *mockRevision
	for _, r := range d.revisions {
		if !r.leaf {
			continue
		}
		if tombstone == nil || engine.RevGeneration(r.rev) > engine.RevGeneration(tombstone.rev) {
			tombstone = r
		}
	}
	return tombstone
}

// MockDocStore is an in-memory revision-tracked document store implementing
// engine.DocumentService. Safe for concurrent use.
type MockDocStore struct {
	mu     sync.Mutex
	docs   map[string]*mockDocument
	chunks map[string][]byte
	// FailBodies makes FetchEntryFromMeta fail for the listed paths,
	// simulating store inconsistency.
	FailBodies map[string]bool
	// PutCount counts PutDocument and PutChunks calls per path.
	PutCount map[string]int
}

func NewMockDocStore() *MockDocStore {
	return &MockDocStore{
		docs:       make(map[string]*mockDocument),
		chunks:     make(map[string][]byte),
		FailBodies: make(map[string]bool),
		PutCount:   make(map[string]int),
	}
}

// SeedDocument installs a document with a single live revision and returns
// its revision token.
func (m *MockDocStore) SeedDocument(path string, data []byte, modTime time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev := engine.NewRevision("", data)
	m.docs[path] = &mockDocument{
		id: "f:" + path,
		revisions: map[string]*mockRevision{
			rev: {rev: rev, modTime: modTime, createdAt: modTime, data: append([]byte(nil), data...), leaf: true},
		},
	}
	return rev
}

// AddConflict installs an additional live leaf revision for path,
// producing a conflicted document. Returns the new revision token.
func (m *MockDocStore) AddConflict(path string, data []byte, modTime time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[path]
	if doc == nil {
		panic("AddConflict: document not seeded: " + path)
	}
	rev := engine.NewRevision("conflict-branch", data)
	doc.revisions[rev] = &mockRevision{
		rev: rev, modTime: modTime, createdAt: modTime,
		data: append([]byte(nil), data...), leaf: true,
	}
	return rev
}

// LiveRevisions returns the tokens of all live leaf revisions for path.
func (m *MockDocStore) LiveRevisions(path string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[path]
	if doc == nil {
		return nil
	}
	var revs []string
	for _, r := range doc.liveLeaves() {
		revs = append(revs, r.rev)
	}
	return revs
}

func (m *MockDocStore) AllPaths() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.docs))
	for p := range m.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// HasChunk reports whether a chunk with the given id was stored.
func (m *MockDocStore) HasChunk(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.chunks[id]
	return ok
}

// ChunkCount returns the number of distinct stored chunks.
func (m *MockDocStore) ChunkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

func (m *MockDocStore) metaOf(path string, r *mockRevision) *engine.MetaEntry {
	return &engine.MetaEntry{
		ID:            "f:" + path,
		Path:          path,
		Rev:           r.rev,
		ModTime:       r.modTime,
		CreatedAt:     r.createdAt,
		Size:          int64(len(r.data)),
		Deleted:       r.deleted,
		LegacyDeleted: r.legacy,
	}
}

func (m *MockDocStore) FetchMeta(path string, opts engine.MetaOptions) (*engine.MetaEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[path]
	if doc == nil {
		return nil, nil
	}
	win := doc.winner()
	if win == nil {
		return nil, nil
	}
	if (win.deleted || win.legacy) && !opts.IncludeDeleted {
		return nil, nil
	}
	return m.metaOf(path, win), nil
}

func (m *MockDocStore) FetchMetaRev(path, rev string) (*engine.MetaEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[path]
	if doc == nil {
		return nil, nil
	}
	r, ok := doc.revisions[rev]
	if !ok {
		return nil, nil
	}
	return m.metaOf(path, r), nil
}

func (m *MockDocStore) FetchEntryFromMeta(meta *engine.MetaEntry) (*engine.DocumentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailBodies[meta.Path] {
		return nil, fmt.Errorf("body resolution failed for %s: %w", meta.Path, engine.ErrContentUnavailable)
	}
	doc := m.docs[meta.Path]
	if doc == nil {
		return nil, fmt.Errorf("document vanished: %s: %w", meta.Path, engine.ErrContentUnavailable)
	}
	r, ok := doc.revisions[meta.Rev]
	if !ok {
		return nil, fmt.Errorf("revision vanished: %s@%s: %w", meta.Path, meta.Rev, engine.ErrContentUnavailable)
	}
	return &engine.DocumentEntry{MetaEntry: *meta, Data: append([]byte(nil), r.data...)}, nil
}

func (m *MockDocStore) Conflicts(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[path]
	if doc == nil {
		return nil, nil
	}
	leaves := doc.liveLeaves()
	if len(leaves) < 2 {
		return nil, nil
	}
	var losers []string
	for _, r := range leaves[1:] {
		losers = append(losers, r.rev)
	}
	return losers, nil
}

func (m *MockDocStore) PutDocument(entry *engine.DocumentEntry, force bool, chunksOnly bool) error {
	if chunksOnly {
		return m.PutChunks(entry, force)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCount[entry.Path]++

	doc := m.docs[entry.Path]
	if doc == nil {
		doc = &mockDocument{id: entry.ID, revisions: make(map[string]*mockRevision)}
		m.docs[entry.Path] = doc
	}
	parent := ""
	if win := doc.winner(); win != nil {
		parent = win.rev
		win.leaf = false
	}
	rev := engine.NewRevision(parent, entry.Data)
	doc.revisions[rev] = &mockRevision{
		rev:       rev,
		modTime:   entry.ModTime,
		createdAt: entry.CreatedAt,
		data:      append([]byte(nil), entry.Data...),
		leaf:      true,
	}
	m.storeChunkLocked(entry.Data)
	return nil
}

func (m *MockDocStore) PutChunks(entry *engine.DocumentEntry, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCount[entry.Path]++
	m.storeChunkLocked(entry.Data)
	return nil
}

func (m *MockDocStore) storeChunkLocked(data []byte) {
	id := engine.NewRevision("", data)
	m.chunks[id] = append([]byte(nil), data...)
}

func (m *MockDocStore) Delete(path string, rev string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[path]
	if doc == nil {
		return fmt.Errorf("document not found: %s", path)
	}
	if rev != "" {
		r, ok := doc.revisions[rev]
		if !ok {
			return fmt.Errorf("revision not found: %s@%s", path, rev)
		}
		r.deleted = true
		return nil
	}
	// Outright delete: tombstone every live leaf.
	for _, r := range doc.liveLeaves() {
		r.deleted = true
	}
	return nil
}

func (m *MockDocStore) Close() error { return nil }

var _ engine.DocumentService = (*MockDocStore)(nil)
