package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MetaOptions controls document metadata lookups.
type MetaOptions struct {
	// PreferCache allows the store to serve a cached metadata snapshot.
	PreferCache bool
	// IncludeDeleted makes tombstoned documents visible to the lookup.
	IncludeDeleted bool
}

// MetaEntry is the metadata half of a document: everything except the
// resolved body.
type MetaEntry struct {
	ID        string
	Path      string
	Rev       string
	ModTime   time.Time
	CreatedAt time.Time
	Size      int64
	// Deleted is the current deletion marker.
	Deleted bool
	// LegacyDeleted is the historical marker older documents carry.
	// Both must be honored when deciding liveness.
	LegacyDeleted bool
}

// IsDeleted reports whether either deletion marker is set.
func (e *MetaEntry) IsDeleted() bool {
	return e != nil && (e.Deleted || e.LegacyDeleted)
}

// DocumentEntry is a document with its body fully resolved from chunks or
// inline data.
type DocumentEntry struct {
	MetaEntry
	Data []byte
}

// DocumentService is the abstract revision-tracked document store.
type DocumentService interface {
	// FetchMeta resolves document metadata by logical path. Returns nil
	// (not an error) when no document exists, or when the document is
	// tombstoned and opts.IncludeDeleted is false.
	FetchMeta(path string, opts MetaOptions) (*MetaEntry, error)

	// FetchMetaRev resolves metadata for one specific revision of the
	// document at path.
	FetchMetaRev(path, rev string) (*MetaEntry, error)

	// FetchEntryFromMeta resolves the full body for previously fetched
	// metadata. A missing body for live metadata is a store-consistency
	// error, not absence.
	FetchEntryFromMeta(meta *MetaEntry) (*DocumentEntry, error)

	// Conflicts returns the live sibling revisions that lost the
	// deterministic winner election for path. Empty means no conflict.
	Conflicts(path string) ([]string, error)

	// PutDocument stores entry as a new revision. chunksOnly restricts
	// the write to content chunks without touching document metadata.
	PutDocument(entry *DocumentEntry, force bool, chunksOnly bool) error

	// PutChunks ensures entry's content chunks exist in the store
	// without writing document metadata.
	PutChunks(entry *DocumentEntry, force bool) error

	// Delete tombstones the document at path. A non-empty rev removes
	// only that revision, leaving siblings alive.
	Delete(path string, rev string) error

	// AllPaths returns the logical path of every document, tombstoned
	// ones included, in no particular order.
	AllPaths() ([]string, error)

	Close() error
}

// RevGeneration parses the generation number out of a "<generation>-<hash>"
// revision token. Malformed tokens parse as generation 0.
func RevGeneration(rev string) int {
	idx := strings.Index(rev, "-")
	if idx <= 0 {
		return 0
	}
	gen, err := strconv.Atoi(rev[:idx])
	if err != nil {
		return 0
	}
	return gen
}

// NewRevision derives the successor revision token for a body following a
// parent revision. The hash folds in the parent so sibling edits of the
// same body under different parents still get distinct tokens.
func NewRevision(parentRev string, body []byte) string {
	gen := RevGeneration(parentRev) + 1
	h := sha256.New()
	h.Write([]byte(parentRev))
	h.Write([]byte{0})
	h.Write(body)
	return fmt.Sprintf("%d-%s", gen, hex.EncodeToString(h.Sum(nil))[:32])
}
