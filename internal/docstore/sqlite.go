// Package docstore implements the revision-tracked document store over
// SQLite, with chunk bodies delegated to a chunk store.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"docsync-go/internal/chunkstore"
	"docsync-go/internal/docstore/migrations"
	"docsync-go/internal/engine"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements engine.DocumentService using SQLite for revision
// metadata and a chunkstore.Store for bodies. A document's edit history is
// a tree of revisions; the live leaves at the highest generation compete
// in the winner election, and more than one live leaf means conflict.
type SQLiteStore struct {
	db     *sql.DB
	chunks chunkstore.Store
	path   string

	cacheMu sync.RWMutex
	cache   map[string]*engine.MetaEntry
}

// NewSQLiteStore opens (and migrates) a document store at path.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string, chunks chunkstore.Store) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating document store: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		chunks: chunks,
		path:   path,
		cache:  make(map[string]*engine.MetaEntry),
	}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the document store relies on. Exported for tools and tests that need a
// properly configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys are off by default in SQLite.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Each connection to ":memory:" is its own database; pin the pool to
	// one connection so all queries see the same data.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// querier lets revision lookups run against either the pool or an open
// transaction.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// revisionRow is one scanned row from the revisions table.
type revisionRow struct {
	rev           string
	generation    int
	deleted       bool
	legacyDeleted bool
	modTime       int64
	createdAt     int64
	size          int64
	chunkID       string
}

func (s *SQLiteStore) metaOf(path, docID string, r *revisionRow) *engine.MetaEntry {
	return &engine.MetaEntry{
		ID:            docID,
		Path:          path,
		Rev:           r.rev,
		ModTime:       time.UnixMilli(r.modTime),
		CreatedAt:     time.UnixMilli(r.createdAt),
		Size:          r.size,
		Deleted:       r.deleted,
		LegacyDeleted: r.legacyDeleted,
	}
}

// liveLeaves returns the live leaf revisions for path in winner order:
// highest generation first, then highest token.
func (s *SQLiteStore) liveLeaves(q querier, path string) ([]*revisionRow, error) {
	rows, err := q.Query(`
		SELECT rev, generation, deleted, legacy_deleted, mod_time, created_at, size, chunk_id
		FROM revisions
		WHERE path = ? AND leaf = 1 AND deleted = 0 AND legacy_deleted = 0
		ORDER BY generation DESC, rev DESC`, path)
	if err != nil {
		return nil, fmt.Errorf("listing live revisions for %s: %w", path, err)
	}
	defer rows.Close()

	var leaves []*revisionRow
	for rows.Next() {
		var r revisionRow
		if err := rows.Scan(&r.rev, &r.generation, &r.deleted, &r.legacyDeleted, &r.modTime, &r.createdAt, &r.size, &r.chunkID); err != nil {
			return nil, fmt.Errorf("scanning revision for %s: %w", path, err)
		}
		leaves = append(leaves, &r)
	}
	return leaves, rows.Err()
}

// winner returns the winning revision for path: the first live leaf, or
// the highest-generation tombstoned leaf when nothing is live. nil when the
// document has no leaves at all.
func (s *SQLiteStore) winner(q querier, path string) (*revisionRow, error) {
	leaves, err := s.liveLeaves(q, path)
	if err != nil {
		return nil, err
	}
	if len(leaves) > 0 {
		return leaves[0], nil
	}

	var r revisionRow
	err = q.QueryRow(`
		SELECT rev, generation, deleted, legacy_deleted, mod_time, created_at, size, chunk_id
		FROM revisions
		WHERE path = ? AND leaf = 1
		ORDER BY generation DESC, rev DESC
		LIMIT 1`, path).Scan(&r.rev, &r.generation, &r.deleted, &r.legacyDeleted, &r.modTime, &r.createdAt, &r.size, &r.chunkID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding tombstone for %s: %w", path, err)
	}
	return &r, nil
}

func (s *SQLiteStore) docID(path string) (string, error) {
	var id string
	err := s.db.QueryRow("SELECT doc_id FROM documents WHERE path = ?", path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving document id for %s: %w", path, err)
	}
	return id, nil
}

func (s *SQLiteStore) FetchMeta(path string, opts engine.MetaOptions) (*engine.MetaEntry, error) {
	if opts.PreferCache {
		s.cacheMu.RLock()
		cached := s.cache[path]
		s.cacheMu.RUnlock()
		if cached != nil {
			if cached.IsDeleted() && !opts.IncludeDeleted {
				return nil, nil
			}
			copied := *cached
			return &copied, nil
		}
	}

	docID, err := s.docID(path)
	if err != nil {
		return nil, err
	}
	if docID == "" {
		return nil, nil
	}

	win, err := s.winner(s.db, path)
	if err != nil {
		return nil, err
	}
	if win == nil {
		return nil, nil
	}

	meta := s.metaOf(path, docID, win)

	s.cacheMu.Lock()
	s.cache[path] = meta
	s.cacheMu.Unlock()

	if meta.IsDeleted() && !opts.IncludeDeleted {
		return nil, nil
	}
	copied := *meta
	return &copied, nil
}

func (s *SQLiteStore) FetchMetaRev(path, rev string) (*engine.MetaEntry, error) {
	docID, err := s.docID(path)
	if err != nil {
		return nil, err
	}
	if docID == "" {
		return nil, nil
	}

	var r revisionRow
	err = s.db.QueryRow(`
		SELECT rev, generation, deleted, legacy_deleted, mod_time, created_at, size, chunk_id
		FROM revisions
		WHERE path = ? AND rev = ?`, path, rev).
		Scan(&r.rev, &r.generation, &r.deleted, &r.legacyDeleted, &r.modTime, &r.createdAt, &r.size, &r.chunkID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving rev %s of %s: %w", rev, path, err)
	}
	return s.metaOf(path, docID, &r), nil
}

func (s *SQLiteStore) FetchEntryFromMeta(meta *engine.MetaEntry) (*engine.DocumentEntry, error) {
	var chunkID string
	err := s.db.QueryRow("SELECT chunk_id FROM revisions WHERE path = ? AND rev = ?", meta.Path, meta.Rev).Scan(&chunkID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision vanished: %s@%s: %w", meta.Path, meta.Rev, engine.ErrContentUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving chunk for %s@%s: %w", meta.Path, meta.Rev, err)
	}

	data, err := s.chunks.Get(context.Background(), chunkID)
	if err != nil {
		if errors.Is(err, chunkstore.ErrChunkNotFound) {
			return nil, fmt.Errorf("chunk %s missing for %s@%s: %w", chunkID, meta.Path, meta.Rev, engine.ErrContentUnavailable)
		}
		return nil, fmt.Errorf("loading chunk %s: %w", chunkID, err)
	}
	return &engine.DocumentEntry{MetaEntry: *meta, Data: data}, nil
}

func (s *SQLiteStore) Conflicts(path string) ([]string, error) {
	leaves, err := s.liveLeaves(s.db, path)
	if err != nil {
		return nil, err
	}
	if len(leaves) < 2 {
		return nil, nil
	}
	losers := make([]string, 0, len(leaves)-1)
	for _, r := range leaves[1:] {
		losers = append(losers, r.rev)
	}
	return losers, nil
}

func (s *SQLiteStore) AllPaths() ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM documents ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning document path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return paths, nil
}

func (s *SQLiteStore) PutDocument(entry *engine.DocumentEntry, force bool, chunksOnly bool) error {
	if chunksOnly {
		return s.PutChunks(entry, force)
	}

	// Store the body first so metadata never points at a missing chunk.
	chunkID, err := s.storeChunk(entry.Data)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO documents (path, doc_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET doc_id = excluded.doc_id`,
		entry.Path, entry.ID, entry.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", entry.Path, err)
	}

	// The new revision succeeds the current winner; the winner stops
	// being a leaf.
	parent := ""
	if win, err := s.winner(tx, entry.Path); err != nil {
		return err
	} else if win != nil {
		parent = win.rev
		if _, err := tx.Exec("UPDATE revisions SET leaf = 0 WHERE path = ? AND rev = ?", entry.Path, parent); err != nil {
			return fmt.Errorf("retiring parent revision: %w", err)
		}
	}

	rev := engine.NewRevision(parent, entry.Data)
	_, err = tx.Exec(`
		INSERT INTO revisions (path, rev, generation, leaf, deleted, legacy_deleted, mod_time, created_at, size, chunk_id)
		VALUES (?, ?, ?, 1, 0, 0, ?, ?, ?, ?)`,
		entry.Path, rev, engine.RevGeneration(rev),
		entry.ModTime.UnixMilli(), entry.CreatedAt.UnixMilli(), entry.Size, chunkID)
	if err != nil {
		return fmt.Errorf("inserting revision for %s: %w", entry.Path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.invalidate(entry.Path)
	return nil
}

func (s *SQLiteStore) PutChunks(entry *engine.DocumentEntry, force bool) error {
	_, err := s.storeChunk(entry.Data)
	return err
}

func (s *SQLiteStore) storeChunk(data []byte) (string, error) {
	ctx := context.Background()
	id := chunkstore.ChunkID(data)

	ok, err := s.chunks.Has(ctx, id)
	if err != nil {
		return "", fmt.Errorf("checking chunk %s: %w", id, err)
	}
	if ok {
		return id, nil
	}
	if err := s.chunks.Put(ctx, id, data); err != nil {
		return "", fmt.Errorf("storing chunk %s: %w", id, err)
	}
	return id, nil
}

func (s *SQLiteStore) Delete(path string, rev string) error {
	defer s.invalidate(path)

	if rev != "" {
		res, err := s.db.Exec("UPDATE revisions SET deleted = 1 WHERE path = ? AND rev = ?", path, rev)
		if err != nil {
			return fmt.Errorf("deleting rev %s of %s: %w", rev, path, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting rev %s of %s: %w", rev, path, err)
		}
		if n == 0 {
			return fmt.Errorf("revision not found: %s@%s", path, rev)
		}
		return nil
	}

	// Outright delete: tombstone every live leaf.
	res, err := s.db.Exec(
		"UPDATE revisions SET deleted = 1 WHERE path = ? AND leaf = 1 AND deleted = 0 AND legacy_deleted = 0", path)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("document not found: %s", path)
	}
	return nil
}

func (s *SQLiteStore) invalidate(path string) {
	s.cacheMu.Lock()
	delete(s.cache, path)
	s.cacheMu.Unlock()
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ engine.DocumentService = (*SQLiteStore)(nil)
