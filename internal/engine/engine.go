package engine

import (
	"bytes"
	"fmt"
)

// ConflictQueue receives paths whose documents were found conflicted and
// must wait for external resolution.
type ConflictQueue interface {
	Push(path string) error
	Remove(path string) error
}

// Options carries engine policy knobs and the injected predicates.
type Options struct {
	// WriteThroughConflicts permits applying a conflicted document onto
	// storage instead of deferring it.
	WriteThroughConflicts bool
	// CaseInsensitive folds paths before key/id derivation.
	CaseInsensitive bool
	// ObfuscationKey, when set, obfuscates derived document ids.
	ObfuscationKey string
	// IsTarget reports whether a path participates in synchronization.
	// nil means every path is a target.
	IsTarget func(path string) bool
	// ShouldIgnore reports whether a path is excluded by ignore policy.
	// nil means nothing is ignored.
	ShouldIgnore func(path string) bool
	// OnConflictCancelled is notified when an incoming replicated
	// document preempts an in-progress manual resolution for a path.
	OnConflictCancelled func(path string)
}

// Engine arbitrates freshness between a storage-side file and its
// database-side document, decides the direction and shape of each
// synchronization, defers conflicted revisions, and serializes concurrent
// operations per logical path. It holds no background work of its own;
// every operation runs on the caller's goroutine and re-fetches state from
// the storage and document services rather than trusting earlier snapshots.
type Engine struct {
	storage   StorageService
	docs      DocumentService
	registry  *EquivalenceRegistry
	conflicts ConflictQueue
	locks     *PathLocker
	codec     *PathCodec
	logger    Logger
	clock     Clock
	opts      Options
}

// NewEngine creates an Engine with the provided collaborators.
// registry and conflicts may be nil when equivalence tracking or conflict
// deferral persistence is not wanted (tests mostly).
func NewEngine(storage StorageService, docs DocumentService, registry *EquivalenceRegistry, conflicts ConflictQueue, logger Logger, clock Clock, opts Options) *Engine {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Engine{
		storage:   storage,
		docs:      docs,
		registry:  registry,
		conflicts: conflicts,
		locks:     NewPathLocker(),
		codec: &PathCodec{
			CaseInsensitive: opts.CaseInsensitive,
			ObfuscationKey:  opts.ObfuscationKey,
		},
		logger: logger,
		clock:  clock,
		opts:   opts,
	}
}

// Codec exposes the path codec so producers (watchers, replication intake)
// can derive the same keys the engine uses.
func (e *Engine) Codec() *PathCodec { return e.codec }

func (e *Engine) isTarget(path string) bool {
	return e.opts.IsTarget == nil || e.opts.IsTarget(path)
}

func (e *Engine) shouldIgnore(path string) bool {
	return e.opts.ShouldIgnore != nil && e.opts.ShouldIgnore(path)
}

// StoreFileToDB reconciles one storage file into the document store.
// force bypasses the freshness comparison entirely; onlyChunks restricts
// the write to content chunks without touching document metadata.
func (e *Engine) StoreFileToDB(file *StorageFile, force, onlyChunks bool) (Outcome, error) {
	if file == nil {
		return Skipped, nil
	}

	// Re-resolve: the file may have been deleted between event emission
	// and processing. That is a no-op, not an error.
	current, err := e.storage.Resolve(file.Path)
	if err != nil {
		return Failed, fmt.Errorf("resolving %s: %w", file.Path, err)
	}
	if current == nil {
		e.logger.Debug("file vanished before store", "path", file.Path)
		return Skipped, nil
	}
	if file.Body != nil && current.Body == nil {
		current.Body = file.Body
	}
	file = current

	if file.Internal {
		e.logger.Debug("internal file rejected", "path", file.Path)
		return Skipped, nil
	}

	path := e.codec.Normalize(file.Path)
	meta, err := e.docs.FetchMeta(path, MetaOptions{PreferCache: true, IncludeDeleted: true})
	if err != nil {
		return Failed, fmt.Errorf("fetching metadata for %s: %w", path, err)
	}

	// Fresh creation: nothing live on the database side.
	if meta == nil || meta.IsDeleted() {
		return e.applyStore(file, path, force, onlyChunks)
	}

	if !force && !onlyChunks {
		verdict := e.compareFileFreshness(file, meta)
		if verdict == Equivalent {
			// Equivalent by time is not enough: compare bytes to
			// catch content that changed inside one resolution
			// bucket, and to register genuine clock-drift pairs.
			body, err := e.storage.ReadContent(file)
			if err != nil {
				return Failed, fmt.Errorf("reading %s: %w", file.Path, err)
			}
			entry, err := e.docs.FetchEntryFromMeta(meta)
			if err != nil {
				return Failed, fmt.Errorf("resolving body for %s: %w", path, err)
			}
			if bytes.Equal(body, entry.Data) {
				if e.registry != nil {
					if err := e.registry.Mark(path, file.ModTime, meta.ModTime); err != nil {
						e.logger.Warn("marking timestamps equivalent", "path", path, "error", err)
					}
				}
				e.logger.Debug("file unchanged", "path", path)
				return Unchanged, nil
			}
			file.Body = body
			// Same truncated timestamp, different bytes: apply as
			// a forced write so the store does not skip it either.
			return e.applyStore(file, path, true, onlyChunks)
		}
	}

	return e.applyStore(file, path, force, onlyChunks)
}

// applyStore reads the full content if needed and writes it to the
// document store, whole-document or chunks-only.
func (e *Engine) applyStore(file *StorageFile, path string, force, onlyChunks bool) (Outcome, error) {
	body := file.Body
	if body == nil {
		var err error
		body, err = e.storage.ReadContent(file)
		if err != nil {
			return Failed, fmt.Errorf("reading %s: %w", file.Path, err)
		}
	}

	entry := &DocumentEntry{
		MetaEntry: MetaEntry{
			ID:        e.codec.DocumentID(file.Path),
			Path:      path,
			ModTime:   file.ModTime,
			CreatedAt: file.ModTime,
			Size:      int64(len(body)),
		},
		Data: body,
	}

	if onlyChunks {
		if err := e.docs.PutChunks(entry, force); err != nil {
			return Failed, fmt.Errorf("storing chunks for %s: %w", path, err)
		}
		e.logger.Debug("chunks stored", "path", path, "size", entry.Size)
		return Applied, nil
	}

	if err := e.docs.PutDocument(entry, force, false); err != nil {
		return Failed, fmt.Errorf("storing document for %s: %w", path, err)
	}
	e.logger.Info("document stored", "path", path, "size", entry.Size, "forced", force)
	return Applied, nil
}

// DBToStorage applies the document at path onto storage. file, when
// non-nil, is the caller's current storage descriptor; the engine still
// re-checks existence itself. force bypasses the freshness comparison.
func (e *Engine) DBToStorage(path string, file *StorageFile, force bool) (Outcome, error) {
	path = e.codec.Normalize(path)

	meta, err := e.docs.FetchMeta(path, MetaOptions{IncludeDeleted: true})
	if err != nil {
		return Failed, fmt.Errorf("fetching metadata for %s: %w", path, err)
	}
	if meta == nil {
		return Failed, fmt.Errorf("%s: %w", path, ErrDocumentMissing)
	}

	conflicts, err := e.docs.Conflicts(path)
	if err != nil {
		return Failed, fmt.Errorf("listing conflicts for %s: %w", path, err)
	}
	if len(conflicts) > 0 && !e.opts.WriteThroughConflicts {
		if e.conflicts != nil {
			if err := e.conflicts.Push(path); err != nil {
				e.logger.Warn("queueing conflicted path", "path", path, "error", err)
			}
		}
		e.logger.Info("conflicted document deferred", "path", path, "conflicts", len(conflicts))
		return Deferred, nil
	}

	// Folders are never overwritten by file sync.
	isFolder, err := e.storage.IsFolder(path)
	if err != nil {
		return Failed, fmt.Errorf("checking folder at %s: %w", path, err)
	}
	if isFolder {
		e.logger.Debug("folder occupies path", "path", path)
		return Skipped, nil
	}

	docExists := !meta.IsDeleted()
	storExists, err := e.storage.Exists(path)
	if err != nil {
		return Failed, fmt.Errorf("checking %s: %w", path, err)
	}

	switch {
	case !docExists && !storExists:
		return Unchanged, nil
	case !docExists && storExists:
		if err := e.storage.DeleteItem(path); err != nil {
			return Failed, fmt.Errorf("deleting %s: %w", path, err)
		}
		e.logger.Info("storage file deleted", "path", path)
		return Applied, nil
	}

	mode := ChangeModify
	if !storExists {
		mode = ChangeCreate
	}

	entry, err := e.docs.FetchEntryFromMeta(meta)
	if err != nil {
		return Failed, fmt.Errorf("resolving body for %s: %w", path, err)
	}

	if storExists && !force {
		if file == nil {
			file, err = e.storage.Resolve(path)
			if err != nil {
				return Failed, fmt.Errorf("resolving %s: %w", path, err)
			}
		}
		verdict := e.compareFileFreshness(file, meta)
		if verdict == Equivalent {
			body, err := e.storage.ReadContent(file)
			if err != nil {
				return Failed, fmt.Errorf("reading %s: %w", path, err)
			}
			if bytes.Equal(body, entry.Data) {
				if e.registry != nil && file != nil {
					if err := e.registry.Mark(path, file.ModTime, meta.ModTime); err != nil {
						e.logger.Warn("marking timestamps equivalent", "path", path, "error", err)
					}
				}
				e.logger.Debug("storage already current", "path", path)
				return Unchanged, nil
			}
		}
		// A genuinely diverging timestamp is sufficient on its own;
		// no byte comparison needed.
	}

	return e.applyToStorage(path, entry, mode)
}

// DBToStorageWithSpecificRev materializes one specific revision of the
// document at path onto storage, bypassing conflict deferral. Paired with
// DeleteRevision for conflict-resolution workflows.
func (e *Engine) DBToStorageWithSpecificRev(path, rev string) (Outcome, error) {
	path = e.codec.Normalize(path)

	meta, err := e.docs.FetchMetaRev(path, rev)
	if err != nil {
		return Failed, fmt.Errorf("fetching rev %s of %s: %w", rev, path, err)
	}
	if meta == nil {
		return Failed, fmt.Errorf("%s@%s: %w", path, rev, ErrDocumentMissing)
	}

	entry, err := e.docs.FetchEntryFromMeta(meta)
	if err != nil {
		return Failed, fmt.Errorf("resolving body for %s@%s: %w", path, rev, err)
	}

	mode := ChangeModify
	exists, err := e.storage.Exists(path)
	if err != nil {
		return Failed, fmt.Errorf("checking %s: %w", path, err)
	}
	if !exists {
		mode = ChangeCreate
	}
	return e.applyToStorage(path, entry, mode)
}

// applyToStorage writes a resolved document entry onto storage with the
// document's timestamps and posts the file-change notification.
func (e *Engine) applyToStorage(path string, entry *DocumentEntry, mode ChangeMode) (Outcome, error) {
	if err := e.storage.EnsureParents(path); err != nil {
		return Failed, fmt.Errorf("creating parents for %s: %w", path, err)
	}
	if err := e.storage.WriteFileWithTimes(path, entry.Data, entry.CreatedAt, entry.ModTime); err != nil {
		return Failed, fmt.Errorf("writing %s: %w", path, err)
	}
	e.storage.NotifyChange(mode, path)
	e.logger.Info("storage file written", "path", path, "mode", mode.String(), "size", len(entry.Data))
	return Applied, nil
}

// DeleteFileFromDB tombstones the document for a storage file that was
// deleted. When the document has live conflicting revisions only the
// revision this side knows is removed, keeping the siblings for
// resolution; otherwise the whole document is tombstoned.
func (e *Engine) DeleteFileFromDB(file *StorageFile) (Outcome, error) {
	if file == nil {
		return Skipped, nil
	}
	if file.Internal {
		e.logger.Debug("internal file rejected", "path", file.Path)
		return Skipped, nil
	}

	path := e.codec.Normalize(file.Path)
	meta, err := e.docs.FetchMeta(path, MetaOptions{})
	if err != nil {
		return Failed, fmt.Errorf("fetching metadata for %s: %w", path, err)
	}
	if meta == nil || meta.IsDeleted() {
		e.logger.Debug("nothing to delete", "path", path)
		return Skipped, nil
	}

	conflicts, err := e.docs.Conflicts(path)
	if err != nil {
		return Failed, fmt.Errorf("listing conflicts for %s: %w", path, err)
	}
	if len(conflicts) > 0 {
		// Conflict-safe partial delete: remove only the revision this
		// side is tracking, never the whole document.
		if err := e.docs.Delete(path, meta.Rev); err != nil {
			return Failed, fmt.Errorf("deleting rev %s of %s: %w", meta.Rev, path, err)
		}
		e.logger.Info("conflicting revision deleted", "path", path, "rev", meta.Rev)
		return Applied, nil
	}

	if err := e.docs.Delete(path, ""); err != nil {
		return Failed, fmt.Errorf("deleting %s: %w", path, err)
	}
	if e.registry != nil {
		if err := e.registry.Unmark(path); err != nil {
			e.logger.Warn("clearing equivalence set", "path", path, "error", err)
		}
	}
	e.logger.Info("document deleted", "path", path)
	return Applied, nil
}

// DeleteRevision removes one specific revision of the document at path.
// Exposed as a primitive for conflict-resolution workflows.
func (e *Engine) DeleteRevision(path, rev string) error {
	path = e.codec.Normalize(path)
	if err := e.docs.Delete(path, rev); err != nil {
		return fmt.Errorf("deleting rev %s of %s: %w", rev, path, err)
	}
	e.logger.Info("revision deleted", "path", path, "rev", rev)
	return nil
}

// ProcessFileEvent dispatches one file-watcher event under the path lock.
func (e *Engine) ProcessFileEvent(item FileEventItem) (Outcome, error) {
	if item.File == nil {
		e.logger.Warn("file event without file", "kind", item.Kind.String())
		return Skipped, nil
	}
	path := e.codec.Normalize(item.File.Path)
	if !e.isTarget(path) || e.shouldIgnore(path) {
		e.logger.Debug("path not a sync target", "path", path)
		return Skipped, nil
	}

	var outcome Outcome
	err := e.locks.RunSerialized(path, func() error {
		var err error
		switch item.Kind {
		case EventCreate, EventChanged:
			outcome, err = e.StoreFileToDB(item.File, false, false)
		case EventDelete:
			outcome, err = e.DeleteFileFromDB(item.File)
		case EventInternal:
			// Internal files are another collaborator's concern.
			outcome = Skipped
		default:
			e.logger.Warn("unknown file event", "kind", int(item.Kind), "path", path)
			outcome = Skipped
		}
		return err
	})
	return outcome, err
}

// ProcessReplicatedDoc handles one incoming document entry from
// replication. It locks the same canonical key file events use, cancels
// any in-progress manual conflict resolution for the path, and applies the
// document onto storage.
func (e *Engine) ProcessReplicatedDoc(entry *MetaEntry) (Outcome, error) {
	if entry == nil {
		return Skipped, nil
	}
	path := e.codec.PathOfEntry(entry)
	if path == "" {
		e.logger.Warn("replicated document without path", "id", entry.ID)
		return Skipped, nil
	}
	if !e.isTarget(path) || e.shouldIgnore(path) {
		e.logger.Debug("replicated path not a sync target", "path", path)
		return Skipped, nil
	}

	var outcome Outcome
	err := e.locks.RunSerialized(path, func() error {
		isFolder, err := e.storage.IsFolder(path)
		if err != nil {
			outcome = Failed
			return fmt.Errorf("checking folder at %s: %w", path, err)
		}
		if isFolder {
			e.logger.Debug("folder occupies replicated path", "path", path)
			outcome = Skipped
			return nil
		}

		// An incoming replication always preempts any in-progress
		// manual conflict resolution for the path.
		if e.opts.OnConflictCancelled != nil {
			e.opts.OnConflictCancelled(path)
		}
		if e.conflicts != nil {
			if err := e.conflicts.Remove(path); err != nil {
				e.logger.Warn("removing queued conflict", "path", path, "error", err)
			}
		}

		file, err := e.storage.Resolve(path)
		if err != nil {
			outcome = Failed
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		outcome, err = e.DBToStorage(path, file, false)
		return err
	})
	return outcome, err
}
