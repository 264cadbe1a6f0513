package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docsync-go/internal/chunkstore"
	"docsync-go/internal/config"
	"docsync-go/internal/conflictqueue"
	"docsync-go/internal/docstore"
	"docsync-go/internal/encryption"
	"docsync-go/internal/engine"
	"docsync-go/internal/kv"
	"docsync-go/internal/storage"
)

// DefaultObfuscationKeyEnv is the environment variable consulted for the
// id-obfuscation key when the config does not name one.
const DefaultObfuscationKeyEnv = "DOCSYNC_OBFUSCATION_KEY"

// SyncApp is the application layer between the CLI and the engine.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages resource lifecycles on Close.
type SyncApp struct {
	cfg     *config.Config
	storage *storage.OSStorage
	docs    engine.DocumentService
	chunks  chunkstore.Store
	kvStore engine.KeyValue
	queue   conflictqueue.Queue
	engine  *engine.Engine
	logger  *slog.Logger

	logCloser io.Closer
}

// RunSummary aggregates the outcomes of a bulk push or pull.
type RunSummary struct {
	Applied   int
	Unchanged int
	Skipped   int
	Deferred  int
	Failed    int
}

func (s *RunSummary) count(o engine.Outcome) {
	switch o {
	case engine.Applied:
		s.Applied++
	case engine.Unchanged:
		s.Unchanged++
	case engine.Skipped:
		s.Skipped++
	case engine.Deferred:
		s.Deferred++
	default:
		s.Failed++
	}
}

// NewSyncApp creates a fully wired SyncApp from the given config.
// The caller must call Close when done.
func NewSyncApp(ctx context.Context, cfg *config.Config) (*SyncApp, error) {
	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logCloser, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	stor, err := storage.NewOSStorage(cfg.Storage.Root, cfg.Storage.InternalPrefix, cfg.Storage.Ignore, cfg.Storage.TargetExtensions)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("creating storage: %w", err)
	}

	kvStore, err := kv.NewStoreFromConfig(cfg.KV)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("creating key-value store: %w", err)
	}
	registry := engine.NewEquivalenceRegistry(kvStore)

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		closeQuietly(kvStore)
		logCloser.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	chunks, err := chunkstore.NewStoreFromConfig(ctx, cfg.ChunkStore, enc)
	if err != nil {
		closeQuietly(kvStore)
		logCloser.Close()
		return nil, fmt.Errorf("creating chunk store: %w", err)
	}

	docs, err := docstore.NewStoreFromConfig(cfg.Database, chunks)
	if err != nil {
		closeQuietly(kvStore)
		logCloser.Close()
		return nil, fmt.Errorf("creating document store: %w", err)
	}

	queue, err := conflictqueue.NewQueueFromConfig(cfg.Conflicts)
	if err != nil {
		docs.Close()
		closeQuietly(kvStore)
		logCloser.Close()
		return nil, fmt.Errorf("creating conflict queue: %w", err)
	}

	obfuscationKey, err := resolveObfuscationKey(cfg.Sync)
	if err != nil {
		docs.Close()
		closeQuietly(kvStore)
		logCloser.Close()
		return nil, err
	}

	opts := engine.Options{
		WriteThroughConflicts: cfg.Sync.WriteThroughConflicts,
		CaseInsensitive:       cfg.Sync.CaseInsensitive,
		ObfuscationKey:        obfuscationKey,
		IsTarget:              stor.IsTarget,
		ShouldIgnore:          stor.ShouldIgnore,
		OnConflictCancelled: func(path string) {
			logger.Warn("manual conflict resolution preempted by replication", "path", path)
		},
	}

	eng := engine.NewEngine(stor, docs, registry, queue, &slogAdapter{l: logger}, engine.RealClock{}, opts)

	return &SyncApp{
		cfg:       cfg,
		storage:   stor,
		docs:      docs,
		chunks:    chunks,
		kvStore:   kvStore,
		queue:     queue,
		engine:    eng,
		logger:    logger,
		logCloser: logCloser,
	}, nil
}

// resolveObfuscationKey reads the id-obfuscation key from the environment
// when obfuscation is enabled. An empty key with obfuscation on is a
// configuration error.
func resolveObfuscationKey(cfg config.SyncConfig) (string, error) {
	if !cfg.ObfuscateIDs {
		return "", nil
	}
	envName := cfg.ObfuscationKeyEnv
	if envName == "" {
		envName = DefaultObfuscationKeyEnv
	}
	key := os.Getenv(envName)
	if key == "" {
		return "", fmt.Errorf("id obfuscation enabled but %s is not set", envName)
	}
	return key, nil
}

func closeQuietly(v any) {
	if c, ok := v.(io.Closer); ok {
		c.Close()
	}
}

// Engine exposes the reconciliation engine for callers that need its
// primitives directly.
func (a *SyncApp) Engine() *engine.Engine { return a.engine }

// logicalPath maps a raw CLI path (absolute or relative to the working
// directory) onto the storage tree's logical form.
func (a *SyncApp) logicalPath(rawPath string) (string, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	root, err := filepath.Abs(a.cfg.Storage.Root)
	if err != nil {
		return "", fmt.Errorf("resolving storage root: %w", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside the storage root: %s", rawPath)
	}
	return filepath.ToSlash(rel), nil
}

// Push reconciles one storage file into the document store.
func (a *SyncApp) Push(rawPath string, force, chunksOnly bool) (engine.Outcome, error) {
	path, err := a.logicalPath(rawPath)
	if err != nil {
		return engine.Failed, err
	}
	file, err := a.storage.Resolve(path)
	if err != nil {
		return engine.Failed, err
	}
	if file == nil {
		return engine.Failed, fmt.Errorf("no such file in storage: %s", path)
	}
	return a.engine.StoreFileToDB(file, force, chunksOnly)
}

// PushAll reconciles every storage file into the document store.
func (a *SyncApp) PushAll(force bool) (*RunSummary, error) {
	files, err := a.storage.EnumerateAll()
	if err != nil {
		return nil, fmt.Errorf("enumerating storage: %w", err)
	}

	summary := &RunSummary{}
	for _, file := range files {
		outcome, err := a.engine.StoreFileToDB(file, force, false)
		if err != nil {
			a.logger.Error("push failed", "path", file.Path, "error", err)
		}
		summary.count(outcome)
	}
	return summary, nil
}

// Pull reconciles one document from the store onto storage.
func (a *SyncApp) Pull(rawPath string, force bool) (engine.Outcome, error) {
	path, err := a.logicalPath(rawPath)
	if err != nil {
		return engine.Failed, err
	}
	file, err := a.storage.Resolve(path)
	if err != nil {
		return engine.Failed, err
	}
	return a.engine.DBToStorage(path, file, force)
}

// PullAll reconciles every known document onto storage.
func (a *SyncApp) PullAll(force bool) (*RunSummary, error) {
	paths, err := a.docs.AllPaths()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	summary := &RunSummary{}
	for _, path := range paths {
		outcome, err := a.engine.DBToStorage(path, nil, force)
		if err != nil {
			a.logger.Error("pull failed", "path", path, "error", err)
		}
		summary.count(outcome)
	}
	return summary, nil
}

// SeedChunks uploads content chunks for every storage file without
// touching document metadata.
func (a *SyncApp) SeedChunks(ctx context.Context, showProgress bool) error {
	return a.engine.CreateAllChunks(ctx, showProgress)
}

// Conflicts returns the queued conflicted paths in deferral order.
func (a *SyncApp) Conflicts() ([]string, error) {
	return a.queue.List()
}

// ConflictRevisions returns the live revisions of a conflicted document:
// the current winner first, then the losing siblings.
func (a *SyncApp) ConflictRevisions(rawPath string) ([]string, error) {
	path, err := a.logicalPath(rawPath)
	if err != nil {
		return nil, err
	}
	meta, err := a.docs.FetchMeta(path, engine.MetaOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %s: %w", path, err)
	}
	losers, err := a.docs.Conflicts(path)
	if err != nil {
		return nil, fmt.Errorf("listing conflicts for %s: %w", path, err)
	}

	var revs []string
	if meta != nil {
		revs = append(revs, meta.Rev)
	}
	return append(revs, losers...), nil
}

// ResolveConflict settles a conflicted document by electing rev as the
// survivor: every other live revision is removed, the chosen revision is
// materialized onto storage, and the path leaves the conflict queue.
func (a *SyncApp) ResolveConflict(rawPath, rev string) error {
	path, err := a.logicalPath(rawPath)
	if err != nil {
		return err
	}

	revs, err := a.ConflictRevisions(rawPath)
	if err != nil {
		return err
	}
	chosen := false
	for _, r := range revs {
		if r == rev {
			chosen = true
			break
		}
	}
	if !chosen {
		return fmt.Errorf("revision %s is not a live revision of %s", rev, path)
	}

	for _, r := range revs {
		if r == rev {
			continue
		}
		if err := a.engine.DeleteRevision(path, r); err != nil {
			return fmt.Errorf("removing revision %s: %w", r, err)
		}
	}

	if _, err := a.engine.DBToStorageWithSpecificRev(path, rev); err != nil {
		return err
	}

	if err := a.queue.Remove(path); err != nil {
		a.logger.Warn("removing resolved path from conflict queue", "path", path, "error", err)
	}
	a.logger.Info("conflict resolved", "path", path, "rev", rev)
	return nil
}

// Watch observes the storage tree and feeds every external change into
// the engine until ctx is cancelled.
func (a *SyncApp) Watch(ctx context.Context) error {
	watcher, err := storage.NewWatcher(a.storage)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Stop()

	a.logger.Info("watching storage tree", "root", a.cfg.Storage.Root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case item, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			path := ""
			if item.File != nil {
				path = item.File.Path
			}
			outcome, err := a.engine.ProcessFileEvent(item)
			if err != nil {
				a.logger.Error("processing file event", "path", path, "kind", item.Kind.String(), "error", err)
				continue
			}
			a.logger.Debug("file event processed", "path", path, "kind", item.Kind.String(), "outcome", outcome.String())

		case err, ok := <-watcher.Errors():
			if !ok {
				return nil
			}
			a.logger.Error("watcher error", "error", err)
		}
	}
}

// Close releases all resources.
func (a *SyncApp) Close() error {
	var firstErr error

	if err := a.docs.Close(); err != nil {
		firstErr = fmt.Errorf("closing document store: %w", err)
	}
	if c, ok := a.kvStore.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing key-value store: %w", err)
		}
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
	return firstErr
}
