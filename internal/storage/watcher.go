package storage

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"docsync-go/internal/engine"
)

// Watcher observes a storage tree and emits engine.FileEventItem values
// for changes that did not originate from the engine itself. Watches are
// recursive: newly created directories are added to the watch set as they
// appear.
type Watcher struct {
	storage *OSStorage
	watcher *fsnotify.Watcher
	events  chan engine.FileEventItem
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher over the given storage service. The watcher
// must be started with Start before it emits events.
func NewWatcher(storage *OSStorage) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		storage: storage,
		watcher: fsw,
		events:  make(chan engine.FileEventItem, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start registers the storage tree with the underlying watcher and begins
// emitting events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	err := filepath.WalkDir(w.storage.Root(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		logical, lerr := w.storage.logicalPath(p)
		if lerr != nil {
			return lerr
		}
		if w.storage.IsInternal(logical) {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
	if err != nil {
		return fmt.Errorf("watching storage tree: %w", err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops the watcher and blocks until the event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("closing watcher: %w", err)
	}
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel carrying observed file events. Closed when
// the watcher stops.
func (w *Watcher) Events() <-chan engine.FileEventItem {
	return w.events
}

// Errors returns the channel carrying watcher errors. Closed when the
// watcher stops.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if item, ok := w.convertEvent(event); ok {
				select {
				case w.events <- item:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent maps one fsnotify event onto the engine's event model.
// Returns false when the event carries nothing worth forwarding.
func (w *Watcher) convertEvent(event fsnotify.Event) (engine.FileEventItem, bool) {
	logical, err := w.storage.logicalPath(event.Name)
	if err != nil {
		return engine.FileEventItem{}, false
	}

	if w.storage.IsInternal(logical) {
		return engine.FileEventItem{
			Kind: engine.EventInternal,
			File: &engine.StorageFile{Path: logical, Internal: true},
		}, true
	}

	if w.storage.consumeSelfChange(logical) {
		return engine.FileEventItem{}, false
	}

	var kind engine.FileEventKind
	switch {
	case event.Has(fsnotify.Create):
		kind = engine.EventCreate
	case event.Has(fsnotify.Write):
		kind = engine.EventChanged
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename away looks like a delete; the new name raises its
		// own create event.
		kind = engine.EventDelete
	default:
		return engine.FileEventItem{}, false
	}

	if kind == engine.EventDelete {
		return engine.FileEventItem{
			Kind: engine.EventDelete,
			File: &engine.StorageFile{Path: logical},
		}, true
	}

	file, err := w.storage.Resolve(logical)
	if err != nil || file == nil {
		// The file vanished between the event and the stat.
		return engine.FileEventItem{}, false
	}

	if file.IsFolder {
		if kind == engine.EventCreate {
			// New directories join the watch set; they raise no event
			// of their own.
			w.watcher.Add(event.Name)
		}
		return engine.FileEventItem{}, false
	}

	return engine.FileEventItem{Kind: kind, File: file}, true
}
