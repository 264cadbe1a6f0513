// Package storage implements the engine's storage service over a real
// directory tree, plus the ignore policy and the file watcher that feed
// reconciliation.
package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docsync-go/internal/engine"
)

// selfChangeWindow is how long a storage write performed by the engine
// suppresses the matching watcher event.
const selfChangeWindow = 2 * time.Second

// OSStorage implements engine.StorageService over a directory tree rooted
// at Root. Logical paths are slash-separated and relative to the root;
// anything under the internal prefix belongs to the sync machinery itself
// and is never synchronized.
type OSStorage struct {
	root           string
	internalPrefix string
	ignore         *IgnoreMatcher
	targetExts     map[string]struct{}

	mu          sync.Mutex
	selfChanges map[string]time.Time
}

// NewOSStorage creates a storage service over root. internalPrefix names
// the hidden state directory (".docsync" when empty). ignorePatterns and
// the root's ignore file feed the ignore matcher; targetExtensions, when
// non-empty, restricts sync targets by file extension.
func NewOSStorage(root, internalPrefix string, ignorePatterns, targetExtensions []string) (*OSStorage, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("storage root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root is not a directory: %s", root)
	}
	if internalPrefix == "" {
		internalPrefix = ".docsync"
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}

	exts := make(map[string]struct{}, len(targetExtensions))
	for _, ext := range targetExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}

	return &OSStorage{
		root:           root,
		internalPrefix: internalPrefix,
		ignore:         NewIgnoreMatcher(append(append([]string(nil), ignorePatterns...), filePatterns...)),
		targetExts:     exts,
		selfChanges:    make(map[string]time.Time),
	}, nil
}

// Root returns the storage root directory.
func (s *OSStorage) Root() string { return s.root }

// ShouldIgnore reports whether the ignore policy excludes path.
func (s *OSStorage) ShouldIgnore(path string) bool {
	return s.ignore.Match(path)
}

// IsTarget reports whether path participates in synchronization per the
// configured extension filter.
func (s *OSStorage) IsTarget(path string) bool {
	if len(s.targetExts) == 0 {
		return true
	}
	_, ok := s.targetExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsInternal reports whether path lives under the internal prefix.
func (s *OSStorage) IsInternal(path string) bool {
	return path == s.internalPrefix || strings.HasPrefix(path, s.internalPrefix+"/")
}

// absPath maps a logical path onto the filesystem, rejecting escapes from
// the root.
func (s *OSStorage) absPath(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("path escapes storage root: %s", path)
	}
	return filepath.Join(s.root, cleaned), nil
}

// logicalPath maps a filesystem path under the root back to logical form.
func (s *OSStorage) logicalPath(abs string) (string, error) {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", fmt.Errorf("path outside storage root: %s", abs)
	}
	return filepath.ToSlash(rel), nil
}

func (s *OSStorage) descriptor(path string, info fs.FileInfo) *engine.StorageFile {
	return &engine.StorageFile{
		Path:     path,
		ModTime:  info.ModTime(),
		Size:     info.Size(),
		Internal: s.IsInternal(path),
		IsFolder: info.IsDir(),
	}
}

func (s *OSStorage) Resolve(path string) (*engine.StorageFile, error) {
	abs, err := s.absPath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return s.descriptor(path, info), nil
}

func (s *OSStorage) ReadContent(file *engine.StorageFile) ([]byte, error) {
	if file.IsFolder {
		return nil, fmt.Errorf("cannot read folder as file: %s", file.Path)
	}
	if file.Body != nil {
		return file.Body, nil
	}
	abs, err := s.absPath(file.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file.Path, err)
	}
	return data, nil
}

func (s *OSStorage) EnumerateAll() ([]*engine.StorageFile, error) {
	var files []*engine.StorageFile
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		logical, lerr := s.logicalPath(p)
		if lerr != nil {
			return lerr
		}
		if d.IsDir() {
			if s.IsInternal(logical) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		files = append(files, s.descriptor(logical, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking storage tree: %w", err)
	}
	return files, nil
}

func (s *OSStorage) Exists(path string) (bool, error) {
	file, err := s.Resolve(path)
	if err != nil {
		return false, err
	}
	return file != nil, nil
}

func (s *OSStorage) IsFolder(path string) (bool, error) {
	file, err := s.Resolve(path)
	if err != nil {
		return false, err
	}
	return file != nil && file.IsFolder, nil
}

func (s *OSStorage) EnsureParents(path string) error {
	abs, err := s.absPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("creating parents for %s: %w", path, err)
	}
	return nil
}

func (s *OSStorage) WriteFileWithTimes(path string, data []byte, created, modified time.Time) error {
	abs, err := s.absPath(path)
	if err != nil {
		return err
	}

	// Atomic write: temp file in the same directory, then rename.
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, abs); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true

	if err := os.Chtimes(abs, modified, modified); err != nil {
		return fmt.Errorf("setting times on %s: %w", path, err)
	}
	return nil
}

func (s *OSStorage) DeleteItem(path string) error {
	abs, err := s.absPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	s.pruneEmptyParents(filepath.Dir(abs))
	return nil
}

// pruneEmptyParents removes now-empty directories up to (but excluding)
// the root. Best effort.
func (s *OSStorage) pruneEmptyParents(dir string) {
	for {
		if dir == s.root || !strings.HasPrefix(dir, s.root) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// NotifyChange records an engine-initiated mutation so the watcher can
// tell self-caused events from external ones.
func (s *OSStorage) NotifyChange(mode engine.ChangeMode, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfChanges[path] = time.Now()
}

// consumeSelfChange reports whether a recent engine write explains an
// observed event for path. The record stays live for the whole window:
// one write raises several fsnotify events and all of them must be
// suppressed.
func (s *OSStorage) consumeSelfChange(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.selfChanges[path]
	if !ok {
		return false
	}
	if time.Since(at) > selfChangeWindow {
		delete(s.selfChanges, path)
		return false
	}
	return true
}

var _ engine.StorageService = (*OSStorage)(nil)
