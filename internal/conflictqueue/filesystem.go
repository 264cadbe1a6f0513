package conflictqueue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSystemQueue persists the queue as a JSON array of paths in a single
// file, rewritten on every mutation. Deferred conflicts are rare and
// operator-driven, so a full rewrite per change is plenty.
type FileSystemQueue struct {
	mu    sync.Mutex
	path  string
	inner *MemoryQueue
}

// NewFileSystemQueue creates a queue persisted at dir/conflicts.json,
// loading any previously deferred paths.
func NewFileSystemQueue(dir string) (*FileSystemQueue, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating conflict queue directory: %w", err)
	}

	q := &FileSystemQueue{
		path:  filepath.Join(dir, "conflicts.json"),
		inner: NewMemoryQueue(),
	}
	if err := q.load(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *FileSystemQueue) load() error {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading conflict queue: %w", err)
	}
	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return fmt.Errorf("decoding conflict queue: %w", err)
	}
	for _, p := range paths {
		q.inner.Push(p)
	}
	return nil
}

func (q *FileSystemQueue) persist() error {
	paths, _ := q.inner.List()
	data, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("encoding conflict queue: %w", err)
	}

	// Atomic write: temp file in the same directory, then rename.
	tmp, err := os.CreateTemp(filepath.Dir(q.path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing conflict queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, q.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (q *FileSystemQueue) Push(path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.inner.Push(path); err != nil {
		return err
	}
	return q.persist()
}

func (q *FileSystemQueue) Remove(path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.inner.Remove(path); err != nil {
		return err
	}
	return q.persist()
}

func (q *FileSystemQueue) Pop() (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	path, err := q.inner.Pop()
	if err != nil || path == "" {
		return path, err
	}
	if err := q.persist(); err != nil {
		return "", err
	}
	return path, nil
}

func (q *FileSystemQueue) List() ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inner.List()
}

func (q *FileSystemQueue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inner.Len()
}

var _ Queue = (*FileSystemQueue)(nil)
