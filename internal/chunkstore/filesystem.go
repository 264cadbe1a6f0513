package chunkstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSystemStore stores chunk bodies as files named by their content id:
//
//	<root>/
//	  <id[:2]>/
//	    <id>
//
// The two-character fan-out keeps directory sizes manageable for large
// trees.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a chunk store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating chunk store root: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

func (s *FileSystemStore) chunkPath(id string) string {
	prefix := id
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, prefix, id)
}

func (s *FileSystemStore) Put(_ context.Context, id string, data []byte) error {
	destPath := s.chunkPath(id)

	// If the chunk already exists, skip (idempotent).
	if _, err := os.Stat(destPath); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	// Atomic write: temp file in the same directory, then rename.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
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
		return fmt.Errorf("writing chunk data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

func (s *FileSystemStore) Get(_ context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(s.chunkPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrChunkNotFound)
		}
		return nil, fmt.Errorf("reading chunk %s: %w", id, err)
	}
	return data, nil
}

func (s *FileSystemStore) Has(_ context.Context, id string) (bool, error) {
	_, err := os.Stat(s.chunkPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking chunk %s: %w", id, err)
}

var _ Store = (*FileSystemStore)(nil)
