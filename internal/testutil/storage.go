package testutil

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"docsync-go/internal/engine"
)

// mockItem is one entry in the mock storage tree.
type mockItem struct {
	data     []byte
	modTime  time.Time
	folder   bool
	internal bool
}

// Notification is a recorded file-change notification.
type Notification struct {
	Mode engine.ChangeMode
	Path string
}

// MockStorage is an in-memory storage tree implementing
// engine.StorageService. Safe for concurrent use.
type MockStorage struct {
	mu            sync.Mutex
	items         map[string]*mockItem
	notifications []Notification
	// FailReads makes ReadContent fail for the listed paths.
	FailReads map[string]bool
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		items:     make(map[string]*mockItem),
		FailReads: make(map[string]bool),
	}
}

// AddFile places a file into the tree, creating parent folders implicitly.
func (m *MockStorage) AddFile(p string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[p] = &mockItem{data: data, modTime: modTime}
}

// AddFolder places a folder into the tree.
func (m *MockStorage) AddFolder(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[p] = &mockItem{folder: true}
}

// AddInternalFile places an internal/hidden file into the tree.
func (m *MockStorage) AddInternalFile(p string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[p] = &mockItem{data: data, modTime: modTime, internal: true}
}

// Remove drops an item from the tree without recording a notification.
func (m *MockStorage) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, p)
}

// Contents returns the current bytes of a file and whether it exists.
func (m *MockStorage) Contents(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[p]
	if !ok || item.folder {
		return nil, false
	}
	return append([]byte(nil), item.data...), true
}

// ModTime returns the stored modification time of a file.
func (m *MockStorage) ModTime(p string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[p]
	if !ok {
		return time.Time{}, false
	}
	return item.modTime, true
}

// Notifications returns all recorded file-change notifications.
func (m *MockStorage) Notifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.notifications...)
}

func (m *MockStorage) descriptor(p string, item *mockItem) *engine.StorageFile {
	return &engine.StorageFile{
		Path:     p,
		ModTime:  item.modTime,
		Size:     int64(len(item.data)),
		Internal: item.internal,
		IsFolder: item.folder,
	}
}

func (m *MockStorage) Resolve(p string) (*engine.StorageFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[p]
	if !ok {
		return nil, nil
	}
	return m.descriptor(p, item), nil
}

func (m *MockStorage) ReadContent(file *engine.StorageFile) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads[file.Path] {
		return nil, fmt.Errorf("read failure injected for %s", file.Path)
	}
	item, ok := m.items[file.Path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", file.Path)
	}
	if item.folder {
		return nil, fmt.Errorf("cannot read folder: %s", file.Path)
	}
	return append([]byte(nil), item.data...), nil
}

func (m *MockStorage) EnumerateAll() ([]*engine.StorageFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.items))
	for p, item := range m.items {
		if !item.folder {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	files := make([]*engine.StorageFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, m.descriptor(p, m.items[p]))
	}
	return files, nil
}

func (m *MockStorage) Exists(p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[p]
	return ok && !item.folder, nil
}

func (m *MockStorage) IsFolder(p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[p]
	return ok && item.folder, nil
}

func (m *MockStorage) EnsureParents(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return nil
	}
	parts := strings.Split(dir, "/")
	for i := range parts {
		folder := strings.Join(parts[:i+1], "/")
		if _, ok := m.items[folder]; !ok {
			m.items[folder] = &mockItem{folder: true}
		}
	}
	return nil
}

func (m *MockStorage) WriteFileWithTimes(p string, data []byte, created, modified time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[p]; ok && item.folder {
		return fmt.Errorf("folder occupies path: %s", p)
	}
	m.items[p] = &mockItem{data: append([]byte(nil), data...), modTime: modified}
	return nil
}

func (m *MockStorage) DeleteItem(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[p]; !ok {
		return fmt.Errorf("item not found: %s", p)
	}
	delete(m.items, p)
	return nil
}

func (m *MockStorage) NotifyChange(mode engine.ChangeMode, p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, Notification{Mode: mode, Path: p})
}

var _ engine.StorageService = (*MockStorage)(nil)
