package engine

import "time"

// StorageFile is a snapshot of one item in the storage tree. Absence of a
// file is modeled as a nil *StorageFile, never as an error.
type StorageFile struct {
	Path     string
	ModTime  time.Time
	Size     int64
	Internal bool
	IsFolder bool
	// Body is the file content when the producer already read it;
	// nil means the content must be fetched through ReadContent.
	Body []byte
}

// ChangeMode classifies a file-change notification emitted after the engine
// mutates storage.
type ChangeMode int

const (
	ChangeCreate ChangeMode = iota
	ChangeModify
)

func (m ChangeMode) String() string {
	if m == ChangeCreate {
		return "create"
	}
	return "modify"
}

// FileEventKind is the closed set of file-watcher event tags.
type FileEventKind int

const (
	EventCreate FileEventKind = iota
	EventChanged
	EventDelete
	EventInternal
)

func (k FileEventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventChanged:
		return "changed"
	case EventDelete:
		return "delete"
	case EventInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// FileEventItem is one observed change in the storage tree. File may be a
// stub carrying only the path (for deletes).
type FileEventItem struct {
	Kind FileEventKind
	File *StorageFile
}

// StorageService is the abstract file storage the engine reconciles
// against. The service owns all storage mutation; the engine only reads
// snapshots and issues requests.
type StorageService interface {
	// Resolve returns the current descriptor for path, or nil when the
	// path does not exist.
	Resolve(path string) (*StorageFile, error)

	// ReadContent returns the full body for a file descriptor or stub.
	ReadContent(file *StorageFile) ([]byte, error)

	// EnumerateAll lists every file (not folders) in the storage tree.
	EnumerateAll() ([]*StorageFile, error)

	// Exists reports whether path currently exists in storage.
	Exists(path string) (bool, error)

	// IsFolder reports whether path currently exists as a folder.
	IsFolder(path string) (bool, error)

	// EnsureParents creates any missing parent directories for path.
	EnsureParents(path string) error

	// WriteFileWithTimes writes data to path and applies the given
	// creation/modification times.
	WriteFileWithTimes(path string, data []byte, created, modified time.Time) error

	// DeleteItem removes the file at path. Directory cleanup is the
	// storage service's own concern.
	DeleteItem(path string) error

	// NotifyChange posts a file-change notification to downstream
	// listeners after the engine mutated storage.
	NotifyChange(mode ChangeMode, path string)
}
