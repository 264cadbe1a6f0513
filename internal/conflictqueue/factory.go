package conflictqueue

import (
	"fmt"

	"docsync-go/internal/config"
)

// NewQueueFromConfig creates a Queue implementation based on the conflicts
// config type.
func NewQueueFromConfig(cfg config.ConflictsConfig) (Queue, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryQueue(), nil
	case "filesystem":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("filesystem conflict queue requires data_dir to be set")
		}
		return NewFileSystemQueue(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown conflict queue type: %s", cfg.Type)
	}
}
