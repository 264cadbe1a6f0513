package kv

import (
	"fmt"
	"os"
	"path/filepath"

	"docsync-go/internal/config"
	"docsync-go/internal/engine"
)

// NewStoreFromConfig creates a KeyValue implementation based on the kv
// config type.
func NewStoreFromConfig(cfg config.KVConfig) (engine.KeyValue, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite kv store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating kv directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "equivalence.db"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown kv store type: %s", cfg.Type)
	}
}
