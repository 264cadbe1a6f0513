package docstore

import (
	"fmt"
	"os"
	"path/filepath"

	"docsync-go/internal/chunkstore"
	"docsync-go/internal/config"
	"docsync-go/internal/engine"
)

// NewStoreFromConfig creates a DocumentService based on the database
// config type.
func NewStoreFromConfig(cfg config.DatabaseConfig, chunks chunkstore.Store) (engine.DocumentService, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "documents.db"), chunks)
	case "memory":
		return NewSQLiteStore(":memory:", chunks)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
