package chunkstore

import (
	"context"
	"fmt"
	"os"

	"docsync-go/internal/config"
	"docsync-go/internal/encryption"
)

// NewStoreFromConfig creates a chunk Store based on the chunkstore config
// type, wrapped with the given encryptor unless it is nil.
func NewStoreFromConfig(ctx context.Context, cfg config.ChunkStoreConfig, enc encryption.Encryptor) (Store, error) {
	var store Store
	var err error

	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem chunk store requires fs_root to be set")
		}
		store, err = NewFileSystemStore(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
	case "s3":
		opts := S3Options{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		}
		if cfg.S3AccessKeyEnv != "" {
			opts.AccessKey = os.Getenv(cfg.S3AccessKeyEnv)
		}
		if cfg.S3SecretKeyEnv != "" {
			opts.SecretKey = os.Getenv(cfg.S3SecretKeyEnv)
		}
		store, err = NewS3Store(ctx, opts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown chunk store type: %s", cfg.Type)
	}

	if enc != nil {
		if _, nop := enc.(*encryption.NopEncryptor); !nop {
			store = NewEncryptedStore(store, enc)
		}
	}
	return store, nil
}
