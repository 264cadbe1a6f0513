// Package chunkstore provides content-addressed storage for document chunk
// bodies. Chunk ids are sha256 hex digests of the plaintext body; storing
// the same id twice is always safe.
package chunkstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrChunkNotFound is returned by Get for ids that were never stored.
var ErrChunkNotFound = errors.New("chunk not found")

// Store is the chunk body storage interface.
type Store interface {
	// Put stores data under id. Idempotent.
	Put(ctx context.Context, id string, data []byte) error
	// Get returns the data stored under id, or ErrChunkNotFound.
	Get(ctx context.Context, id string) ([]byte, error)
	// Has reports whether id is stored.
	Has(ctx context.Context, id string) (bool, error)
}

// ChunkID derives the content address for a chunk body.
func ChunkID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
