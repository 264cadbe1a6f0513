package chunkstore

import (
	"context"
	"fmt"

	"docsync-go/internal/encryption"
)

// EncryptedStore wraps another Store and seals chunk bodies before they are
// written. Ids keep addressing the plaintext, so deduplication and lookups
// are unaffected by the encryption layer.
type EncryptedStore struct {
	inner Store
	enc   encryption.Encryptor
}

// NewEncryptedStore wraps inner with the given encryptor.
func NewEncryptedStore(inner Store, enc encryption.Encryptor) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc}
}

func (s *EncryptedStore) Put(ctx context.Context, id string, data []byte) error {
	sealed, err := s.enc.Seal(data)
	if err != nil {
		return fmt.Errorf("sealing chunk %s: %w", id, err)
	}
	return s.inner.Put(ctx, id, sealed)
}

func (s *EncryptedStore) Get(ctx context.Context, id string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.enc.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("opening chunk %s: %w", id, err)
	}
	return data, nil
}

func (s *EncryptedStore) Has(ctx context.Context, id string) (bool, error) {
	return s.inner.Has(ctx, id)
}

var _ Store = (*EncryptedStore)(nil)
