package encryption

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// AgeEncryptor seals chunk bodies with filippo.io/age using scrypt-based
// passphrase encryption. Every chunk is an independent age file, so chunks
// stay individually decryptable without shared state beyond the passphrase.
type AgeEncryptor struct {
	passphrase string
}

var _ Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an AgeEncryptor for the given passphrase.
func NewAgeEncryptor(passphrase string) (*AgeEncryptor, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("age encryption requires a passphrase")
	}
	return &AgeEncryptor{passphrase: passphrase}, nil
}

// Seal encrypts plaintext into an age ciphertext.
func (e *AgeEncryptor) Seal(plaintext []byte) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(e.passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypting data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts an age ciphertext produced by Seal.
func (e *AgeEncryptor) Open(ciphertext []byte) ([]byte, error) {
	identity, err := age.NewScryptIdentity(e.passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting data: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted data: %w", err)
	}
	return plaintext, nil
}
