package encryption

import (
	"bytes"
	"fmt"
)

// testHeader is prepended to data by TestEncryptor to make sealed output
// clearly different from plaintext while remaining deterministic and reversible.
var testHeader = []byte("DSENC\x00\x00\x00")

// TestEncryptor is a simple, deterministic encryptor for testing.
// It prepends a fixed 8-byte header on Seal and strips it on Open. This
// ensures sealed output differs from plaintext (so stored chunk bodies
// differ from originals) while being trivially reversible and requiring
// no crypto.
type TestEncryptor struct{}

var _ Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (*TestEncryptor) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, 0, len(testHeader)+len(plaintext))
	out = append(out, testHeader...)
	return append(out, plaintext...), nil
}

func (*TestEncryptor) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < len(testHeader) || !bytes.Equal(ciphertext[:len(testHeader)], testHeader) {
		return nil, fmt.Errorf("invalid test encryption header")
	}
	return append([]byte(nil), ciphertext[len(testHeader):]...), nil
}
