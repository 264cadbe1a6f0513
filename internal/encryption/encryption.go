// Package encryption seals chunk bodies before they reach the chunk store
// and opens them on the way back.
package encryption

// Encryptor transforms chunk bodies at rest. Seal and Open must round-trip:
// Open(Seal(x)) == x. Implementations must be safe for concurrent use.
type Encryptor interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// NopEncryptor stores chunk bodies as-is.
type NopEncryptor struct{}

func NewNopEncryptor() *NopEncryptor { return &NopEncryptor{} }

func (*NopEncryptor) Seal(plaintext []byte) ([]byte, error)  { return plaintext, nil }
func (*NopEncryptor) Open(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

var _ Encryptor = (*NopEncryptor)(nil)
