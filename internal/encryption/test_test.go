package encryption

import (
	"bytes"
	"os"
	"testing"

	"docsync-go/internal/config"
)

func TestTestEncryptor_RoundTrip(t *testing.T) {
	e := NewTestEncryptor()

	plaintext := []byte("some chunk data")
	sealed, err := e.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Equal(sealed, plaintext) {
		t.Fatal("Seal() returned the plaintext unchanged")
	}

	opened, err := e.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Open(Seal(x)) = %q, want %q", opened, plaintext)
	}
}

func TestTestEncryptor_Deterministic(t *testing.T) {
	e := NewTestEncryptor()
	a, err := e.Seal([]byte("data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	b, err := e.Seal([]byte("data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Seal() is not deterministic")
	}
}

func TestTestEncryptor_RejectsBadHeader(t *testing.T) {
	e := NewTestEncryptor()
	if _, err := e.Open([]byte("not sealed data")); err == nil {
		t.Fatal("Open() of unsealed data expected error")
	}
	if _, err := e.Open([]byte("xx")); err == nil {
		t.Fatal("Open() of truncated data expected error")
	}
}

func TestNopEncryptor(t *testing.T) {
	e := NewNopEncryptor()
	data := []byte("pass through")
	sealed, err := e.Seal(data)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !bytes.Equal(sealed, data) {
		t.Errorf("Seal() = %q, want unchanged %q", sealed, data)
	}
	opened, err := e.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened, data) {
		t.Errorf("Open() = %q, want unchanged %q", opened, data)
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		e, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "none"})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := e.(*NopEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *NopEncryptor", e)
		}
	})

	t.Run("empty type defaults to none", func(t *testing.T) {
		e, err := NewEncryptorFromConfig(config.EncryptionConfig{})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := e.(*NopEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *NopEncryptor", e)
		}
	})

	t.Run("test", func(t *testing.T) {
		e, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "test"})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := e.(*TestEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *TestEncryptor", e)
		}
	})

	t.Run("age reads passphrase from env", func(t *testing.T) {
		t.Setenv("DOCSYNC_TEST_PASSPHRASE", "pw")
		e, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "age", PassphraseEnv: "DOCSYNC_TEST_PASSPHRASE"})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := e.(*AgeEncryptor); !ok {
			t.Errorf("encryptor type = %T, want *AgeEncryptor", e)
		}
	})

	t.Run("age with empty env fails", func(t *testing.T) {
		os.Unsetenv("DOCSYNC_TEST_PASSPHRASE_MISSING")
		if _, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "age", PassphraseEnv: "DOCSYNC_TEST_PASSPHRASE_MISSING"}); err == nil {
			t.Fatal("expected error for empty passphrase env")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "rot13"}); err == nil {
			t.Fatal("expected error for unknown type")
		}
	})
}
