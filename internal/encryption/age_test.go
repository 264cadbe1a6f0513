package encryption

import (
	"bytes"
	"testing"
)

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewAgeEncryptor("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewAgeEncryptor() error = %v", err)
	}

	plaintext := []byte("chunk body with some content\nand a second line")
	sealed, err := enc.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Equal(sealed, plaintext) {
		t.Fatal("Seal() returned the plaintext unchanged")
	}
	if bytes.Contains(sealed, []byte("chunk body")) {
		t.Fatal("sealed output leaks plaintext")
	}

	opened, err := enc.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Open(Seal(x)) = %q, want %q", opened, plaintext)
	}
}

func TestAgeEncryptor_EmptyBody(t *testing.T) {
	enc, err := NewAgeEncryptor("pw")
	if err != nil {
		t.Fatalf("NewAgeEncryptor() error = %v", err)
	}
	sealed, err := enc.Seal(nil)
	if err != nil {
		t.Fatalf("Seal(nil) error = %v", err)
	}
	opened, err := enc.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(opened) != 0 {
		t.Errorf("Open() = %q, want empty", opened)
	}
}

func TestAgeEncryptor_WrongPassphrase(t *testing.T) {
	enc, err := NewAgeEncryptor("right")
	if err != nil {
		t.Fatalf("NewAgeEncryptor() error = %v", err)
	}
	sealed, err := enc.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	wrong, err := NewAgeEncryptor("wrong")
	if err != nil {
		t.Fatalf("NewAgeEncryptor() error = %v", err)
	}
	if _, err := wrong.Open(sealed); err == nil {
		t.Fatal("Open() with wrong passphrase expected error")
	}
}

func TestNewAgeEncryptor_EmptyPassphrase(t *testing.T) {
	if _, err := NewAgeEncryptor(""); err == nil {
		t.Fatal("NewAgeEncryptor(\"\") expected error")
	}
}
