package encryption

import (
	"fmt"
	"os"

	"docsync-go/internal/config"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration
// type. The age passphrase is read from the configured environment
// variable; callers that prompt interactively should use NewAgeEncryptor
// directly.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return NewNopEncryptor(), nil
	case "age":
		if cfg.PassphraseEnv == "" {
			return nil, fmt.Errorf("age encryption requires passphrase_env (or an interactive prompt)")
		}
		passphrase := os.Getenv(cfg.PassphraseEnv)
		if passphrase == "" {
			return nil, fmt.Errorf("environment variable %s is empty", cfg.PassphraseEnv)
		}
		return NewAgeEncryptor(passphrase)
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
