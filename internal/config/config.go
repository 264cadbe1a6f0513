package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for docsync.
type Config struct {
	// InstallID identifies this installation, generated at config init.
	InstallID  string           `toml:"install_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Storage    StorageConfig    `toml:"storage"`
	Database   DatabaseConfig   `toml:"database"`
	ChunkStore ChunkStoreConfig `toml:"chunkstore"`
	Encryption EncryptionConfig `toml:"encryption"`
	KV         KVConfig         `toml:"kv"`
	Conflicts  ConflictsConfig  `toml:"conflicts"`
	Sync       SyncConfig       `toml:"sync"`
}

// StorageConfig describes the synchronized file tree.
type StorageConfig struct {
	// Root is the directory whose contents are synchronized.
	Root string `toml:"root"`
	// InternalPrefix names the hidden directory whose contents are never
	// synchronized (state files, queues). Defaults to ".docsync".
	InternalPrefix string `toml:"internal_prefix,omitempty"`
	// Ignore holds gitignore-style patterns excluded from synchronization.
	Ignore []string `toml:"ignore"`
	// TargetExtensions, when non-empty, restricts synchronization to files
	// with one of the listed extensions (e.g. [".md", ".txt"]).
	TargetExtensions []string `toml:"target_extensions"`
}

// DatabaseConfig represents configuration for the document store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ChunkStoreConfig represents configuration for the chunk body store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ChunkStoreConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
	// S3Endpoint targets S3-compatible servers; empty means AWS.
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
	// S3AccessKeyEnv/S3SecretKeyEnv name environment variables holding
	// static credentials. Empty falls back to the AWS credential chain.
	S3AccessKeyEnv string `toml:"s3_access_key_env,omitempty"`
	S3SecretKeyEnv string `toml:"s3_secret_key_env,omitempty"`
}

// EncryptionConfig controls chunk-body encryption at rest.
type EncryptionConfig struct {
	Type string `toml:"type"` // "none" (default), "age", or "test"
	// PassphraseEnv names the environment variable holding the passphrase.
	// When empty and Type == "age", the CLI prompts interactively.
	PassphraseEnv string `toml:"passphrase_env,omitempty"`
}

// KVConfig represents configuration for the equivalence key/value store.
type KVConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ConflictsConfig represents configuration for the deferred-conflict queue.
type ConflictsConfig struct {
	Type    string `toml:"type"`               // "memory" or "filesystem"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=filesystem
}

// SyncConfig holds reconciliation policy knobs.
type SyncConfig struct {
	// WriteThroughConflicts applies conflicted documents onto storage
	// instead of deferring them.
	WriteThroughConflicts bool `toml:"write_through_conflicts"`
	// CaseInsensitive folds paths before key and id derivation.
	CaseInsensitive bool `toml:"case_insensitive"`
	// ObfuscateIDs replaces readable path portions of document ids with a
	// keyed digest. The key comes from ObfuscationKeyEnv.
	ObfuscateIDs      bool   `toml:"obfuscate_ids"`
	ObfuscationKeyEnv string `toml:"obfuscation_key_env,omitempty"`
}

// NewConfig creates a Config with the provided values and sensible defaults.
func NewConfig(root, baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Storage: StorageConfig{
			Root:           root,
			InternalPrefix: ".docsync",
		},
		Database:   DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		ChunkStore: ChunkStoreConfig{Type: "filesystem", FSRoot: filepath.Join(baseDir, "chunks")},
		Encryption: EncryptionConfig{Type: "none"},
		KV:         KVConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Conflicts:  ConflictsConfig{Type: "filesystem", DataDir: filepath.Join(baseDir, "conflicts")},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Storage.InternalPrefix == "" {
		cfg.Storage.InternalPrefix = ".docsync"
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
