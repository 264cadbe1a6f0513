package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/docsync",
		LogDir:  "/home/user/.local/share/docsync/log",
		Storage: StorageConfig{
			Root:             "/home/user/notes",
			InternalPrefix:   ".docsync",
			Ignore:           []string{"*.tmp", ".git"},
			TargetExtensions: []string{".md", ".txt"},
		},
		Database:   DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/docsync/db"},
		ChunkStore: ChunkStoreConfig{Type: "s3", S3Bucket: "docsync-chunks", S3Prefix: "prod/", S3Region: "eu-west-1"},
		Encryption: EncryptionConfig{Type: "age", PassphraseEnv: "DOCSYNC_PASSPHRASE"},
		KV:         KVConfig{Type: "sqlite", DataDir: "/home/user/.local/share/docsync/db"},
		Conflicts:  ConflictsConfig{Type: "filesystem", DataDir: "/home/user/.local/share/docsync/conflicts"},
		Sync: SyncConfig{
			WriteThroughConflicts: true,
			CaseInsensitive:       true,
			ObfuscateIDs:          true,
			ObfuscationKeyEnv:     "DOCSYNC_OBFUSCATION_KEY",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Storage.Root != original.Storage.Root {
		t.Errorf("Storage.Root = %q, want %q", got.Storage.Root, original.Storage.Root)
	}
	if len(got.Storage.Ignore) != 2 {
		t.Fatalf("len(Storage.Ignore) = %d, want 2", len(got.Storage.Ignore))
	}
	if len(got.Storage.TargetExtensions) != 2 {
		t.Fatalf("len(Storage.TargetExtensions) = %d, want 2", len(got.Storage.TargetExtensions))
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.ChunkStore.S3Bucket != "docsync-chunks" {
		t.Errorf("ChunkStore.S3Bucket = %q, want %q", got.ChunkStore.S3Bucket, "docsync-chunks")
	}
	if got.Encryption.PassphraseEnv != "DOCSYNC_PASSPHRASE" {
		t.Errorf("Encryption.PassphraseEnv = %q, want %q", got.Encryption.PassphraseEnv, "DOCSYNC_PASSPHRASE")
	}
	if !got.Sync.WriteThroughConflicts {
		t.Error("Sync.WriteThroughConflicts = false, want true")
	}
	if !got.Sync.ObfuscateIDs {
		t.Error("Sync.ObfuscateIDs = false, want true")
	}
}

func TestManager_Read_DefaultsInternalPrefix(t *testing.T) {
	m := &Manager{}
	got, err := m.Read(bytes.NewBufferString("base_dir = \"/data\"\n"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Storage.InternalPrefix != ".docsync" {
		t.Errorf("InternalPrefix = %q, want .docsync", got.Storage.InternalPrefix)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/home/user/notes", "/data/docsync")

	if cfg.Storage.Root != "/home/user/notes" {
		t.Errorf("Storage.Root = %q, want %q", cfg.Storage.Root, "/home/user/notes")
	}
	if cfg.BaseDir != "/data/docsync" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/docsync")
	}
	if cfg.LogDir != "/data/docsync/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/docsync/log")
	}
	if cfg.Storage.InternalPrefix != ".docsync" {
		t.Errorf("Storage.InternalPrefix = %q, want %q", cfg.Storage.InternalPrefix, ".docsync")
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.ChunkStore.FSRoot != "/data/docsync/chunks" {
		t.Errorf("ChunkStore.FSRoot = %q, want %q", cfg.ChunkStore.FSRoot, "/data/docsync/chunks")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docsync.toml")
		cfg := NewConfig(dir, dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docsync.toml")
		cfg := NewConfig(dir, dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docsync.toml")
		cfg := NewConfig(filepath.Join(dir, "notes"), dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/docsync.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
