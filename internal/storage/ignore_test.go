package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.log"})
		// default patterns plus the one real entry
		want := len(defaultIgnorePatterns) + 1
		if len(m.patterns) != want {
			t.Fatalf("expected %d patterns, got %d", want, len(m.patterns))
		}
		last := m.patterns[len(m.patterns)-1]
		if last.pattern != "*.log" {
			t.Errorf("expected *.log, got %s", last.pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.log", "build/output"})
		patterns := m.patterns[len(defaultIgnorePatterns):]
		if patterns[0].matchPath {
			t.Error("*.log should not be a path pattern")
		}
		if !patterns[1].matchPath {
			t.Error("build/output should be a path pattern")
		}
	})

	t.Run("always carries the defaults", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher(nil)
		if !m.Match(IgnoreFileName) {
			t.Errorf("%s should be ignored by default", IgnoreFileName)
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{
			name:         "basename glob matches file in root",
			patterns:     []string{"*.log"},
			relativePath: "app.log",
			want:         true,
		},
		{
			name:         "basename glob matches file in subdirectory",
			patterns:     []string{"*.log"},
			relativePath: "sub/app.log",
			want:         true,
		},
		{
			name:         "basename glob does not match different extension",
			patterns:     []string{"*.log"},
			relativePath: "app.txt",
			want:         false,
		},
		{
			name:         "exact basename matches in subdirectory",
			patterns:     []string{".DS_Store"},
			relativePath: "sub/.DS_Store",
			want:         true,
		},
		{
			name:         "path pattern matches exact relative path",
			patterns:     []string{"drafts/scratch.md"},
			relativePath: "drafts/scratch.md",
			want:         true,
		},
		{
			name:         "path pattern does not match wrong path",
			patterns:     []string{"drafts/scratch.md"},
			relativePath: "notes/scratch.md",
			want:         false,
		},
		{
			name:         "path glob matches within directory",
			patterns:     []string{"tmp/*"},
			relativePath: "tmp/cache.bin",
			want:         true,
		},
		{
			name:         "no patterns matches nothing",
			patterns:     nil,
			relativePath: "anything.md",
			want:         false,
		},
		{
			name:         "malformed pattern is skipped",
			patterns:     []string{"[", "*.log"},
			relativePath: "app.log",
			want:         true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			if got := m.Match(tt.relativePath); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("missing file returns nil without error", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})

	t.Run("reads raw lines", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, IgnoreFileName)
		content := "*.tmp\n# comment\n\ndrafts/*\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(patterns) != 4 {
			t.Fatalf("expected 4 raw lines, got %d", len(patterns))
		}
		if patterns[0] != "*.tmp" || patterns[3] != "drafts/*" {
			t.Errorf("unexpected patterns: %v", patterns)
		}
	})
}
