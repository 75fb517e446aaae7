package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSweeper_RemovesStaleTempFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, ".clip.mov.a1b2c3d4.part")
	if err := os.WriteFile(stale, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	fresh := filepath.Join(dir, ".other.mov.e5f6a7b8.part")
	if err := os.WriteFile(fresh, []byte("in progress"), 0o644); err != nil {
		t.Fatal(err)
	}

	delivered := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(delivered, []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(delivered, old, old); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(dir, zerolog.Nop())
	freed := s.SweepOnce()

	if freed != int64(len("partial")) {
		t.Errorf("freed = %d, want %d", freed, len("partial"))
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file survived sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("recent temp file was swept")
	}
	if _, err := os.Stat(delivered); err != nil {
		t.Error("delivered file was swept")
	}
}

func TestSweeper_MissingDir(t *testing.T) {
	s := NewSweeper(filepath.Join(t.TempDir(), "gone"), zerolog.Nop())
	if freed := s.SweepOnce(); freed != 0 {
		t.Errorf("freed = %d, want 0", freed)
	}
}

func TestIsTempName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{".clip.mov.a1b2c3d4.part", true},
		{"clip.mov", false},
		{".hidden", false},
		{"clip.mov.part", false},
		{".clip.part", true},
	}
	for _, tt := range tests {
		if got := isTempName(tt.name); got != tt.want {
			t.Errorf("isTempName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
