package proxy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestQuotaLimitsWrites(t *testing.T) {
	q, err := NewQuota(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewQuota: %v", err)
	}
	f, err := q.Create("notes.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Write([]byte("abcdef")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := f.Write([]byte("ghijk")); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("over-quota write = %v", err)
	}
	if got := q.Available(); got != 4 {
		t.Fatalf("Available = %d, want 4", got)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := q.Read("notes.txt")
	if err != nil || string(data) != "abcdef" {
		t.Fatalf("Read = %q, %v", data, err)
	}

	f, err = q.Create("notes.txt")
	if err != nil {
		t.Fatalf("Create again: %v", err)
	}
	_ = f.Close()
	if got := q.Available(); got != 10 {
		t.Fatalf("Available after truncate = %d, want 10", got)
	}
}

func TestQuotaRejectsEscapingNames(t *testing.T) {
	q, err := NewQuota(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewQuota: %v", err)
	}
	for _, name := range []string{"", "../x", "/etc/passwd", "sub/file", `a\b`, ".."} {
		if _, err := q.Create(name); !errors.Is(err, ErrInvalidFileName) {
			t.Fatalf("Create(%q) = %v", name, err)
		}
		if _, err := q.Read(name); !errors.Is(err, ErrInvalidFileName) {
			t.Fatalf("Read(%q) = %v", name, err)
		}
	}
}

func TestQuotaCountsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.bin"), make([]byte, 150), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	q, err := NewQuota(dir, 200)
	if err != nil {
		t.Fatalf("NewQuota: %v", err)
	}
	if got := q.Available(); got != 50 {
		t.Fatalf("Available = %d, want 50", got)
	}
}

func TestAdvancedDataFiles(t *testing.T) {
	q, err := NewQuota(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewQuota: %v", err)
	}
	chain, _ := newRig(t, TierAdvanced, func(o *ChainOptions) { o.Files = q })
	r := chain.Robot().(AdvancedRobot)
	w, err := r.DataFile("memory.json")
	if err != nil {
		t.Fatalf("DataFile: %v", err)
	}
	_, _ = w.Write([]byte(`{"seen":3}`))
	_ = w.Close()
	if got := r.DataQuotaAvailable(); got != DefaultDataQuota-10 {
		t.Fatalf("DataQuotaAvailable = %d", got)
	}
	data, err := r.ReadDataFile("memory.json")
	if err != nil || string(data) != `{"seen":3}` {
		t.Fatalf("ReadDataFile = %q, %v", data, err)
	}
}
