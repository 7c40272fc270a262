package mining

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileCheckpointsRoundTrip(t *testing.T) {
	f, err := NewFileCheckpoints(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, ok, err := f.Load(1); err != nil || ok {
		t.Fatalf("expected absent checkpoint, got ok=%v err=%v", ok, err)
	}

	want := Checkpoint{Timestamp: 123456, Amount: 42.5, SavedHashRate: 20}
	if err := f.Save(1, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := f.Load(1)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := f.Clear(1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := f.Load(1); ok {
		t.Fatalf("checkpoint survived clear")
	}
	// clearing twice is fine
	if err := f.Clear(1); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestFileCheckpointsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFileCheckpoints(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "mining-1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, ok, err := f.Load(1); err != nil || ok {
		t.Fatalf("corrupt checkpoint should read as absent, got ok=%v err=%v", ok, err)
	}
}
