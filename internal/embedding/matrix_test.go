package embedding

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMatrix_SaveLoad(t *testing.T) {
	m := NewMatrix("test-model", 3)
	for _, row := range [][]float32{{1, 0, 0}, {0, 1, 0}} {
		if err := m.Append(row); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "run", "embeddings.gob")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rows, cols := loaded.Shape()
	if rows != 2 || cols != 3 {
		t.Errorf("Shape() = (%d, %d), want (2, 3)", rows, cols)
	}
	if loaded.Model != "test-model" || loaded.Rows[1][1] != 1 {
		t.Errorf("unexpected matrix: %+v", loaded)
	}
}

func TestMatrix_AppendRejectsMismatch(t *testing.T) {
	m := NewMatrix("m", 3)
	if err := m.Append([]float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.gob")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	garbage := filepath.Join(dir, "garbage.gob")
	os.WriteFile(garbage, []byte("not a gob"), 0644)
	if _, err := Load(garbage); err == nil {
		t.Error("expected decode error")
	}

	old := NewMatrix("m", 1)
	old.Version = CurrentMatrixVersion + 1
	oldPath := filepath.Join(dir, "old.gob")
	if err := old.Save(oldPath); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(oldPath); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}
