package index

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func buildIndex(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	for _, e := range []Entry{
		{ChunkID: "d1:0", DocumentID: "d1", Text: "alpha", Vector: []float32{1, 0, 0}},
		{ChunkID: "d1:30", DocumentID: "d1", Text: "beta", Vector: []float32{0, 1, 0}},
		{ChunkID: "d2:0", DocumentID: "d2", Text: "gamma", Vector: []float32{0, 0, 1}},
	} {
		if err := m.Add(e); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snapshot.json")
	m := buildIndex(t)

	if err := SaveSnapshot(path, "hash-v1", m); err != nil {
		t.Fatalf("SaveSnapshot() error: %v", err)
	}

	loaded, err := LoadSnapshot(path, "hash-v1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}

	if loaded.Size() != m.Size() || loaded.Dimension() != m.Dimension() {
		t.Fatalf("loaded size/dim = %d/%d, want %d/%d",
			loaded.Size(), loaded.Dimension(), m.Size(), m.Dimension())
	}

	// Search behavior must be identical, insertion order included.
	want, err := m.Search([]float32{1, 1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	got, err := loaded.Search([]float32{1, 1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("search after reload = %v, want %v", got, want)
	}
}

func TestLoadSnapshotStaleHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snapshot.json")
	if err := SaveSnapshot(path, "hash-v1", buildIndex(t)); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSnapshot(path, "hash-v2"); !errors.Is(err, ErrSnapshotStale) {
		t.Errorf("LoadSnapshot() = %v, want ErrSnapshotStale", err)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	if _, err := LoadSnapshot(path, "any"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadSnapshot() = %v, want os.ErrNotExist", err)
	}
}

func TestSaveSnapshotOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snapshot.json")
	if err := SaveSnapshot(path, "hash-v1", buildIndex(t)); err != nil {
		t.Fatal(err)
	}

	// Second save with a new hash replaces the file.
	small := NewMemory()
	if err := small.Add(Entry{ChunkID: "x", Vector: []float32{1}}); err != nil {
		t.Fatal(err)
	}
	if err := SaveSnapshot(path, "hash-v2", small); err != nil {
		t.Fatalf("SaveSnapshot() overwrite error: %v", err)
	}

	loaded, err := LoadSnapshot(path, "hash-v2")
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	if loaded.Size() != 1 {
		t.Errorf("Size() = %d, want 1", loaded.Size())
	}
}
