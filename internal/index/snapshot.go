package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrSnapshotStale indicates the snapshot was built from a different corpus
// than the one currently on disk. Callers must rebuild instead of serving
// stale vectors.
var ErrSnapshotStale = errors.New("index snapshot is stale")

// snapshot is the on-disk format. CorpusHash keys the snapshot to the exact
// corpus content it was built from.
type snapshot struct {
	CorpusHash string  `json:"corpus_hash"`
	Dimension  int     `json:"dimension"`
	Entries    []Entry `json:"entries"`
}

// SaveSnapshot writes the index to path atomically (temp file + rename),
// holding a file lock so concurrent processes cannot interleave writes.
func SaveSnapshot(path, corpusHash string, m *Memory) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking snapshot: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck // release failure leaves a stale lock file, nothing to do

	data, err := json.Marshal(snapshot{
		CorpusHash: corpusHash,
		Dimension:  m.Dimension(),
		Entries:    m.Entries(),
	})
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("installing snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the snapshot at path and verifies it was built from the
// corpus identified by corpusHash. A hash mismatch returns ErrSnapshotStale;
// a missing file returns os.ErrNotExist (wrapped). Both mean: rebuild.
func LoadSnapshot(path, corpusHash string) (*Memory, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking snapshot: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.CorpusHash != corpusHash {
		return nil, fmt.Errorf("%w: snapshot hash %.12s, corpus hash %.12s",
			ErrSnapshotStale, snap.CorpusHash, corpusHash)
	}

	m := NewMemory()
	for _, e := range snap.Entries {
		if err := m.Add(e); err != nil {
			return nil, fmt.Errorf("restoring snapshot entry %s: %w", e.ChunkID, err)
		}
	}
	return m, nil
}
