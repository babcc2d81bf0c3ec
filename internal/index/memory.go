// Package index stores chunk embeddings and ranks them by cosine similarity.
//
// Memory is the reference implementation: brute-force exact search over an
// in-process slice, which is the right trade-off for a corpus of tens to
// hundreds of chunks. Postgres provides the same contract on pgvector for
// deployments that outgrow that. Both are write-once: the index is built
// during startup and read-only while serving.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Index errors, checked with errors.Is().
var (
	// ErrInvalidK indicates a non-positive k passed to Search.
	ErrInvalidK = errors.New("k must be positive")

	// ErrDimensionMismatch indicates a vector whose dimension differs from
	// the index's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector indicates a zero-length vector.
	ErrEmptyVector = errors.New("empty vector")
)

// Entry is one indexed chunk with its embedding.
type Entry struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
}

// Result is one search hit. Score is cosine similarity in [-1, 1].
type Result struct {
	ChunkID string
	Text    string
	Score   float64
}

// Memory is a brute-force cosine similarity index. Add is not safe for
// concurrent use; Search is, once adding has finished.
type Memory struct {
	entries []Entry
	norms   []float64 // precomputed vector magnitudes, parallel to entries
	dim     int       // fixed by the first Add
}

// NewMemory creates an empty index. The first Add fixes the dimension.
func NewMemory() *Memory {
	return &Memory{}
}

// Add appends an entry. The first entry fixes the index dimension; any later
// entry with a different dimension is rejected.
func (m *Memory) Add(e Entry) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("%w: chunk %s", ErrEmptyVector, e.ChunkID)
	}
	if m.dim == 0 {
		m.dim = len(e.Vector)
	} else if len(e.Vector) != m.dim {
		return fmt.Errorf("%w: chunk %s has dimension %d, index has %d",
			ErrDimensionMismatch, e.ChunkID, len(e.Vector), m.dim)
	}

	m.entries = append(m.entries, e)
	m.norms = append(m.norms, norm(e.Vector))
	return nil
}

// Search returns the k entries most similar to query, by descending cosine
// similarity. Ties keep insertion order (earlier added wins). An empty index
// returns an empty slice. Search is a pure function of index contents and
// query: repeated calls yield identical results.
func (m *Memory) Search(query []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(m.entries) == 0 {
		return []Result{}, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			ErrDimensionMismatch, len(query), m.dim)
	}

	qNorm := norm(query)

	type scored struct {
		pos   int
		score float64
	}
	ranked := make([]scored, len(m.entries))
	for i, e := range m.entries {
		ranked[i] = scored{pos: i, score: cosine(query, qNorm, e.Vector, m.norms[i])}
	}

	// SliceStable keeps insertion order among equal scores.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	results := make([]Result, k)
	for i := 0; i < k; i++ {
		e := m.entries[ranked[i].pos]
		results[i] = Result{ChunkID: e.ChunkID, Text: e.Text, Score: ranked[i].score}
	}
	return results, nil
}

// Size returns the number of indexed entries.
func (m *Memory) Size() int { return len(m.entries) }

// Dimension returns the vector dimension, or 0 for an empty index.
func (m *Memory) Dimension() int { return m.dim }

// Entries returns the backing slice for snapshotting. Callers must not
// mutate it.
func (m *Memory) Entries() []Entry { return m.entries }

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine computes the normalized dot product. Zero vectors score 0 rather
// than NaN.
func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
