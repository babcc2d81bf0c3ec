// Package testutil provides deterministic test doubles for the model
// collaborators, plus shared integration-test helpers.
package testutil

import (
	"context"
	"crypto/sha256"
	"sync"
)

// MockEmbedder implements llm.Embedder with deterministic vectors: by
// default each text maps to a vector derived from its sha256, so equal texts
// always embed identically and distinct texts almost never collide. Tests
// needing controlled geometry pin exact vectors with SetVector.
type MockEmbedder struct {
	// Err, when set, is returned by every Embed call.
	Err error

	// Dimension of generated vectors. Default: 8.
	Dimension int

	mu        sync.Mutex
	fixed     map[string][]float32
	calls     int
	lastTexts []string
}

// SetVector pins the exact vector returned for text.
func (m *MockEmbedder) SetVector(text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fixed == nil {
		m.fixed = make(map[string][]float32)
	}
	m.fixed[text] = vec
}

// Embed returns one vector per text, in order.
func (m *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.lastTexts = texts
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		m.mu.Lock()
		fixed, ok := m.fixed[t]
		m.mu.Unlock()
		if ok {
			out[i] = fixed
			continue
		}
		out[i] = m.derive(t)
	}
	return out, nil
}

// Calls returns how many times Embed was invoked.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastTexts returns the texts passed to the most recent Embed call.
func (m *MockEmbedder) LastTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTexts
}

func (m *MockEmbedder) derive(text string) []float32 {
	dim := m.Dimension
	if dim == 0 {
		dim = 8
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		// Spread bytes into [-1, 1).
		vec[i] = float32(int(sum[i%len(sum)])-128) / 128
	}
	return vec
}
