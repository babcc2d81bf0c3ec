// Package llm defines the model collaborator contracts the RAG engine
// consumes, plus Genkit-backed implementations for the supported providers.
//
// The engine depends only on the two small interfaces below; production
// wiring supplies Genkit implementations and tests supply deterministic
// fakes from internal/testutil.
package llm

import "context"

// Embedder converts texts to fixed-dimension vectors. The same embedder
// (same model and version) must be used for indexing and querying, or
// retrieval quality silently degrades. That is a deployment invariant,
// not enforced here.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a fully rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
