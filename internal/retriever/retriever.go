// Package retriever ranks corpus chunks against a natural-language query.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jdai-labs/marketbot/internal/index"
	"github.com/jdai-labs/marketbot/internal/llm"
)

// DefaultTopK applies when a caller passes k <= 0.
const DefaultTopK = 4

// Searcher is the index contract the retriever consumes. Satisfied by
// index.MemorySearcher and *index.Postgres.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]index.Result, error)
	Size() int
}

// Retriever embeds queries and searches the index.
type Retriever struct {
	embedder llm.Embedder
	searcher Searcher
	logger   *slog.Logger
}

// New creates a retriever over the given embedder and index.
func New(embedder llm.Embedder, searcher Searcher, logger *slog.Logger) *Retriever {
	return &Retriever{embedder: embedder, searcher: searcher, logger: logger}
}

// Retrieve returns the k chunks most similar to query. k is clamped to the
// index size, so small corpora never fail; k <= 0 uses DefaultTopK. An empty
// index returns an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]index.Result, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	size := r.searcher.Size()
	if size == 0 {
		return []index.Result{}, nil
	}
	if k > size {
		k = size
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	results, err := r.searcher.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	r.logger.Debug("retrieved chunks", "k", k, "results", len(results))
	return results, nil
}
