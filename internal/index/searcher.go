package index

import "context"

// MemorySearcher adapts Memory to the context-aware search contract shared
// with Postgres. In-memory search never blocks, so ctx is unused.
type MemorySearcher struct {
	M *Memory
}

func (s MemorySearcher) Search(_ context.Context, query []float32, k int) ([]Result, error) {
	return s.M.Search(query, k)
}

func (s MemorySearcher) Size() int { return s.M.Size() }
