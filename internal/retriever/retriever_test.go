package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jdai-labs/marketbot/internal/index"
	"github.com/jdai-labs/marketbot/internal/log"
	"github.com/jdai-labs/marketbot/internal/testutil"
)

// buildIndex indexes the return-policy corpus with pinned vector geometry:
// the returns chunk sits on one axis, the parts chunk on another.
func buildIndex(t *testing.T, emb *testutil.MockEmbedder) *index.Memory {
	t.Helper()

	chunks := map[string][]float32{
		"German Werks sells carbon fibre parts.": {1, 0, 0},
		"Returns accepted within 30 days.":       {0, 1, 0},
	}

	m := index.NewMemory()
	pos := 0
	for _, text := range []string{
		"German Werks sells carbon fibre parts.",
		"Returns accepted within 30 days.",
	} {
		emb.SetVector(text, chunks[text])
		err := m.Add(index.Entry{
			ChunkID:    "werks:" + string(rune('0'+pos)),
			DocumentID: "werks",
			Text:       text,
			Vector:     chunks[text],
		})
		if err != nil {
			t.Fatal(err)
		}
		pos++
	}
	return m
}

func TestRetrieveRanksRelevantChunkFirst(t *testing.T) {
	emb := &testutil.MockEmbedder{}
	m := buildIndex(t, emb)
	// The return-policy query points almost entirely at the returns axis.
	emb.SetVector("what is your return policy", []float32{0.1, 0.9, 0})

	r := New(emb, index.MemorySearcher{M: m}, log.NewNop())
	results, err := r.Retrieve(context.Background(), "what is your return policy", 2)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !strings.Contains(results[0].Text, "Returns accepted") {
		t.Errorf("top result = %q, want the returns chunk", results[0].Text)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	emb := &testutil.MockEmbedder{}
	r := New(emb, index.MemorySearcher{M: index.NewMemory()}, log.NewNop())

	results, err := r.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty index, want 0", len(results))
	}
	if emb.Calls() != 0 {
		t.Errorf("embedder called %d times for empty index, want 0", emb.Calls())
	}
}

func TestRetrieveClampsKToIndexSize(t *testing.T) {
	emb := &testutil.MockEmbedder{Dimension: 3}
	m := buildIndex(t, emb)
	emb.SetVector("q", []float32{1, 1, 0})

	r := New(emb, index.MemorySearcher{M: m}, log.NewNop())
	results, err := r.Retrieve(context.Background(), "q", 50)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want all 2", len(results))
	}
}

func TestRetrieveDefaultK(t *testing.T) {
	emb := &testutil.MockEmbedder{Dimension: 3}
	m := buildIndex(t, emb)
	emb.SetVector("q", []float32{1, 0, 0})

	r := New(emb, index.MemorySearcher{M: m}, log.NewNop())
	results, err := r.Retrieve(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	// DefaultTopK is 4, clamped to the 2 indexed chunks.
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestRetrieveEmbedderError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	emb := &testutil.MockEmbedder{Dimension: 3, Err: wantErr}
	m := buildIndex(t, &testutil.MockEmbedder{})

	r := New(emb, index.MemorySearcher{M: m}, log.NewNop())
	if _, err := r.Retrieve(context.Background(), "q", 2); !errors.Is(err, wantErr) {
		t.Errorf("Retrieve() = %v, want wrapped %v", err, wantErr)
	}
}
