package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jdai-labs/marketbot/internal/log"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderReadsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "services.md", "# Services\nWe build chat widgets.")
	writeFile(t, dir, "pricing.txt", "Starter plan: $49/month.")
	writeFile(t, dir, "nested/faq.md", "Q: refunds? A: within 30 days.")
	writeFile(t, dir, "logo.png", "not text")
	writeFile(t, dir, ".hidden.md", "should be skipped")

	loader := NewLoader(log.NewNop())
	docs, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(docs) != 3 {
		t.Fatalf("got %d documents, want 3", len(docs))
	}
	// Sorted by source path.
	for i := 1; i < len(docs); i++ {
		if docs[i-1].SourceURI >= docs[i].SourceURI {
			t.Errorf("documents not sorted: %q before %q",
				docs[i-1].SourceURI, docs[i].SourceURI)
		}
	}
	for _, d := range docs {
		if d.ID == "" || d.Text == "" {
			t.Errorf("document %q missing ID or text", d.SourceURI)
		}
	}
}

func TestLoaderStableIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "about.md", "About JD AI Marketing Solutions.")

	loader := NewLoader(log.NewNop())
	first, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	second, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if first[0].ID != second[0].ID {
		t.Errorf("document ID changed across loads: %q vs %q", first[0].ID, second[0].ID)
	}
}

func TestLoaderMissingDir(t *testing.T) {
	loader := NewLoader(log.NewNop())
	if _, err := loader.Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Load() on missing directory succeeded, want error")
	}
}

func TestHashOrderIndependent(t *testing.T) {
	a := Document{ID: "a", Text: "alpha"}
	b := Document{ID: "b", Text: "beta"}

	if Hash([]Document{a, b}) != Hash([]Document{b, a}) {
		t.Error("hash depends on document order")
	}
}

func TestHashDetectsContentChange(t *testing.T) {
	a := Document{ID: "a", Text: "alpha"}
	changed := Document{ID: "a", Text: "alpha!"}

	if Hash([]Document{a}) == Hash([]Document{changed}) {
		t.Error("hash unchanged after content edit")
	}
}

func TestHashEmptyCorpus(t *testing.T) {
	if Hash(nil) != Hash([]Document{}) {
		t.Error("nil and empty corpus hash differently")
	}
}
