// Package corpus loads the reference documents and slices them into
// overlapping chunks for embedding.
//
// Documents are immutable after loading. Chunking is deterministic: the same
// document and parameters always produce byte-identical chunks, so reindexing
// an unchanged corpus yields an identical index.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Document is a single reference document from the corpus directory.
type Document struct {
	// ID uniquely identifies the document: sha256 of the absolute source path.
	ID string

	// SourceURI is the path the document was loaded from.
	SourceURI string

	// Text is the full document content.
	Text string
}

// Chunk is a contiguous slice of a document's text. Offsets are byte offsets
// into Document.Text, so the original text can be reconstructed from chunks.
type Chunk struct {
	// ID is "<document ID>:<start offset>", stable across rebuilds.
	ID string

	// DocumentID links back to the source document.
	DocumentID string

	Text        string
	StartOffset int
	EndOffset   int
}

// NewDocumentID derives a stable document ID from the source path.
func NewDocumentID(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:])
}

// Hash computes a content hash over the whole corpus: documents sorted by ID,
// each contributing its ID and text. Used to detect staleness of a persisted
// index snapshot.
func Hash(docs []Document) string {
	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	for _, d := range sorted {
		fmt.Fprintf(h, "%s\x00%d\x00", d.ID, len(d.Text))
		h.Write([]byte(d.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}
