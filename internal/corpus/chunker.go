package corpus

import (
	"errors"
	"fmt"
)

// Chunking parameter errors, checked with errors.Is().
var (
	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap indicates an overlap outside [0, size).
	ErrInvalidOverlap = errors.New("overlap must be in [0, chunk size)")
)

// Split slices a document into overlapping chunks with a character sliding
// window. Size and overlap are measured in runes; consecutive windows within
// a document share overlap runes, so the stride is size-overlap. The final
// chunk may be shorter than size. An empty document yields no chunks.
//
// Window boundaries always fall on rune boundaries, so every chunk is valid
// UTF-8 even when the text contains multi-byte characters. Offsets are byte
// offsets into the original text; output is deterministic and chunks cover
// the document without gaps.
func Split(doc Document, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: got overlap=%d size=%d", ErrInvalidOverlap, overlap, size)
	}
	if doc.Text == "" {
		return []Chunk{}, nil
	}

	text := doc.Text

	// Byte offset of each rune start, plus one sentinel for end of text, so
	// rune windows map back to byte offsets without re-decoding.
	starts := make([]int, 0, len(text)+1)
	for i := range text {
		starts = append(starts, i)
	}
	starts = append(starts, len(text))

	stride := size - overlap
	runeCount := len(starts) - 1

	var chunks []Chunk
	for r := 0; r < runeCount; r += stride {
		endRune := r + size
		if endRune > runeCount {
			endRune = runeCount
		}
		start, end := starts[r], starts[endRune]

		chunks = append(chunks, Chunk{
			ID:          fmt.Sprintf("%s:%d", doc.ID, start),
			DocumentID:  doc.ID,
			Text:        text[start:end],
			StartOffset: start,
			EndOffset:   end,
		})

		if endRune == runeCount {
			break
		}
	}
	return chunks, nil
}

// SplitAll chunks every document with the same parameters, preserving
// document order. One bad parameter set fails the whole batch.
func SplitAll(docs []Document, size, overlap int) ([]Chunk, error) {
	var all []Chunk
	for _, doc := range docs {
		chunks, err := Split(doc, size, overlap)
		if err != nil {
			return nil, fmt.Errorf("chunking document %s: %w", doc.SourceURI, err)
		}
		all = append(all, chunks...)
	}
	return all, nil
}
