package corpus

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Loader reads reference documents from a directory tree.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a document loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load walks dir and returns every supported document, sorted by source path
// for deterministic corpus ordering. Supported extensions: .md, .txt, .pdf.
// Hidden files and directories are skipped. Unreadable PDFs are skipped with
// a warning rather than failing the whole load.
func (l *Loader) Load(dir string) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}

		var text string
		switch strings.ToLower(filepath.Ext(name)) {
		case ".md", ".txt":
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			text = string(data)
		case ".pdf":
			text, err = extractPDF(path)
			if err != nil {
				l.logger.Warn("skipping unreadable PDF", "path", path, "error", err)
				return nil
			}
		default:
			return nil
		}

		docs = append(docs, Document{
			ID:        NewDocumentID(abs),
			SourceURI: path,
			Text:      text,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus directory %s: %w", dir, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceURI < docs[j].SourceURI })

	l.logger.Info("corpus loaded", "dir", dir, "documents", len(docs))
	return docs, nil
}

// extractPDF returns the plain text of a PDF file.
func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	return buf.String(), nil
}
