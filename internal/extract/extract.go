// Package extract adapts local files into the text blocks consumed by the
// capability profile builder. Extraction failures are per-document and never
// abort a run on their own.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DocumentType hints how a document should be folded into the profile.
type DocumentType string

const (
	DocumentProfile         DocumentType = "profile"
	DocumentPastPerformance DocumentType = "past-performance"
	DocumentCertification   DocumentType = "certification"
	DocumentOther           DocumentType = "other"
)

// Document is one extracted text block with its type hint.
type Document struct {
	Path string
	Text string
	Hint DocumentType
}

// ExtractionError reports a document that could not be extracted.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %q: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor reads supported document formats from the local filesystem.
type Extractor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the text content and type hint for a single document.
func (e *Extractor) Extract(path string) (*Document, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	case ".pdf":
		text, err = readPDF(path)
	case ".html", ".htm":
		text, err = readHTML(path)
	default:
		err = fmt.Errorf("unsupported format %q", filepath.Ext(path))
	}

	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("document is empty")}
	}

	return &Document{
		Path: path,
		Text: text,
		Hint: InferHint(path),
	}, nil
}

// ExtractDir extracts every supported document in the folder, skipping
// documents that fail with a warning. The result preserves name order so the
// profile is built deterministically.
func (e *Extractor) ExtractDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading documents folder: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := e.Extract(path)
		if err != nil {
			e.logger.Warn("skipping document",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}

		e.logger.Debug("extracted document",
			zap.String("path", path),
			zap.String("hint", string(doc.Hint)),
			zap.Int("chars", len(doc.Text)),
		)
		docs = append(docs, doc)
	}

	return docs, nil
}

// InferHint guesses the document type from its file name.
func InferHint(path string) DocumentType {
	name := strings.ToLower(filepath.Base(path))

	switch {
	case strings.Contains(name, "past") && strings.Contains(name, "perf"),
		strings.Contains(name, "project"),
		strings.Contains(name, "case-stud"), strings.Contains(name, "case_stud"):
		return DocumentPastPerformance
	case strings.Contains(name, "cert"):
		return DocumentCertification
	case strings.Contains(name, "profile"),
		strings.Contains(name, "capabilit"),
		strings.Contains(name, "overview"),
		strings.Contains(name, "statement"):
		return DocumentProfile
	default:
		return DocumentOther
	}
}
