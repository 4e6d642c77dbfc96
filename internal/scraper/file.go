package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// FileSource reads listings from a local JSON file holding an array of
// records in the canonical field names. Used for dry runs and for agencies
// that only provide exports.
type FileSource struct {
	path   string
	logger *zap.Logger
}

func NewFileSource(path string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, logger: logger}
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Fetch(_ context.Context) ([]map[string]any, error) {
	payload, err := os.ReadFile(f.path)
	if err != nil {
		return nil, &SourceUnavailableError{Source: f.Name(), Err: err}
	}

	var records []map[string]any
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, &SourceUnavailableError{Source: f.Name(), Err: fmt.Errorf("parsing %s: %w", f.path, err)}
	}

	f.logger.Debug("file listings loaded", zap.String("path", f.path), zap.Int("count", len(records)))
	return records, nil
}
