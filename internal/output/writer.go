package output

import (
	"encoding/json"
	"fmt"
	"os"

	"electrichouse/crawler/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Writer persists the finished crawl's record collection.
type Writer interface {
	Write(records []domain.ProductRecord) error
}

type jsonWriter struct {
	path string
}

// NewJSONWriter writes the records as a single indented JSON array at path.
// The write goes through a temp file and a rename so a crash mid-write
// never leaves a truncated document behind.
func NewJSONWriter(path string) Writer {
	return &jsonWriter{path: path}
}

func (w *jsonWriter) Write(records []domain.ProductRecord) error {
	if records == nil {
		records = []domain.ProductRecord{}
	}

	tmpPath := w.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode records: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close output file: %w", err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}

	log.Infof("💾 Wrote %d records to %s", len(records), w.path)
	return nil
}
