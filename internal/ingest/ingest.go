package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"casevise/internal/models"
	"casevise/internal/parser"
)

// Ingestor persists uploaded files under a working directory and parses them.
type Ingestor struct {
	uploadsDir string
}

func NewIngestor(uploadsDir string) *Ingestor {
	return &Ingestor{uploadsDir: uploadsDir}
}

// Ingest writes the raw bytes to <uploadsDir>/<basename> (same name
// overwrites) and parses the result. Parse failures propagate as
// *models.ParseError.
func (i *Ingestor) Ingest(filename string, content []byte) (models.ParsedDocument, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return models.ParsedDocument{}, fmt.Errorf("invalid filename %q", filename)
	}

	if err := os.MkdirAll(i.uploadsDir, 0o755); err != nil {
		return models.ParsedDocument{}, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	path := filepath.Join(i.uploadsDir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return models.ParsedDocument{}, fmt.Errorf("failed to save upload: %w", err)
	}
	log.Debug().Str("file", name).Int("bytes", len(content)).Msg("Saved upload")

	return parser.ParseFile(path)
}

// IngestPath parses a file already on disk without copying it, used by the
// watch-directory mode.
func (i *Ingestor) IngestPath(path string) (models.ParsedDocument, error) {
	return parser.ParseFile(path)
}
