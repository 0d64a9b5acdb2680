package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driven"
)

// Ensure FileSource implements the interface.
var _ driven.CorpusSource = (*FileSource)(nil)

// FileSource reads the corpus from a local JSON file.
type FileSource struct {
	path string
}

// NewFileSource creates a corpus source for the given file path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads and decodes the corpus file.
func (s *FileSource) Fetch(ctx context.Context) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusFetchFailed, err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrCorpusFetchFailed, s.path, err)
	}

	return decodeCorpus(data)
}

// Location returns the corpus file path.
func (s *FileSource) Location() string {
	return s.path
}

// decodeCorpus parses a JSON array of documents and validates embedding
// widths. Documents with a wrong-width embedding keep their text but
// drop the vector; a malformed offline pass must not poison search.
func decodeCorpus(data []byte) ([]domain.Document, error) {
	var docs []domain.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: parsing corpus: %v", domain.ErrCorpusFetchFailed, err)
	}

	for i := range docs {
		if len(docs[i].Embedding) > 0 && len(docs[i].Embedding) != domain.EmbeddingDimensions {
			docs[i].Embedding = nil
		}
	}

	return docs, nil
}
