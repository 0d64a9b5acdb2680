package driven

import (
	"context"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

// CorpusSource fetches the precomputed document corpus.
//
// Implementations may include:
//   - Local file (the corpus JSON emitted by the site build)
//   - HTTP (the deployed site's corpus resource)
type CorpusSource interface {
	// Fetch retrieves and decodes the full corpus.
	// Errors wrap domain.ErrCorpusFetchFailed.
	Fetch(ctx context.Context) ([]domain.Document, error)

	// Location describes where the corpus comes from, for logging.
	Location() string
}
