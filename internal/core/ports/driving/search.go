package driving

import (
	"context"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

// SearchService provides retrieval over the embedded corpus index.
type SearchService interface {
	// Search performs a keyword search (or hybrid, per options) and
	// returns scored results. Empty or whitespace-only queries return an
	// empty slice without error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// Snippet extracts a highlighted context window from the document's
	// content around the first query-token occurrence. The second return
	// value is false when the document does not exist.
	Snippet(ctx context.Context, id, query string) (string, bool)
}
