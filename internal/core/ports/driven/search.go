package driven

import (
	"context"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

// SearchEngine provides full-text search operations.
// Backed by SQLite FTS5 for BM25 keyword search, with a substring
// fallback path for queries the FTS query parser cannot handle.
type SearchEngine interface {
	// Search performs a keyword search and returns scored results ordered
	// by date descending (nulls last), then rank.
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)

	// SearchSubstring performs a plain case-insensitive substring match
	// over title and content, OR-combined per token. This is both the
	// reserved-character path and the hybrid-search fallback.
	SearchSubstring(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
}

// VectorIndex provides semantic similarity search operations.
// Backed by a cosine-distance scan over stored embedding vectors.
type VectorIndex interface {
	// EnsureVectorSupport enables vector storage on the underlying store.
	// Idempotent: safe to call when support is already enabled.
	EnsureVectorSupport(ctx context.Context) error

	// HasVectors reports whether any document carries an embedding.
	// Distinguishes "no semantic index yet" from "no matches".
	HasVectors(ctx context.Context) (bool, error)

	// Nearest finds the k nearest documents to the query vector, ranked
	// by ascending cosine distance. Score is similarity = 1 - distance.
	Nearest(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error)
}
