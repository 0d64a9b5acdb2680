package driven

import (
	"context"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

// DocumentStore provides persistence for corpus documents.
// Backed by an embedded in-memory SQLite database.
type DocumentStore interface {
	// UpsertDocuments inserts or updates a batch of documents.
	// Repeated calls with the same ids are idempotent.
	UpsertDocuments(ctx context.Context, docs []domain.Document) error

	// GetDocument retrieves a document by id.
	// Returns domain.ErrNotFound when the id is unknown.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// SetEmbedding stores a vector for an existing document.
	SetEmbedding(ctx context.Context, id string, embedding []float32) error

	// Close releases resources.
	Close() error
}
