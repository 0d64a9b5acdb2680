package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/sitesearch-cli/internal/logger"
)

// loadBatchSize is the number of rows inserted per batch. Batching
// bounds the peak number of outstanding inserts; each batch completes
// before the next begins.
const loadBatchSize = 100

// ProgressFunc receives (rowsInserted, totalRows) after each batch.
type ProgressFunc func(loaded, total int)

// Loader populates the document store from a corpus source exactly once.
type Loader struct {
	store  driven.DocumentStore
	source driven.CorpusSource
}

// NewLoader creates a corpus loader.
func NewLoader(store driven.DocumentStore, source driven.CorpusSource) *Loader {
	return &Loader{store: store, source: source}
}

// Load fetches the corpus and bulk-inserts it in batches. When the
// store already contains documents the call is a no-op, guarding
// against reload on re-invocation.
//
// Fetch and parse failures are returned so the initialization
// coordinator can surface them. Per-batch insert failures are logged
// and skipped; a partially populated store is an accepted degraded
// state where search returns fewer results, not an error.
func (l *Loader) Load(ctx context.Context, progress ProgressFunc) error {
	count, err := l.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	if count > 0 {
		logger.Debug("Corpus already loaded (%d documents), skipping", count)
		return nil
	}

	logger.Info("Fetching corpus from %s", l.source.Location())
	docs, err := l.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching corpus: %w", err)
	}

	valid := docs[:0]
	for i := range docs {
		if err := validateDocument(&docs[i]); err != nil {
			logger.Warn("Skipping corpus row %d: %v", i, err)
			continue
		}
		valid = append(valid, docs[i])
	}
	docs = valid

	total := len(docs)
	loaded := 0
	logger.Debug("Corpus fetched: %d documents", total)

	for start := 0; start < total; start += loadBatchSize {
		end := start + loadBatchSize
		if end > total {
			end = total
		}

		batch := docs[start:end]
		if err := l.store.UpsertDocuments(ctx, batch); err != nil {
			logger.Warn("Batch insert failed at rows %d-%d: %v", start, end, err)
			continue
		}

		loaded += len(batch)
		if progress != nil {
			progress(loaded, total)
		}
	}

	logger.Info("Corpus loaded: %d/%d documents", loaded, total)
	return nil
}

// validateDocument reports obviously broken corpus rows.
func validateDocument(doc *domain.Document) error {
	if doc.ID == "" {
		return domain.ErrInvalidInput
	}
	return nil
}
