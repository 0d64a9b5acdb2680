package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable indicates the embedded database engine could not
	// be opened in this environment. Callers must treat this as "search
	// disabled", not as a fatal condition.
	ErrStoreUnavailable = errors.New("embedded store unavailable")

	// ErrCorpusFetchFailed indicates the corpus resource could not be
	// fetched or parsed. The store may be left partially populated, which
	// is an accepted degraded state.
	ErrCorpusFetchFailed = errors.New("corpus fetch failed")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured or failed. Vector search degrades to keyword-only.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrQueryFailed indicates a malformed query or an engine error.
	// Converted to empty results at the retrieval boundary.
	ErrQueryFailed = errors.New("query failed")

	// ErrModelUnavailable indicates the LLM capability is missing or its
	// model has not been downloaded.
	ErrModelUnavailable = errors.New("language model unavailable")

	// ErrFilterParseFailed indicates the relevance-filter response could
	// not be parsed. The pipeline falls back to unfiltered candidates.
	ErrFilterParseFailed = errors.New("relevance filter response unparsable")
)
