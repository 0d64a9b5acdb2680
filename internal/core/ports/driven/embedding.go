package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, vector/semantic search is disabled.
//
// Implementations may include:
//   - Ollama (all-minilm, nomic-embed-text)
//   - Local inference servers exposing a compatible API
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	// The returned vector is mean-pooled but not necessarily normalized;
	// callers normalize before computing cosine distances.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384).
	// This must match the corpus embedding width.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
