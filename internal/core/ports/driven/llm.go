package driven

import (
	"context"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

// LLMService provides language model operations for the assistant.
// This is an optional service - when nil, the assistant is disabled and
// search degrades to retrieval-only.
type LLMService interface {
	// Probe reports whether the model can answer prompts right now.
	// Never returns an error; inability to probe means ModelUnavailable.
	Probe(ctx context.Context) domain.ModelState

	// Generate produces a complete text response for a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// StreamingLLMService is implemented by adapters whose backend can push
// partial responses. The assistant prefers this interface when available
// and otherwise wraps Generate output as a one-element stream.
type StreamingLLMService interface {
	LLMService

	// GenerateStream produces a response incrementally. The returned
	// channel is closed when the response is complete or the context is
	// cancelled. The stream is finite and single-pass.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan string, error)
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}
