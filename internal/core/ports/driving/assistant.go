package driving

import "context"

// AssistantService answers questions grounded in the site corpus.
type AssistantService interface {
	// Ask retrieves relevant documents for the query and streams a cited
	// answer. The returned channel always yields at least one chunk
	// (failures surface as natural-language messages, never as errors)
	// and is closed when the answer is complete.
	Ask(ctx context.Context, query string) <-chan string
}
