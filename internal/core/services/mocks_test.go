package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driving"
)

// fakeStore is an in-memory DocumentStore.
type fakeStore struct {
	mu         sync.Mutex
	docs       map[string]domain.Document
	upsertErr  error
	countErr   error
	upsertCall int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]domain.Document)}
}

func (f *fakeStore) UpsertDocuments(_ context.Context, docs []domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCall++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (f *fakeStore) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.docs), nil
}

func (f *fakeStore) SetEmbedding(_ context.Context, id string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Embedding = embedding
	f.docs[id] = doc
	return nil
}

func (f *fakeStore) Close() error { return nil }

// fakeEngine is a canned SearchEngine.
type fakeEngine struct {
	results    []domain.SearchResult
	substring  []domain.SearchResult
	err        error
	lastQuery  string
	substrHits int
}

func (f *fakeEngine) Search(_ context.Context, query string, _ int) ([]domain.SearchResult, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeEngine) SearchSubstring(_ context.Context, query string, _ int) ([]domain.SearchResult, error) {
	f.lastQuery = query
	f.substrHits++
	return f.substring, nil
}

// fakeVector is a canned VectorIndex.
type fakeVector struct {
	has     bool
	results []domain.SearchResult
	err     error
}

func (f *fakeVector) EnsureVectorSupport(context.Context) error { return nil }

func (f *fakeVector) HasVectors(context.Context) (bool, error) {
	return f.has, f.err
}

func (f *fakeVector) Nearest(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeEmbedder returns a fixed vector and records the last input.
type fakeEmbedder struct {
	vec       []float32
	err       error
	lastInput string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.lastInput = text
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) Dimensions() int            { return len(f.vec) }
func (f *fakeEmbedder) ModelName() string          { return "fake-embed" }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }

// fakeSource serves a fixed corpus.
type fakeSource struct {
	docs []domain.Document
	err  error
}

func (f *fakeSource) Fetch(context.Context) ([]domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func (f *fakeSource) Location() string { return "fake://corpus" }

// fakeLLM answers with canned responses in order, then repeats the last.
type fakeLLM struct {
	mu        sync.Mutex
	state     domain.ModelState
	responses []string
	calls     []string
	err       error
}

func newFakeLLM(responses ...string) *fakeLLM {
	return &fakeLLM{state: domain.ModelReady, responses: responses}
}

func (f *fakeLLM) Probe(context.Context) domain.ModelState { return f.state }

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func (f *fakeLLM) ModelName() string { return "fake-llm" }
func (f *fakeLLM) Close() error      { return nil }

// fakeStreamingLLM streams fixed chunks for the final answer while
// delegating relevance judgements to the embedded fakeLLM.
type fakeStreamingLLM struct {
	*fakeLLM
	chunks    []string
	streamErr error
}

func (f *fakeStreamingLLM) GenerateStream(
	ctx context.Context, prompt string, _ driven.GenerateOptions,
) (<-chan string, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()

	out := make(chan string)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// stubInitializer satisfies driving.Initializer with an initialized
// status so assistant tests skip the readiness wait.
type stubInitializer struct {
	status domain.InitStatus
}

func (s *stubInitializer) Start(context.Context)             {}
func (s *stubInitializer) Status() domain.InitStatus         { return s.status }
func (s *stubInitializer) Reset()                            {}
func (s *stubInitializer) UnregisterProgressListener(string) {}

func (s *stubInitializer) RegisterProgressListener(id string, _ driving.ProgressListener) string {
	return id
}

func (s *stubInitializer) AddCompletionListener(driving.CompletionListener) func() {
	return func() {}
}
