// Package app wires adapters and services into a runnable search
// runtime. It is the composition root shared by the CLI, the TUI, and
// the MCP server.
package app

import (
	"context"
	"fmt"
	"sync"

	configfile "github.com/custodia-labs/sitesearch-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sitesearch-cli/internal/adapters/driven/corpus"
	embeddingollama "github.com/custodia-labs/sitesearch-cli/internal/adapters/driven/embedding/ollama"
	llmollama "github.com/custodia-labs/sitesearch-cli/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/sitesearch-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/sitesearch-cli/internal/core/services"
	"github.com/custodia-labs/sitesearch-cli/internal/logger"
)

// Ensure Runtime implements the driving ports. Surfaces hold the
// runtime itself, so a corpus reload swaps the backing services without
// invalidating their handles.
var (
	_ driving.Initializer      = (*Runtime)(nil)
	_ driving.SearchService    = (*Runtime)(nil)
	_ driving.AssistantService = (*Runtime)(nil)
)

// Runtime owns every long-lived component of a search session: the
// embedded store, the corpus source, the optional model backends, and
// the services over them. One Runtime serves any number of surfaces
// concurrently.
//
// The coordinator lives as long as the runtime so progress and
// completion listeners survive corpus reloads; Reset swaps the store
// underneath it and rewinds its latches.
type Runtime struct {
	cfg         configfile.Config
	source      driven.CorpusSource
	coordinator *services.Coordinator
	embedder    driven.EmbeddingService
	llm         driven.LLMService

	mu        sync.Mutex
	store     *sqlite.Store
	loader    *services.Loader
	search    *services.Search
	assistant *services.Assistant
}

// New builds a runtime from configuration. The store is created eagerly
// so surfaces can search an empty index before initialization; model
// backends are only wired when an Ollama base URL or model is
// configured, and their absence degrades features rather than failing.
func New(cfg configfile.Config) (*Runtime, error) {
	source, err := corpusSource(cfg.Corpus)
	if err != nil {
		return nil, err
	}

	r := &Runtime{cfg: cfg, source: source}
	r.embedder = newEmbedder(cfg.Ollama)
	r.llm = newLLM(cfg.Ollama)
	r.coordinator = services.NewCoordinator(r.bootstrap)

	if err := r.rebuild(); err != nil {
		return nil, err
	}
	return r, nil
}

// corpusSource selects the corpus adapter from configuration. A local
// path wins over a URL.
func corpusSource(cfg configfile.CorpusConfig) (driven.CorpusSource, error) {
	switch {
	case cfg.Path != "":
		return corpus.NewFileSource(cfg.Path), nil
	case cfg.URL != "":
		return corpus.NewHTTPSource(cfg.URL), nil
	default:
		return nil, fmt.Errorf("no corpus configured: set corpus.path or corpus.url")
	}
}

// newEmbedder wires the embedding backend, or nil when unconfigured.
func newEmbedder(cfg configfile.OllamaConfig) driven.EmbeddingService {
	if cfg.BaseURL == "" && cfg.EmbeddingModel == "" {
		return nil
	}
	return embeddingollama.NewEmbeddingService(embeddingollama.Config{
		BaseURL:    cfg.BaseURL,
		Model:      cfg.EmbeddingModel,
		Dimensions: domain.EmbeddingDimensions,
	})
}

// newLLM wires the chat backend, or nil when unconfigured.
func newLLM(cfg configfile.OllamaConfig) driven.LLMService {
	if cfg.BaseURL == "" && cfg.ChatModel == "" {
		return nil
	}
	return llmollama.NewLLMService(llmollama.LLMConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.ChatModel,
	})
}

// rebuild creates a fresh store and the service graph over it.
func (r *Runtime) rebuild() error {
	store, err := sqlite.NewStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.store
	r.store = store
	r.loader = services.NewLoader(store, r.source)
	r.search = services.NewSearch(store, store, store, r.embedder)
	r.assistant = services.NewAssistant(r.search, store, r, r.llm, services.AssistantConfig{
		TopK:          r.cfg.Assistant.TopK,
		MinSelections: r.cfg.Assistant.MinSelections,
		ExcerptLimit:  r.cfg.Assistant.ExcerptLimit,
	})

	if old != nil {
		if err := old.Close(); err != nil {
			logger.Debug("Closing previous store: %v", err)
		}
	}
	return nil
}

// bootstrap is the coordinator's one-time setup: enable vector support
// on the session's store, then load the corpus. It snapshots the
// current store and loader so a reload always targets the latest
// session.
func (r *Runtime) bootstrap(ctx context.Context, progress services.ProgressFunc) error {
	r.mu.Lock()
	store, loader := r.store, r.loader
	r.mu.Unlock()

	if err := store.EnsureVectorSupport(ctx); err != nil {
		return fmt.Errorf("enabling vector support: %w", err)
	}
	return loader.Load(ctx, progress)
}

// Search delegates to the current session's search service.
func (r *Runtime) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	r.mu.Lock()
	search := r.search
	r.mu.Unlock()
	return search.Search(ctx, query, opts)
}

// Snippet delegates to the current session's search service.
func (r *Runtime) Snippet(ctx context.Context, id, query string) (string, bool) {
	r.mu.Lock()
	search := r.search
	r.mu.Unlock()
	return search.Snippet(ctx, id, query)
}

// Ask delegates to the current session's assistant.
func (r *Runtime) Ask(ctx context.Context, query string) <-chan string {
	r.mu.Lock()
	assistant := r.assistant
	r.mu.Unlock()
	return assistant.Ask(ctx, query)
}

// Watcher returns a corpus file watcher, or nil when the configuration
// does not ask for one. The watcher resets and restarts this runtime on
// corpus changes.
func (r *Runtime) Watcher() (*corpus.Watcher, error) {
	if !r.cfg.Corpus.Watch || r.cfg.Corpus.Path == "" {
		return nil, nil
	}
	return corpus.NewWatcher(r.cfg.Corpus.Path, r)
}

// EmbedderConfigured reports whether semantic retrieval is wired.
func (r *Runtime) EmbedderConfigured() bool {
	return r.embedder != nil
}

// ModelState probes the chat backend.
func (r *Runtime) ModelState(ctx context.Context) domain.ModelState {
	if r.llm == nil {
		return domain.ModelUnavailable
	}
	return r.llm.Probe(ctx)
}

// Start begins initialization.
func (r *Runtime) Start(ctx context.Context) {
	r.coordinator.Start(ctx)
}

// Status returns the current lifecycle snapshot.
func (r *Runtime) Status() domain.InitStatus {
	return r.coordinator.Status()
}

// RegisterProgressListener delegates to the coordinator.
func (r *Runtime) RegisterProgressListener(id string, fn driving.ProgressListener) string {
	return r.coordinator.RegisterProgressListener(id, fn)
}

// UnregisterProgressListener delegates to the coordinator.
func (r *Runtime) UnregisterProgressListener(id string) {
	r.coordinator.UnregisterProgressListener(id)
}

// AddCompletionListener delegates to the coordinator.
func (r *Runtime) AddCompletionListener(fn driving.CompletionListener) func() {
	return r.coordinator.AddCompletionListener(fn)
}

// Reset discards the session's store and rebuilds the service graph
// over a fresh one, so the next Start reloads the corpus from scratch.
// Listener registrations survive because the coordinator is reused.
func (r *Runtime) Reset() {
	if err := r.rebuild(); err != nil {
		// Keep the previous session alive rather than leaving a surface
		// with no store at all.
		logger.Warn("Reset failed, keeping current index: %v", err)
		return
	}
	r.coordinator.Reset()
}

// Close releases every backend owned by the runtime.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			firstErr = err
		}
		r.store = nil
	}
	if r.embedder != nil {
		if err := r.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.llm != nil {
		if err := r.llm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
