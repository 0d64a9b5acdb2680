package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/sitesearch-cli/internal/logger"
)

// Ensure Assistant implements the interface.
var _ driving.AssistantService = (*Assistant)(nil)

// AssistantConfig tunes the retrieval and filtering stages. Zero values
// fall back to the defaults below.
type AssistantConfig struct {
	// TopK is the number of nearest documents retrieved per question.
	TopK int

	// SkipFilterAt keeps every candidate without an LLM relevance pass
	// when the retrieval returns at most this many.
	SkipFilterAt int

	// FilterBatchAt is the candidate count above which the relevance
	// pass splits into batches.
	FilterBatchAt int

	// FilterBatchSize is the number of candidates judged per LLM call
	// when batching.
	FilterBatchSize int

	// MinSelections is the smallest acceptable filter outcome per batch.
	// Fewer selections than this discards the judgement and keeps the
	// batch's top candidates by retrieval score.
	MinSelections int

	// ExcerptLimit truncates each document's content placed in the
	// relevance and answering prompts.
	ExcerptLimit int
}

// DefaultAssistantConfig returns the standard tuning.
func DefaultAssistantConfig() AssistantConfig {
	return AssistantConfig{
		TopK:            10,
		SkipFilterAt:    5,
		FilterBatchAt:   10,
		FilterBatchSize: 8,
		MinSelections:   3,
		ExcerptLimit:    1500,
	}
}

// fallbackKeep is how many top candidates survive when the relevance
// filter selects too few.
const fallbackKeep = 5

// readyPollInterval is how often Ask re-checks initialization state
// while waiting for the corpus to finish loading.
const readyPollInterval = 100 * time.Millisecond

// referencesHeading opens the source list appended to every answer.
const referencesHeading = "## 参考記事"

// noArticlesMessage is emitted when retrieval yields nothing usable.
const noArticlesMessage = "I could not find any articles related to your question. " +
	"Try rephrasing it, or use the search command to browse the site's articles directly."

// Assistant answers questions about the site by retrieving relevant
// documents, filtering them for relevance, and asking a language model
// to compose a cited answer.
type Assistant struct {
	search *Search
	store  driven.DocumentStore
	init   driving.Initializer
	llm    driven.LLMService
	cfg    AssistantConfig
}

// NewAssistant creates an assistant. The llm may be nil, in which case
// every question is answered with an unavailability message.
func NewAssistant(
	search *Search,
	store driven.DocumentStore,
	init driving.Initializer,
	llm driven.LLMService,
	cfg AssistantConfig,
) *Assistant {
	def := DefaultAssistantConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.SkipFilterAt <= 0 {
		cfg.SkipFilterAt = def.SkipFilterAt
	}
	if cfg.FilterBatchAt <= 0 {
		cfg.FilterBatchAt = def.FilterBatchAt
	}
	if cfg.FilterBatchSize <= 0 {
		cfg.FilterBatchSize = def.FilterBatchSize
	}
	if cfg.MinSelections <= 0 {
		cfg.MinSelections = def.MinSelections
	}
	if cfg.ExcerptLimit <= 0 {
		cfg.ExcerptLimit = def.ExcerptLimit
	}

	return &Assistant{
		search: search,
		store:  store,
		init:   init,
		llm:    llm,
		cfg:    cfg,
	}
}

// Ask runs the full pipeline and streams the answer. The returned
// channel always yields at least one chunk and is closed when the
// answer is complete; failures surface as messages on the channel, not
// as errors.
func (a *Assistant) Ask(ctx context.Context, query string) <-chan string {
	out := make(chan string, 1)

	go func() {
		defer close(out)
		a.answer(ctx, strings.TrimSpace(query), out)
	}()

	return out
}

// answer runs the pipeline stages in order, emitting a terminal message
// at the first stage that cannot proceed.
func (a *Assistant) answer(ctx context.Context, query string, out chan<- string) {
	logger.Section("Assistant Pipeline")
	logger.Debug("Question: %q", query)

	if query == "" {
		out <- "Please ask a question."
		return
	}

	if a.llm == nil {
		out <- "The assistant is not configured. Set an Ollama model in the config to enable it."
		return
	}

	if state := a.llm.Probe(ctx); state != domain.ModelReady {
		logger.Warn("Model %s not ready: %s", a.llm.ModelName(), state)
		switch state {
		case domain.ModelNeedsDownload:
			out <- fmt.Sprintf("The model %q is not downloaded yet. Run `ollama pull %s` and try again.",
				a.llm.ModelName(), a.llm.ModelName())
		default:
			out <- "The language model is unavailable. Check that Ollama is running and try again."
		}
		return
	}

	if err := a.waitForReady(ctx); err != nil {
		out <- "The search index is still loading. Please try again in a moment."
		return
	}

	candidates, err := a.retrieve(ctx, query)
	if err != nil {
		logger.Warn("Retrieval failed: %v", err)
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			out <- noArticlesMessage
			return
		}
		out <- "Searching the site failed. Please try again."
		return
	}
	if len(candidates) == 0 {
		out <- noArticlesMessage
		return
	}

	selected := a.filterRelevant(ctx, query, candidates)
	logger.Info("Answering from %d of %d retrieved documents", len(selected), len(candidates))

	prompt := a.buildPrompt(query, selected)
	a.respond(ctx, prompt, selected, out)
}

// waitForReady blocks until initialization completes, kicking it off if
// nobody has. Polling keeps this free of listener lifecycle management;
// the interval is far below human-visible latency.
func (a *Assistant) waitForReady(ctx context.Context) error {
	if a.init.Status().IsInitialized {
		return nil
	}

	a.init.Start(ctx)

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status := a.init.Status()
			if status.IsInitialized {
				return nil
			}
			if !status.IsInitializing {
				return domain.ErrStoreUnavailable
			}
		}
	}
}

// retrieve embeds the question and returns the nearest documents with
// their content loaded for prompting.
func (a *Assistant) retrieve(ctx context.Context, query string) ([]domain.Document, error) {
	embedding := a.search.Embed(ctx, query)
	if embedding == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	hits, err := a.search.SearchByVector(ctx, embedding, a.cfg.TopK)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(hits))
	for _, hit := range hits {
		doc, err := a.store.GetDocument(ctx, hit.ID)
		if err != nil {
			logger.Debug("Skipping candidate %q: %v", hit.ID, err)
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// filterRelevant asks the model which candidates actually bear on the
// question. Small candidate sets skip the pass entirely; large ones are
// judged in independent batches whose selections are concatenated.
func (a *Assistant) filterRelevant(
	ctx context.Context, query string, candidates []domain.Document,
) []domain.Document {
	if len(candidates) <= a.cfg.SkipFilterAt {
		logger.Debug("Only %d candidates, skipping relevance filter", len(candidates))
		return candidates
	}

	if len(candidates) <= a.cfg.FilterBatchAt {
		return a.judgeBatch(ctx, query, candidates)
	}

	var selected []domain.Document
	for start := 0; start < len(candidates); start += a.cfg.FilterBatchSize {
		end := start + a.cfg.FilterBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		selected = append(selected, a.judgeBatch(ctx, query, candidates[start:end])...)
	}
	return selected
}

// judgeBatch runs one relevance call over a candidate slice. On any
// model or parse failure the whole batch is kept: dropping documents on
// a flaky judgement loses answers, keeping them only pads the prompt.
// An implausibly small selection falls back to the top candidates of
// the batch, capped to the batch size.
func (a *Assistant) judgeBatch(
	ctx context.Context, query string, batch []domain.Document,
) []domain.Document {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nArticles:\n")
	for i, doc := range batch {
		excerpt := doc.Content
		if excerpt == "" {
			excerpt = doc.Excerpt
		}
		fmt.Fprintf(&sb, "%d. %s\n%s\n\n", i+1, doc.Title, truncate(excerpt, a.cfg.ExcerptLimit))
	}
	sb.WriteString("List the numbers of the articles relevant to the question, ")
	sb.WriteString("comma-separated. Answer with numbers only, or \"none\".")

	resp, err := a.llm.Generate(ctx, sb.String(), driven.GenerateOptions{
		MaxTokens:   64,
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("Relevance judgement failed, keeping batch: %v", err)
		return batch
	}

	indices := parseSelection(resp, len(batch))
	if indices == nil {
		logger.Debug("Unparseable relevance response %q, keeping batch", resp)
		return batch
	}

	kept := make([]domain.Document, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, batch[idx])
	}
	if len(kept) < a.cfg.MinSelections {
		keep := fallbackKeep
		if keep > len(batch) {
			keep = len(batch)
		}
		logger.Debug("Filter kept %d (< %d), keeping top %d of the batch",
			len(kept), a.cfg.MinSelections, keep)
		return batch[:keep]
	}
	return kept
}

// parseSelection extracts 1-based article numbers from a model
// response. Returns an empty slice for an explicit "none" and nil when
// the response contains no usable numbers at all.
func parseSelection(resp string, n int) []int {
	cleaned := strings.TrimSpace(resp)
	if strings.EqualFold(cleaned, "none") {
		return []int{}
	}

	var indices []int
	seen := make(map[int]bool)
	for _, field := range strings.FieldsFunc(cleaned, func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		num, err := strconv.Atoi(field)
		if err != nil || num < 1 || num > n || seen[num] {
			continue
		}
		seen[num] = true
		indices = append(indices, num-1)
	}
	return indices
}

// buildPrompt assembles the grounded answering prompt from the selected
// documents.
func (a *Assistant) buildPrompt(query string, docs []domain.Document) string {
	var sb strings.Builder
	sb.WriteString("You are the assistant for a personal website. ")
	sb.WriteString("Answer the question using only the articles below, ")
	sb.WriteString("citing supporting articles inline with their markdown links. ")
	sb.WriteString("If the articles do not contain the answer, say so. ")
	sb.WriteString("Answer in the language of the question.\n\n")

	for i, doc := range docs {
		content := doc.Content
		if content == "" {
			content = doc.Excerpt
		}
		fmt.Fprintf(&sb, "Article %d: [%s](%s)\n%s\n\n",
			i+1, doc.Title, doc.Path, truncate(content, a.cfg.ExcerptLimit))
	}

	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}

// respond streams the model's answer followed by the references
// section. Adapters that can stream are preferred; otherwise the full
// response is emitted as a single chunk.
func (a *Assistant) respond(
	ctx context.Context, prompt string, docs []domain.Document, out chan<- string,
) {
	opts := driven.GenerateOptions{Temperature: 0.3}

	if streamer, ok := a.llm.(driven.StreamingLLMService); ok {
		stream, err := streamer.GenerateStream(ctx, prompt, opts)
		if err == nil {
			emitted := false
			for chunk := range stream {
				emitted = true
				out <- chunk
			}
			if !emitted {
				out <- "The model returned an empty answer. Please try rephrasing your question."
				return
			}
			out <- a.references(docs)
			return
		}
		logger.Warn("Streaming failed, falling back to single response: %v", err)
	}

	resp, err := a.llm.Generate(ctx, prompt, opts)
	if err != nil {
		logger.Warn("Generation failed: %v", err)
		out <- "Generating an answer failed. Please try again."
		return
	}

	out <- resp
	out <- a.references(docs)
}

// references renders the source list appended to every grounded answer.
func (a *Assistant) references(docs []domain.Document) string {
	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(referencesHeading)
	sb.WriteString("\n")
	for _, doc := range docs {
		fmt.Fprintf(&sb, "- [%s](%s)\n", doc.Title, doc.Path)
	}
	return sb.String()
}

// truncate clips s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	// Trim a partial multi-byte rune at the cut point.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
