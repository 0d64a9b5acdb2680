package services

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/sitesearch-cli/internal/logger"
)

// Ensure Search implements the interface.
var _ driving.SearchService = (*Search)(nil)

const (
	// defaultSearchLimit applies when the caller passes no limit.
	defaultSearchLimit = 20

	// internalSearchLimit is requested from each retrieval path before
	// hybrid merging, so either side can fill the final page alone.
	internalSearchLimit = 100

	// embedInputLimit truncates query text before encoding. Longer input
	// adds latency without improving a short-query embedding.
	embedInputLimit = 512

	// snippetContextBefore is how far the snippet window starts before
	// the first matched token.
	snippetContextBefore = 50

	// snippetLength is the maximum snippet window size.
	snippetLength = 200

	// hybridLexicalWeight and hybridVectorWeight combine the two scores.
	// A document missing from one side contributes 0 for that side.
	hybridLexicalWeight = 0.5
	hybridVectorWeight  = 0.5
)

// Search provides lexical, vector, and hybrid retrieval over the
// embedded corpus index.
type Search struct {
	store    driven.DocumentStore
	engine   driven.SearchEngine
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
}

// NewSearch creates a search service. The embedder is optional; when
// nil, vector and hybrid search degrade to keyword-only.
func NewSearch(
	store driven.DocumentStore,
	engine driven.SearchEngine,
	vector driven.VectorIndex,
	embedder driven.EmbeddingService,
) *Search {
	return &Search{
		store:    store,
		engine:   engine,
		vector:   vector,
		embedder: embedder,
	}
}

// Search performs keyword search, or hybrid search when requested and
// an embedding can be computed. Retrieval failures degrade; the method
// only errors when every path is exhausted.
func (s *Search) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	if opts.Hybrid && s.embedder != nil {
		if embedding := s.Embed(ctx, query); embedding != nil {
			return s.HybridSearch(ctx, query, embedding, limit)
		}
		logger.Warn("Query embedding unavailable, degrading to keyword search")
	}

	results, err := s.engine.Search(ctx, query, limit)
	if err != nil {
		logger.Warn("Keyword search failed: %v", err)
		return []domain.SearchResult{}, err
	}

	logger.Info("Keyword results: %d", len(results))
	return results, nil
}

// SearchByVector returns the documents nearest to the query embedding.
// An empty result distinguishes "no semantic index yet" from "no
// matches". Neither is an error.
func (s *Search) SearchByVector(
	ctx context.Context, embedding []float32, limit int,
) ([]domain.SearchResult, error) {
	has, err := s.vector.HasVectors(ctx)
	if err != nil {
		return nil, err
	}
	if !has {
		logger.Debug("No document embeddings present, vector search skipped")
		return []domain.SearchResult{}, nil
	}

	return s.vector.Nearest(ctx, embedding, limit)
}

// HybridSearch scores documents by both retrieval paths independently
// and combines them. A document need appear in only one side; the
// missing side contributes 0. On any query failure the whole search
// falls back to a plain substring match.
func (s *Search) HybridSearch(
	ctx context.Context, query string, embedding []float32, limit int,
) ([]domain.SearchResult, error) {
	lexical, lexErr := s.engine.Search(ctx, query, internalSearchLimit)
	vector, vecErr := s.SearchByVector(ctx, embedding, internalSearchLimit)

	if lexErr != nil || vecErr != nil {
		logger.Warn("Hybrid search degraded (lexical=%v, vector=%v), using substring fallback",
			lexErr, vecErr)
		return s.engine.SearchSubstring(ctx, query, limit)
	}

	merged := mergeHybrid(lexical, vector)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	logger.Debug("Hybrid search: %d lexical + %d vector -> %d merged",
		len(lexical), len(vector), len(merged))
	return merged, nil
}

// mergeHybrid performs the outer-join combination of lexical and vector
// hits. Lexical ranks are normalized against the best lexical score so
// both sides live on a 0-1 scale before weighting.
func mergeHybrid(lexical, vector []domain.SearchResult) []domain.SearchResult {
	var maxLexical float64
	for i := range lexical {
		if lexical[i].Score > maxLexical {
			maxLexical = lexical[i].Score
		}
	}

	combined := make(map[string]*domain.SearchResult)
	scores := make(map[string]float64)

	for i := range lexical {
		r := lexical[i]
		norm := 0.0
		if maxLexical > 0 {
			norm = r.Score / maxLexical
		}
		scores[r.ID] += hybridLexicalWeight * norm
		combined[r.ID] = &r
	}

	for i := range vector {
		r := vector[i]
		scores[r.ID] += hybridVectorWeight * r.Score
		if _, ok := combined[r.ID]; !ok {
			combined[r.ID] = &r
		}
	}

	results := make([]domain.SearchResult, 0, len(combined))
	for id, r := range combined {
		merged := *r
		merged.Score = scores[id]
		results = append(results, merged)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results
}

// Snippet extracts a context window from the document's content around
// the first query-token occurrence and wraps every token occurrence in
// a highlight marker. Returns false when the document does not exist.
func (s *Search) Snippet(ctx context.Context, id, query string) (string, bool) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		logger.Debug("Snippet: document %q: %v", id, err)
		return "", false
	}

	content := doc.Content
	if content == "" {
		return "", false
	}

	tokens := strings.Fields(strings.TrimSpace(query))
	lowerContent := strings.ToLower(content)

	// Window starts a little before the first occurrence of any token.
	matchIdx := -1
	for _, tok := range tokens {
		if idx := strings.Index(lowerContent, strings.ToLower(tok)); idx >= 0 {
			if matchIdx < 0 || idx < matchIdx {
				matchIdx = idx
			}
		}
	}

	start := 0
	if matchIdx > snippetContextBefore {
		start = runeStart(content, matchIdx-snippetContextBefore)
	}

	end := start + snippetLength
	if end >= len(content) {
		end = len(content)
	} else {
		end = runeStart(content, end)
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = "... " + snippet
	}
	if end < len(content) {
		snippet += " ..."
	}

	return highlightTokens(snippet, tokens), true
}

// runeStart backs i off to the nearest rune boundary in s so slicing
// never splits a multibyte character.
func runeStart(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// highlightTokens wraps every case-insensitive token occurrence in
// <mark> tags. Tokens that fail to compile as a pattern are skipped for
// highlighting rather than failing the snippet.
func highlightTokens(snippet string, tokens []string) string {
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(tok))
		if err != nil {
			logger.Debug("Highlight: skipping token %q: %v", tok, err)
			continue
		}
		snippet = re.ReplaceAllString(snippet, "<mark>$0</mark>")
	}
	return snippet
}

// Embed computes a normalized query embedding. Returns nil, never an
// error, on any failure so callers degrade to lexical-only retrieval.
func (s *Search) Embed(ctx context.Context, text string) []float32 {
	if s.embedder == nil {
		return nil
	}

	if len(text) > embedInputLimit {
		text = text[:runeStart(text, embedInputLimit)]
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("Embedding failed: %v", err)
		return nil
	}
	if len(vec) != domain.EmbeddingDimensions {
		logger.Warn("Embedding has %d dimensions, expected %d", len(vec), domain.EmbeddingDimensions)
		return nil
	}

	return l2Normalize(vec)
}

// l2Normalize scales a vector to unit length so cosine comparisons are
// well-defined. Zero vectors are returned unchanged.
func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}

	norm := float32(1.0 / math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v * norm
	}
	return out
}
