package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

func TestSearch_EmptyQueryReturnsNoResults(t *testing.T) {
	svc := NewSearch(newFakeStore(), &fakeEngine{}, &fakeVector{}, nil)

	results, err := svc.Search(context.Background(), "   ", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_KeywordPath(t *testing.T) {
	engine := &fakeEngine{results: []domain.SearchResult{
		{ID: "a", Title: "A", Score: 2.0},
	}}
	svc := NewSearch(newFakeStore(), engine, &fakeVector{}, nil)

	results, err := svc.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestSearch_KeywordError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("boom")}
	svc := NewSearch(newFakeStore(), engine, &fakeVector{}, nil)

	_, err := svc.Search(context.Background(), "query", domain.SearchOptions{})
	assert.Error(t, err)
}

func TestSearch_HybridRequestedWithoutEmbedderDegrades(t *testing.T) {
	engine := &fakeEngine{results: []domain.SearchResult{{ID: "a"}}}
	svc := NewSearch(newFakeStore(), engine, &fakeVector{}, nil)

	results, err := svc.Search(context.Background(), "query", domain.SearchOptions{Hybrid: true})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_HybridEmbedFailureDegradesToKeyword(t *testing.T) {
	engine := &fakeEngine{results: []domain.SearchResult{{ID: "a"}}}
	embedder := &fakeEmbedder{err: errors.New("ollama down")}
	svc := NewSearch(newFakeStore(), engine, &fakeVector{}, embedder)

	results, err := svc.Search(context.Background(), "query", domain.SearchOptions{Hybrid: true})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchByVector_NoIndexMeansEmpty(t *testing.T) {
	vector := &fakeVector{has: false}
	svc := NewSearch(newFakeStore(), &fakeEngine{}, vector, nil)

	results, err := svc.SearchByVector(context.Background(), []float32{1}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridSearch_MergesBothSides(t *testing.T) {
	engine := &fakeEngine{results: []domain.SearchResult{
		{ID: "both", Title: "Both", Score: 4.0},
		{ID: "lex-only", Title: "Lexical", Score: 2.0},
	}}
	vector := &fakeVector{has: true, results: []domain.SearchResult{
		{ID: "both", Title: "Both", Score: 0.9},
		{ID: "vec-only", Title: "Vector", Score: 0.8},
	}}
	svc := NewSearch(newFakeStore(), engine, vector, nil)

	results, err := svc.HybridSearch(context.Background(), "q", []float32{1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// both: 0.5*(4/4) + 0.5*0.9 = 0.95
	assert.Equal(t, "both", results[0].ID)
	assert.InDelta(t, 0.95, results[0].Score, 1e-9)

	// vec-only: 0.5*0.8 = 0.40 beats lex-only: 0.5*(2/4) = 0.25
	assert.Equal(t, "vec-only", results[1].ID)
	assert.Equal(t, "lex-only", results[2].ID)
}

func TestHybridSearch_FallsBackToSubstringOnError(t *testing.T) {
	engine := &fakeEngine{
		err:       errors.New("fts broken"),
		substring: []domain.SearchResult{{ID: "fallback"}},
	}
	vector := &fakeVector{has: true}
	svc := NewSearch(newFakeStore(), engine, vector, nil)

	results, err := svc.HybridSearch(context.Background(), "q", []float32{1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fallback", results[0].ID)
	assert.Equal(t, 1, engine.substrHits)
}

func TestHybridSearch_AppliesLimit(t *testing.T) {
	var lexical []domain.SearchResult
	for _, id := range []string{"a", "b", "c", "d"} {
		lexical = append(lexical, domain.SearchResult{ID: id, Score: 1.0})
	}
	engine := &fakeEngine{results: lexical}
	svc := NewSearch(newFakeStore(), engine, &fakeVector{has: false}, nil)

	results, err := svc.HybridSearch(context.Background(), "q", []float32{1}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

// ==================== Snippet Tests ====================

func snippetStore(content string) *fakeStore {
	store := newFakeStore()
	store.docs["doc"] = domain.Document{ID: "doc", Title: "Doc", Content: content}
	return store
}

func TestSnippet_HighlightsMatch(t *testing.T) {
	store := snippetStore("An introduction to generics in Go, with examples.")
	svc := NewSearch(store, &fakeEngine{}, &fakeVector{}, nil)

	snippet, ok := svc.Snippet(context.Background(), "doc", "generics")
	require.True(t, ok)
	assert.Contains(t, snippet, "<mark>generics</mark>")
}

func TestSnippet_CaseInsensitiveHighlight(t *testing.T) {
	store := snippetStore("Generics are here. GENERICS everywhere.")
	svc := NewSearch(store, &fakeEngine{}, &fakeVector{}, nil)

	snippet, ok := svc.Snippet(context.Background(), "doc", "generics")
	require.True(t, ok)
	assert.Contains(t, snippet, "<mark>Generics</mark>")
	assert.Contains(t, snippet, "<mark>GENERICS</mark>")
}

func TestSnippet_WindowsLongContent(t *testing.T) {
	content := strings.Repeat("x", 500) + " needle " + strings.Repeat("y", 500)
	store := snippetStore(content)
	svc := NewSearch(store, &fakeEngine{}, &fakeVector{}, nil)

	snippet, ok := svc.Snippet(context.Background(), "doc", "needle")
	require.True(t, ok)
	assert.Contains(t, snippet, "<mark>needle</mark>")
	assert.True(t, strings.HasPrefix(snippet, "... "))
	assert.True(t, strings.HasSuffix(snippet, " ..."))
	// Window plus affixes stays well under the full content length.
	assert.Less(t, len(snippet), 300)
}

func TestSnippet_NoTokenMatchStartsAtBeginning(t *testing.T) {
	store := snippetStore("Short content without the term.")
	svc := NewSearch(store, &fakeEngine{}, &fakeVector{}, nil)

	snippet, ok := svc.Snippet(context.Background(), "doc", "absent")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(snippet, "Short content"))
}

func TestSnippet_UnknownDocument(t *testing.T) {
	svc := NewSearch(newFakeStore(), &fakeEngine{}, &fakeVector{}, nil)

	_, ok := svc.Snippet(context.Background(), "missing", "query")
	assert.False(t, ok)
}

func TestSnippet_EmptyContent(t *testing.T) {
	store := snippetStore("")
	svc := NewSearch(store, &fakeEngine{}, &fakeVector{}, nil)

	_, ok := svc.Snippet(context.Background(), "doc", "query")
	assert.False(t, ok)
}

func TestSnippet_MultibyteContentStaysValidUTF8(t *testing.T) {
	// The match sits deep enough that both window edges land inside
	// multibyte runes unless they are snapped to boundaries.
	content := strings.Repeat("あ", 40) + "テキスト" + strings.Repeat("い", 100)
	store := snippetStore(content)
	svc := NewSearch(store, &fakeEngine{}, &fakeVector{}, nil)

	snippet, ok := svc.Snippet(context.Background(), "doc", "テキスト")
	require.True(t, ok)
	assert.True(t, utf8.ValidString(snippet))
	assert.Contains(t, snippet, "<mark>テキスト</mark>")
	assert.True(t, strings.HasPrefix(snippet, "... "))
	assert.True(t, strings.HasSuffix(snippet, " ..."))
}

func TestSnippet_RegexMetacharactersAreLiteral(t *testing.T) {
	store := snippetStore("Pricing is $5 (discounted) today.")
	svc := NewSearch(store, &fakeEngine{}, &fakeVector{}, nil)

	snippet, ok := svc.Snippet(context.Background(), "doc", "(discounted)")
	require.True(t, ok)
	assert.Contains(t, snippet, "<mark>(discounted)</mark>")
}

// ==================== Embedding Tests ====================

func TestEmbed_NormalizesVector(t *testing.T) {
	vec := make([]float32, domain.EmbeddingDimensions)
	vec[0] = 3
	vec[1] = 4
	svc := NewSearch(newFakeStore(), &fakeEngine{}, &fakeVector{}, &fakeEmbedder{vec: vec})

	out := svc.Embed(context.Background(), "text")
	require.NotNil(t, out)
	assert.InDelta(t, 0.6, float64(out[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(out[1]), 1e-6)
}

func TestEmbed_WrongDimensionsReturnsNil(t *testing.T) {
	svc := NewSearch(newFakeStore(), &fakeEngine{}, &fakeVector{}, &fakeEmbedder{vec: []float32{1, 2}})

	assert.Nil(t, svc.Embed(context.Background(), "text"))
}

func TestEmbed_ErrorReturnsNil(t *testing.T) {
	svc := NewSearch(newFakeStore(), &fakeEngine{}, &fakeVector{}, &fakeEmbedder{err: errors.New("down")})

	assert.Nil(t, svc.Embed(context.Background(), "text"))
}

func TestEmbed_TruncatesOnRuneBoundary(t *testing.T) {
	vec := make([]float32, domain.EmbeddingDimensions)
	vec[0] = 1
	embedder := &fakeEmbedder{vec: vec}
	svc := NewSearch(newFakeStore(), &fakeEngine{}, &fakeVector{}, embedder)

	out := svc.Embed(context.Background(), strings.Repeat("語", 200))
	require.NotNil(t, out)
	assert.LessOrEqual(t, len(embedder.lastInput), embedInputLimit)
	assert.True(t, utf8.ValidString(embedder.lastInput))
}

func TestEmbed_NoEmbedderReturnsNil(t *testing.T) {
	svc := NewSearch(newFakeStore(), &fakeEngine{}, &fakeVector{}, nil)

	assert.Nil(t, svc.Embed(context.Background(), "text"))
}
