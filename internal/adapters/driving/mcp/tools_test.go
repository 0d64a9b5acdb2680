package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driving"
)

// mockSearch is a canned SearchService.
type mockSearch struct {
	results []domain.SearchResult
	snippet string
	found   bool
	err     error
}

func (m *mockSearch) Search(context.Context, string, domain.SearchOptions) ([]domain.SearchResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockSearch) Snippet(context.Context, string, string) (string, bool) {
	return m.snippet, m.found
}

// mockInit reports an already-initialized index.
type mockInit struct {
	status domain.InitStatus
}

func (m *mockInit) Start(context.Context)             {}
func (m *mockInit) Status() domain.InitStatus         { return m.status }
func (m *mockInit) Reset()                            {}
func (m *mockInit) UnregisterProgressListener(string) {}

func (m *mockInit) RegisterProgressListener(id string, _ driving.ProgressListener) string {
	return id
}

func (m *mockInit) AddCompletionListener(driving.CompletionListener) func() {
	return func() {}
}

// mockAssistant streams fixed chunks.
type mockAssistant struct {
	chunks []string
}

func (m *mockAssistant) Ask(context.Context, string) <-chan string {
	out := make(chan string, len(m.chunks))
	for _, c := range m.chunks {
		out <- c
	}
	close(out)
	return out
}

func readyInit() *mockInit {
	return &mockInit{status: domain.InitStatus{IsInitialized: true, IsDataLoaded: true}}
}

func TestNewServer_RequiresSearch(t *testing.T) {
	_, err := NewServer(&Ports{Init: readyInit()})
	assert.ErrorIs(t, err, ErrMissingSearchService)
}

func TestNewServer_RequiresInit(t *testing.T) {
	_, err := NewServer(&Ports{Search: &mockSearch{}})
	assert.ErrorIs(t, err, ErrMissingInitializer)
}

func TestHandleSearch(t *testing.T) {
	date := "2024-03-01"
	search := &mockSearch{results: []domain.SearchResult{
		{ID: "hello", Title: "Hello", Path: "/hello", Date: &date, Score: 1.5},
		{ID: "about", Title: "About", Path: "/about", Score: 0.5},
	}}
	server, err := NewServer(&Ports{Search: search, Init: readyInit()})
	require.NoError(t, err)

	_, out, err := server.handleSearch(context.Background(), nil, SearchInput{Query: "hello"})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "hello", out.Results[0].ID)
	assert.Equal(t, "2024-03-01", out.Results[0].Date)
	assert.Empty(t, out.Results[1].Date)
}

func TestHandleSearch_Error(t *testing.T) {
	search := &mockSearch{err: errors.New("store gone")}
	server, err := NewServer(&Ports{Search: search, Init: readyInit()})
	require.NoError(t, err)

	_, _, err = server.handleSearch(context.Background(), nil, SearchInput{Query: "q"})
	assert.Error(t, err)
}

func TestHandleSearch_IndexFailure(t *testing.T) {
	// Neither initialized nor initializing means the load failed.
	server, err := NewServer(&Ports{Search: &mockSearch{}, Init: &mockInit{}})
	require.NoError(t, err)

	_, _, err = server.handleSearch(context.Background(), nil, SearchInput{Query: "q"})
	assert.ErrorIs(t, err, errIndexFailed)
}

func TestHandleSnippet(t *testing.T) {
	search := &mockSearch{snippet: "a <mark>match</mark> here", found: true}
	server, err := NewServer(&Ports{Search: search, Init: readyInit()})
	require.NoError(t, err)

	_, out, err := server.handleSnippet(context.Background(), nil, SnippetInput{ID: "doc", Query: "match"})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Contains(t, out.Snippet, "<mark>match</mark>")
}

func TestHandleSnippet_NotFound(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearch{}, Init: readyInit()})
	require.NoError(t, err)

	_, out, err := server.handleSnippet(context.Background(), nil, SnippetInput{ID: "nope", Query: "q"})
	require.NoError(t, err)
	assert.False(t, out.Found)
}

func TestHandleAsk_CollectsStream(t *testing.T) {
	assistant := &mockAssistant{chunks: []string{"The answer.", "\n\n## 参考記事\n- [A](/a)\n"}}
	server, err := NewServer(&Ports{Search: &mockSearch{}, Init: readyInit(), Assistant: assistant})
	require.NoError(t, err)

	_, out, err := server.handleAsk(context.Background(), nil, AskInput{Question: "?"})
	require.NoError(t, err)
	assert.Contains(t, out.Answer, "The answer.")
	assert.Contains(t, out.Answer, "参考記事")
}
