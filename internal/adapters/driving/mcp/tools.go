package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

// indexPollInterval is how often tool handlers re-check index state
// while initialization runs.
const indexPollInterval = 100 * time.Millisecond

// errIndexFailed reports that corpus loading did not complete.
var errIndexFailed = errors.New("index initialization failed")

// SearchInput is the input schema for the site_search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query to find articles"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Hybrid bool   `json:"hybrid,omitempty" jsonschema:"combine keyword and semantic ranking when an embedding model is available"`
}

// SearchOutput is the output schema for the site_search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Date    string  `json:"date,omitempty"`
	Excerpt string  `json:"excerpt,omitempty"`
	Score   float64 `json:"score"`
}

// SnippetInput is the input schema for the site_snippet tool.
type SnippetInput struct {
	ID    string `json:"id" jsonschema:"the document id from a search result"`
	Query string `json:"query" jsonschema:"the query whose terms are highlighted in the excerpt"`
}

// SnippetOutput is the output schema for the site_snippet tool.
type SnippetOutput struct {
	Snippet string `json:"snippet"`
	Found   bool   `json:"found"`
}

// AskInput is the input schema for the ask_site tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"a question to answer from the site's articles"`
}

// AskOutput is the output schema for the ask_site tool.
type AskOutput struct {
	Answer string `json:"answer"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "site_search",
		Description: "Search the site's articles",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "site_snippet",
		Description: "Get a highlighted excerpt from an article",
	}, s.handleSnippet)

	if s.ports.Assistant != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask_site",
			Description: "Answer a question grounded in the site's articles",
		}, s.handleAsk)
	}
}

// awaitIndex blocks until the index is loaded, starting initialization
// if needed.
func (s *Server) awaitIndex(ctx context.Context) error {
	if s.ports.Init.Status().IsInitialized {
		return nil
	}

	s.ports.Init.Start(ctx)

	ticker := time.NewTicker(indexPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status := s.ports.Init.Status()
			if status.IsInitialized {
				return nil
			}
			if !status.IsInitializing {
				return errIndexFailed
			}
		}
	}
}

// handleSearch handles the site_search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if err := s.awaitIndex(ctx); err != nil {
		return nil, SearchOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := domain.SearchOptions{Limit: limit, Hybrid: input.Hybrid}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		out := SearchResultOutput{
			ID:      results[i].ID,
			Title:   results[i].Title,
			Path:    results[i].Path,
			Excerpt: results[i].Excerpt,
			Score:   results[i].Score,
		}
		if results[i].Date != nil {
			out.Date = *results[i].Date
		}
		output.Results[i] = out
	}

	return nil, output, nil
}

// handleSnippet handles the site_snippet tool invocation.
func (s *Server) handleSnippet(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SnippetInput,
) (*mcp.CallToolResult, SnippetOutput, error) {
	if err := s.awaitIndex(ctx); err != nil {
		return nil, SnippetOutput{}, err
	}

	snippet, found := s.ports.Search.Snippet(ctx, input.ID, input.Query)
	return nil, SnippetOutput{Snippet: snippet, Found: found}, nil
}

// handleAsk handles the ask_site tool invocation. The assistant's
// stream is collected into a single response; MCP tool results are not
// incremental.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	var sb strings.Builder
	for chunk := range s.ports.Assistant.Ask(ctx, input.Question) {
		sb.WriteString(chunk)
	}
	return nil, AskOutput{Answer: sb.String()}, nil
}
