package domain

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// Hybrid enables combined keyword + vector scoring. Requires an
	// embedding service; degrades to keyword-only when unavailable.
	Hybrid bool
}

// SearchResult represents a single search hit. Results are derived per
// query and discarded after render, never persisted.
type SearchResult struct {
	// ID is the matched document's slug.
	ID string `json:"id"`

	// Title is the document title.
	Title string `json:"title"`

	// Path is the site-relative URL.
	Path string `json:"path"`

	// Date is the optional ISO-8601 publication date.
	Date *string `json:"date,omitempty"`

	// Excerpt is the fallback display text.
	Excerpt string `json:"excerpt,omitempty"`

	// Score is the relevance score. For keyword hits this is a BM25-derived
	// rank, for vector hits a cosine similarity in [0, 1], and for hybrid
	// hits the weighted combination of both.
	Score float64 `json:"score"`
}
