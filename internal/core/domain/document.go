package domain

// EmbeddingDimensions is the fixed width of document and query vectors.
// The corpus build pipeline and the embedding model must agree on this.
const EmbeddingDimensions = 384

// Document represents a single corpus entry, one page or post of the site.
// Content is plain text with HTML already stripped at corpus-build time.
type Document struct {
	// ID is the unique, stable content slug.
	ID string `json:"id"`

	// Title is the human-readable title.
	Title string `json:"title"`

	// Path is the site-relative URL of the page.
	Path string `json:"path"`

	// Content is the full plain-text body used for lexical indexing.
	Content string `json:"content"`

	// Date is an optional ISO-8601 date string. Documents without a date
	// sort after dated ones.
	Date *string `json:"date,omitempty"`

	// Excerpt is an optional short description, used as fallback display
	// text when no match snippet exists.
	Excerpt string `json:"excerpt,omitempty"`

	// Embedding is the optional fixed-width vector representation.
	// Absent until an offline embedding pass has populated the corpus.
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the document carries a usable vector.
func (d *Document) HasEmbedding() bool {
	return len(d.Embedding) == EmbeddingDimensions
}
