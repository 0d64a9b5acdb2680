package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

// writeCorpusFile writes JSON corpus content to a temp file.
func writeCorpusFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search-data.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFileSource_Fetch(t *testing.T) {
	path := writeCorpusFile(t, `[
		{"id": "hello", "title": "Hello", "path": "/hello", "content": "Hi there", "date": "2024-03-01"},
		{"id": "about", "title": "About", "path": "/about", "content": "About the site"}
	]`)

	source := NewFileSource(path)
	assert.Equal(t, path, source.Location())

	docs, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "hello", docs[0].ID)
	require.NotNil(t, docs[0].Date)
	assert.Equal(t, "2024-03-01", *docs[0].Date)
	assert.Nil(t, docs[1].Date)
}

func TestFileSource_MissingFile(t *testing.T) {
	source := NewFileSource(filepath.Join(t.TempDir(), "nope.json"))

	_, err := source.Fetch(context.Background())
	assert.ErrorIs(t, err, domain.ErrCorpusFetchFailed)
}

func TestFileSource_MalformedJSON(t *testing.T) {
	path := writeCorpusFile(t, `{"not": "an array"`)

	_, err := NewFileSource(path).Fetch(context.Background())
	assert.ErrorIs(t, err, domain.ErrCorpusFetchFailed)
}

func TestFileSource_CancelledContext(t *testing.T) {
	path := writeCorpusFile(t, `[]`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSource(path).Fetch(ctx)
	assert.ErrorIs(t, err, domain.ErrCorpusFetchFailed)
}

func TestDecodeCorpus_DropsWrongWidthEmbeddings(t *testing.T) {
	good := make([]string, domain.EmbeddingDimensions)
	for i := range good {
		good[i] = "0.1"
	}

	content := fmt.Sprintf(`[
		{"id": "good", "title": "Good", "embedding": [%s]},
		{"id": "bad", "title": "Bad", "embedding": [0.1, 0.2]}
	]`, strings.Join(good, ","))

	docs, err := decodeCorpus([]byte(content))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Len(t, docs[0].Embedding, domain.EmbeddingDimensions)
	assert.Nil(t, docs[1].Embedding, "wrong-width embedding must be dropped, text kept")
	assert.Equal(t, "Bad", docs[1].Title)
}
