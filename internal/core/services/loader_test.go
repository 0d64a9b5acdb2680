package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

func corpusDocs(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{
			ID:      string(rune('a' + i%26)) + "-" + string(rune('0'+i/26)),
			Title:   "Doc",
			Content: "content",
		}
	}
	return docs
}

func TestLoader_LoadsAllDocuments(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{docs: corpusDocs(5)}
	loader := NewLoader(store, source)

	var progressCalls [][2]int
	err := loader.Load(context.Background(), func(loaded, total int) {
		progressCalls = append(progressCalls, [2]int{loaded, total})
	})
	require.NoError(t, err)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	require.NotEmpty(t, progressCalls)
	last := progressCalls[len(progressCalls)-1]
	assert.Equal(t, [2]int{5, 5}, last)
}

func TestLoader_SkipsWhenAlreadyLoaded(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.UpsertDocuments(context.Background(), corpusDocs(2)))
	callsBefore := store.upsertCall

	loader := NewLoader(store, &fakeSource{docs: corpusDocs(5)})
	require.NoError(t, loader.Load(context.Background(), nil))

	assert.Equal(t, callsBefore, store.upsertCall)
}

func TestLoader_ReturnsFetchError(t *testing.T) {
	fetchErr := errors.New("network down")
	loader := NewLoader(newFakeStore(), &fakeSource{err: fetchErr})

	err := loader.Load(context.Background(), nil)
	assert.ErrorIs(t, err, fetchErr)
}

func TestLoader_FiltersInvalidRows(t *testing.T) {
	store := newFakeStore()
	docs := []domain.Document{
		{ID: "ok", Title: "Valid"},
		{ID: "", Title: "Missing ID"},
	}
	loader := NewLoader(store, &fakeSource{docs: docs})

	require.NoError(t, loader.Load(context.Background(), nil))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoader_BatchInsertFailureIsNotFatal(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("disk full")
	loader := NewLoader(store, &fakeSource{docs: corpusDocs(3)})

	assert.NoError(t, loader.Load(context.Background(), nil))
}

func TestLoader_BatchesLargeCorpus(t *testing.T) {
	store := newFakeStore()
	loader := NewLoader(store, &fakeSource{docs: corpusDocs(250)})

	var progressCalls int
	require.NoError(t, loader.Load(context.Background(), func(_, total int) {
		progressCalls++
		assert.Equal(t, 250, total)
	}))

	// 250 documents in batches of 100 -> 3 progress reports.
	assert.Equal(t, 3, progressCalls)
}
