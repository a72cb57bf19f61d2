package shelf

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentCacheRoundtrip(t *testing.T) {
	cache, err := OpenDocumentCache(filepath.Join(t.TempDir(), "shelf"), zerolog.Nop())
	require.NoError(t, err)
	defer cache.Close()

	_, ok := cache.Get("https://books.example/algebra.pdf")
	assert.False(t, ok)
	assert.False(t, cache.Has("https://books.example/algebra.pdf"))

	ent := CacheEntry{
		Body:      docPayload,
		Size:      int64(len(docPayload)),
		Hash32:    42,
		FetchedAt: time.Now().Unix(),
		Via:       "proxy:relay",
	}
	require.NoError(t, cache.Put("https://books.example/algebra.pdf", ent))

	got, ok := cache.Get("https://books.example/algebra.pdf")
	require.True(t, ok)
	assert.Equal(t, docPayload, got.Body)
	assert.Equal(t, "proxy:relay", got.Via)
	assert.Equal(t, uint32(42), got.Hash32)

	assert.True(t, cache.Has("https://books.example/algebra.pdf"))
	assert.Equal(t, 1, cache.KeyCount())
	assert.Positive(t, cache.TotalSize())
}

func TestDocumentCachePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shelf")

	cache, err := OpenDocumentCache(dir, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, cache.Put("https://books.example/algebra.pdf", CacheEntry{
		Body: docPayload,
		Size: int64(len(docPayload)),
		Via:  "direct",
	}))
	require.NoError(t, cache.Close())

	cache, err = OpenDocumentCache(dir, zerolog.Nop())
	require.NoError(t, err)
	defer cache.Close()

	// Index rebuilt from the metadata keys.
	assert.Equal(t, 1, cache.KeyCount())
	assert.Equal(t, []string{"https://books.example/algebra.pdf"}, cache.Keys())

	got, ok := cache.Get("https://books.example/algebra.pdf")
	require.True(t, ok)
	assert.Equal(t, docPayload, got.Body)
}

func TestDocumentCacheOverwriteUpdatesSize(t *testing.T) {
	cache, err := OpenDocumentCache(filepath.Join(t.TempDir(), "shelf"), zerolog.Nop())
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Put("u", CacheEntry{Body: make([]byte, 1000)}))
	first := cache.TotalSize()
	require.NoError(t, cache.Put("u", CacheEntry{Body: make([]byte, 100)}))

	assert.Equal(t, 1, cache.KeyCount())
	assert.Less(t, cache.TotalSize(), first)
}

func TestDocumentCacheOpenFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shelf")
	cache, err := OpenDocumentCache(dir, zerolog.Nop())
	require.NoError(t, err)
	defer cache.Close()

	// goleveldb holds an exclusive lock; a second open must fail with the
	// non-fatal cache error.
	_, err = OpenDocumentCache(dir, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
}
