package shelf

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSubstitutesDefaultDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/default.pdf":
			_, _ = w.Write(docPayload)
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cache := newMemCache()
	acq := NewAcquirer(cache, NewClient(), nil, 16, zerolog.Nop())
	lib := NewLibrary(acq, srv.URL+"/default.pdf", nil, zerolog.Nop())

	res, err := lib.Resolve(context.Background(), srv.URL+"/missing.pdf")
	require.NoError(t, err)
	assert.True(t, res.Substituted)
	assert.Equal(t, docPayload, res.Body)
	assert.Equal(t, "direct", res.Source)

	// The substitute was cached under its own canonical URL; asking for the
	// default directly is now a cache hit with no substitution.
	res, err = lib.Resolve(context.Background(), srv.URL+"/default.pdf")
	require.NoError(t, err)
	assert.False(t, res.Substituted)
	assert.Equal(t, "cache", res.Source)
}

func TestResolveDefaultAlsoExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cache := newMemCache()
	acq := NewAcquirer(cache, NewClient(), nil, 16, zerolog.Nop())
	lib := NewLibrary(acq, srv.URL+"/default.pdf", nil, zerolog.Nop())

	_, err := lib.Resolve(context.Background(), srv.URL+"/missing.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))

	var exErr *ExhaustedError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, srv.URL+"/missing.pdf", exErr.URL, "the original failure is reported, not the default's")
}

func TestResolveNoDoubleSubstitutionForDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	hits := 0
	cache := newMemCache()
	client := NewClient(WithTransport(tripFunc(func(r *http.Request) (*http.Response, error) {
		hits++
		return http.DefaultTransport.RoundTrip(r)
	})))
	acq := NewAcquirer(cache, client, nil, 16, zerolog.Nop())
	lib := NewLibrary(acq, srv.URL+"/default.pdf", nil, zerolog.Nop())

	_, err := lib.Resolve(context.Background(), srv.URL+"/default.pdf")
	require.Error(t, err)
	assert.Equal(t, 1, hits, "requesting the default itself must not retry against the default")
}

func TestResolveByCatalogID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/algebra9.pdf" {
			_, _ = w.Write(docPayload)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	docs := []Document{{ID: "algebra-9", Title: "Algebra, Grade 9", URL: srv.URL + "/algebra9.pdf"}}
	cache := newMemCache()
	acq := NewAcquirer(cache, NewClient(), nil, 16, zerolog.Nop())
	lib := NewLibrary(acq, srv.URL+"/algebra9.pdf", docs, zerolog.Nop())

	res, err := lib.Resolve(context.Background(), "algebra-9")
	require.NoError(t, err)
	assert.Equal(t, docPayload, res.Body)

	_, ok := cache.Get(srv.URL + "/algebra9.pdf")
	assert.True(t, ok, "cached under the canonical URL the ID maps to")
}

func TestMergeCatalog(t *testing.T) {
	lib := NewLibrary(nil, "", []Document{
		{ID: "a", Title: "A", URL: "https://books.example/a.pdf"},
	}, zerolog.Nop())

	changed := lib.MergeCatalog([]Document{
		{ID: "a", Title: "A", URL: "https://books.example/a.pdf"},  // unchanged
		{ID: "b", Title: "B", URL: "https://books.example/b.pdf"},  // new
		{ID: "", Title: "bad", URL: "https://books.example/x.pdf"}, // skipped
		{ID: "c", Title: "no url", URL: ""},                        // skipped
	})
	assert.Equal(t, 1, changed)

	docs := lib.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
}
