package shelf

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Library is the caller tier above the pipeline: it maps catalog IDs to
// canonical URLs and substitutes the configured default document when
// acquisition of the requested one is exhausted.
type Library struct {
	acq        *Acquirer
	log        zerolog.Logger
	defaultURL string

	mu   sync.RWMutex
	docs map[string]Document // by ID
}

func NewLibrary(acq *Acquirer, defaultURL string, docs []Document, log zerolog.Logger) *Library {
	l := &Library{
		acq:        acq,
		log:        log,
		defaultURL: defaultURL,
		docs:       map[string]Document{},
	}
	l.MergeCatalog(docs)
	return l
}

// Resolve acquires the document named by urlOrID (a catalog ID or a raw
// canonical URL). If every strategy is exhausted it reruns the pipeline
// against the default document and flags the result as substituted, so the
// front end can tell the user they are not seeing what they asked for.
func (l *Library) Resolve(ctx context.Context, urlOrID string) (ResolveResult, error) {
	target := l.lookupURL(urlOrID)

	res, err := l.acq.Acquire(ctx, target)
	if err == nil {
		return ResolveResult{AcquireResult: res}, nil
	}
	if !errors.Is(err, ErrExhausted) || l.defaultURL == "" || target == l.defaultURL {
		return ResolveResult{}, err
	}

	l.log.Warn().Str("url", target).Str("default", l.defaultURL).
		Msg("acquisition exhausted, substituting default document")

	res, derr := l.acq.Acquire(ctx, l.defaultURL)
	if derr != nil {
		// Report the original failure; the default failing too is in the
		// log already.
		return ResolveResult{}, err
	}
	return ResolveResult{AcquireResult: res, Substituted: true}, nil
}

// lookupURL maps a catalog ID to its canonical URL; anything unknown is
// treated as a raw URL.
func (l *Library) lookupURL(urlOrID string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if doc, ok := l.docs[urlOrID]; ok {
		return doc.URL
	}
	return urlOrID
}

// DefaultURL returns the configured substitute document URL.
func (l *Library) DefaultURL() string { return l.defaultURL }

// Documents returns the catalog sorted by ID.
func (l *Library) Documents() []Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Document, 0, len(l.docs))
	for _, d := range l.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MergeCatalog upserts documents by ID, skipping entries without an ID or
// URL. Returns how many entries were added or changed.
func (l *Library) MergeCatalog(docs []Document) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed := 0
	for _, d := range docs {
		if d.ID == "" || d.URL == "" {
			continue
		}
		if cur, ok := l.docs[d.ID]; ok && cur == d {
			continue
		}
		l.docs[d.ID] = d
		changed++
	}
	return changed
}
