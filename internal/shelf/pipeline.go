package shelf

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Proxy is one passthrough endpoint in the fallback chain. Template is the
// proxy request URL with a {url} placeholder for the query-escaped target;
// a template without the placeholder gets the escaped target appended.
type Proxy struct {
	Name     string
	Template string
}

func (p Proxy) Wrap(canonical string) string {
	escaped := url.QueryEscape(canonical)
	if strings.Contains(p.Template, "{url}") {
		return strings.ReplaceAll(p.Template, "{url}", escaped)
	}
	return p.Template + escaped
}

// Acquirer resolves a canonical URL to document bytes: cache lookup first,
// then a direct fetch, then each proxy in order. The first validated
// success wins and is written back to the cache under the canonical URL.
type Acquirer struct {
	cache    Cache
	client   *http.Client
	proxies  []Proxy
	minBytes int64
	log      zerolog.Logger

	proxyWarn *rateLimitedWarner
}

func NewAcquirer(cache Cache, client *http.Client, proxies []Proxy, minBytes int64, log zerolog.Logger) *Acquirer {
	return &Acquirer{
		cache:     cache,
		client:    client,
		proxies:   proxies,
		minBytes:  minBytes,
		log:       log,
		proxyWarn: newRateLimitedWarner(log, 1*time.Minute),
	}
}

type attempt struct {
	name string
	url  string
}

func (a *Acquirer) attempts(canonical string) []attempt {
	out := make([]attempt, 0, len(a.proxies)+1)
	out = append(out, attempt{name: "direct", url: canonical})
	for _, p := range a.proxies {
		out = append(out, attempt{name: "proxy:" + p.Name, url: p.Wrap(canonical)})
	}
	return out
}

// Acquire runs the pipeline for one canonical URL. Attempts are strictly
// sequential; a failed attempt is logged and the next one tried. Only total
// exhaustion surfaces as an error (matching ErrExhausted).
//
// Concurrent Acquire calls for the same URL are not coalesced: both may
// fetch and both will populate the same key, last write wins with identical
// contents.
func (a *Acquirer) Acquire(ctx context.Context, canonicalURL string) (AcquireResult, error) {
	if ent, ok := a.cache.Get(canonicalURL); ok {
		// Cache entries were validated when stored, serve as-is.
		return AcquireResult{Body: ent.Body, Source: "cache"}, nil
	}

	attempts := a.attempts(canonicalURL)
	for _, at := range attempts {
		body, err := a.fetchOnce(ctx, at.url)
		if err != nil {
			if at.name == "direct" {
				a.log.Debug().Str("url", canonicalURL).Err(err).Msg("direct fetch failed, falling back to proxies")
			} else {
				a.proxyWarn.Warnf("%s failed for %s: %v", at.name, canonicalURL, err)
			}
			continue
		}

		ent := CacheEntry{
			Body:      body,
			Size:      int64(len(body)),
			Hash32:    crc32.ChecksumIEEE(body),
			FetchedAt: time.Now().Unix(),
			Via:       at.name,
		}
		if err := a.cache.Put(canonicalURL, ent); err != nil {
			// Best effort: the payload is still good even if persisting it
			// failed.
			a.log.Warn().Str("url", canonicalURL).Err(err).Msg("cache write failed")
		}
		return AcquireResult{Body: body, Source: at.name}, nil
	}

	return AcquireResult{}, &ExhaustedError{URL: canonicalURL, Attempts: len(attempts)}
}

func (a *Acquirer) fetchOnce(ctx context.Context, fetchURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if int64(len(body)) < a.minBytes {
		return nil, fmt.Errorf("%w: %d < %d bytes", ErrPayloadTooSmall, len(body), a.minBytes)
	}
	return body, nil
}
