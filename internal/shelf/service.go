package shelf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service wires the cache, the acquisition pipeline and the library tier
// behind an HTTP surface, plus the background warmup and catalog loops.
type Service struct {
	cfg Config
	log zerolog.Logger

	httpClient *http.Client
	cache      *DocumentCache
	acq        *Acquirer
	lib        *Library

	stats *statsCollector

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewService(cfg Config, log zerolog.Logger) (*Service, error) {
	cache, err := OpenDocumentCache(cfg.Storage.Path, log)
	if err != nil {
		return nil, err
	}

	client := NewClient(WithTimeout(cfg.Fetch.timeoutDur))
	acq := NewAcquirer(cache, client, cfg.Fetch.proxies, cfg.Fetch.minBytesN, log)

	// library.default may name a catalog document by ID.
	defaultURL := cfg.Library.Default
	for _, doc := range cfg.Library.Documents {
		if doc.ID == cfg.Library.Default {
			defaultURL = doc.URL
			break
		}
	}
	lib := NewLibrary(acq, defaultURL, cfg.Library.Documents, log)

	s := &Service{
		cfg:        cfg,
		log:        log,
		httpClient: client,
		cache:      cache,
		acq:        acq,
		lib:        lib,
		stats:      newStatsCollector(),
		stopCh:     make(chan struct{}),
	}

	if cfg.Logging.logStatsEveryDur > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statsLoop(cfg.Logging.logStatsEveryDur)
		}()
	}

	if cfg.Library.warmDur > 0 {
		log.Info().Dur("every", cfg.Library.warmDur).Msg("warmup loop enabled")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.warmupLoop(cfg.Library.warmDur)
		}()
	}

	s.startCatalogRefresh()

	return s, nil
}

func (s *Service) Close() {
	close(s.stopCh)
	s.wg.Wait()
	if err := s.cache.Close(); err != nil {
		s.log.Warn().Err(err).Msg("closing document cache")
	}
}

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/doc", s.handleDoc)
	mux.HandleFunc("/doc/", s.handleDoc)
	mux.HandleFunc("/catalog", s.handleCatalog)
	return mux
}

func (s *Service) handleDoc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		target = strings.TrimPrefix(r.URL.Path, "/doc/")
		target = strings.Trim(target, "/")
	}
	if target == "" {
		http.Error(w, "missing document id or url", http.StatusBadRequest)
		return
	}

	res, err := s.lib.Resolve(r.Context(), target)
	if err != nil {
		s.stats.ObserveExhausted()
		s.log.Error().Str("target", target).Err(err).Msg("document unavailable")
		http.Error(w, "document unavailable", http.StatusBadGateway)
		return
	}

	s.stats.ObserveResolve(res)
	writeDocument(w, res)
}

func (s *Service) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.lib.Documents()); err != nil {
		s.log.Warn().Err(err).Msg("encoding catalog")
	}
}

func writeDocument(w http.ResponseWriter, res ResolveResult) {
	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("X-Shelf-Source", res.Source)
	h.Set("X-Shelf-Substituted", fmt.Sprintf("%t", res.Substituted))
	// The consumer is a browser app; custom headers are not readable by JS
	// in a CORS context unless explicitly exposed.
	ensureExposedHeader(h, "X-Shelf-Source")
	ensureExposedHeader(h, "X-Shelf-Substituted")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

func ensureExposedHeader(h http.Header, name string) {
	if name == "" {
		return
	}

	const expose = "Access-Control-Expose-Headers"
	cur := h.Values(expose)
	if len(cur) == 0 {
		h.Set(expose, name)
		return
	}

	// Merge into a single comma-separated value.
	merged := strings.Join(cur, ",")
	for _, part := range strings.Split(merged, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return
		}
	}

	h.Set(expose, strings.TrimSpace(merged)+", "+name)
}

// warmupLoop prefetches catalog documents that are not cached yet. Entries
// are immutable once cached, so already-cached documents are skipped rather
// than revalidated.
func (s *Service) warmupLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			for _, doc := range s.lib.Documents() {
				select {
				case <-s.stopCh:
					return
				default:
				}
				s.warmDocument(doc)
			}
		}
	}
}

func (s *Service) warmDocument(doc Document) {
	if s.cache.Has(doc.URL) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	res, err := s.acq.Acquire(ctx, doc.URL)
	if err != nil {
		if !errors.Is(err, ErrExhausted) {
			s.log.Warn().Str("id", doc.ID).Err(err).Msg("warmup fetch failed")
		}
		return
	}
	s.log.Info().Str("id", doc.ID).Str("source", res.Source).
		Int("bytes", len(res.Body)).Msg("warmed document")
}

func (s *Service) statsLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			ss := s.stats.Snapshot()
			s.log.Info().
				Int("cachedDocs", s.cache.KeyCount()).
				Str("diskUsage", formatBytes(uint64(s.cache.TotalSize()))).
				Uint64("hits", ss.CacheHits).
				Uint64("direct", ss.DirectFetches).
				Uint64("proxy", ss.ProxyFetches).
				Uint64("substituted", ss.Substitutions).
				Uint64("exhausted", ss.Exhausted).
				Str("respMin", formatBytes(ss.MinRespBytes)).
				Str("respAvg", formatBytes(ss.AvgRespBytes)).
				Str("respMax", formatBytes(ss.MaxRespBytes)).
				Msg("stats")
		}
	}
}
