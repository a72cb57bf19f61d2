package shelf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// startCatalogRefresh periodically pulls the remote document catalog and
// merges it into the library, so newly published textbooks become known
// (and warmable) without a restart.
func (s *Service) startCatalogRefresh() {
	if s.cfg.Catalog.URL == "" {
		return
	}

	initDelay := s.cfg.Catalog.initialDelayDur
	period := s.cfg.Catalog.refreshDur

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if initDelay > 0 {
			select {
			case <-s.stopCh:
				return
			case <-time.After(initDelay):
			}
		}

		runOnce := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			changed, total, err := s.refreshCatalogOnce(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("catalog refresh failed")
				return
			}
			s.log.Info().Int("changed", changed).Int("total", total).Msg("catalog refreshed")
		}

		runOnce()
		if period <= 0 {
			return
		}

		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-t.C:
				runOnce()
			}
		}
	}()
}

func (s *Service) refreshCatalogOnce(ctx context.Context) (changed, total int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Catalog.URL, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, 0, fmt.Errorf("catalog fetch: status %d", resp.StatusCode)
	}

	var docs []Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return 0, 0, fmt.Errorf("catalog decode: %w", err)
	}

	return s.lib.MergeCatalog(docs), len(docs), nil
}
