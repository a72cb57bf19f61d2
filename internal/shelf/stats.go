package shelf

import (
	"math"
	"strings"
	"sync/atomic"
)

type statsCollector struct {
	cacheHits     atomic.Uint64
	directFetches atomic.Uint64
	proxyFetches  atomic.Uint64
	substitutions atomic.Uint64
	exhausted     atomic.Uint64

	totalResponses atomic.Uint64
	totalRespBytes atomic.Uint64
	minRespBytes   atomic.Uint64
	maxRespBytes   atomic.Uint64
}

func newStatsCollector() *statsCollector {
	s := &statsCollector{}
	s.minRespBytes.Store(math.MaxUint64)
	return s
}

// ObserveResolve records one served document by provenance.
func (s *statsCollector) ObserveResolve(res ResolveResult) {
	switch {
	case res.Source == "cache":
		s.cacheHits.Add(1)
	case res.Source == "direct":
		s.directFetches.Add(1)
	case strings.HasPrefix(res.Source, "proxy:"):
		s.proxyFetches.Add(1)
	}
	if res.Substituted {
		s.substitutions.Add(1)
	}
	s.observeBytes(len(res.Body))
}

func (s *statsCollector) ObserveExhausted() {
	s.exhausted.Add(1)
}

func (s *statsCollector) observeBytes(respBytes int) {
	if respBytes < 0 {
		respBytes = 0
	}
	n := uint64(respBytes)

	s.totalResponses.Add(1)
	s.totalRespBytes.Add(n)

	for {
		cur := s.minRespBytes.Load()
		if n >= cur {
			break
		}
		if s.minRespBytes.CompareAndSwap(cur, n) {
			break
		}
	}
	for {
		cur := s.maxRespBytes.Load()
		if n <= cur {
			break
		}
		if s.maxRespBytes.CompareAndSwap(cur, n) {
			break
		}
	}
}

type statsSnapshot struct {
	CacheHits     uint64
	DirectFetches uint64
	ProxyFetches  uint64
	Substitutions uint64
	Exhausted     uint64

	TotalResponses uint64
	TotalRespBytes uint64
	MinRespBytes   uint64
	MaxRespBytes   uint64
	AvgRespBytes   uint64
}

func (s *statsCollector) Snapshot() statsSnapshot {
	out := statsSnapshot{
		CacheHits:      s.cacheHits.Load(),
		DirectFetches:  s.directFetches.Load(),
		ProxyFetches:   s.proxyFetches.Load(),
		Substitutions:  s.substitutions.Load(),
		Exhausted:      s.exhausted.Load(),
		TotalResponses: s.totalResponses.Load(),
		TotalRespBytes: s.totalRespBytes.Load(),
		MinRespBytes:   s.minRespBytes.Load(),
		MaxRespBytes:   s.maxRespBytes.Load(),
	}
	if out.TotalResponses == 0 {
		out.MinRespBytes = 0
		return out
	}
	if out.MinRespBytes == math.MaxUint64 {
		out.MinRespBytes = 0
	}
	out.AvgRespBytes = out.TotalRespBytes / out.TotalResponses
	return out
}
