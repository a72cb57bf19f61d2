package shelf

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// rateLimitedWarner suppresses repeats of a noisy warning (e.g. the same
// proxy failing on every request) to at most one per interval.
type rateLimitedWarner struct {
	log      zerolog.Logger
	interval time.Duration

	mu     sync.Mutex
	lastAt time.Time
}

func newRateLimitedWarner(log zerolog.Logger, interval time.Duration) *rateLimitedWarner {
	return &rateLimitedWarner{log: log, interval: interval}
}

func (l *rateLimitedWarner) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if !l.lastAt.IsZero() && now.Sub(l.lastAt) < l.interval {
		return
	}
	l.lastAt = now
	l.log.Warn().Msgf(format, args...)
}
