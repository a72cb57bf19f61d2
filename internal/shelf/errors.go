package shelf

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheUnavailable means the persistent cache could not be opened or
	// queried. The pipeline treats it as a cache miss, never as fatal.
	ErrCacheUnavailable = errors.New("document cache unavailable")

	// ErrPayloadTooSmall marks a response whose body is below the minimum
	// size threshold, usually a proxy returning an HTML error page with a
	// 200 status instead of the document.
	ErrPayloadTooSmall = errors.New("payload below minimum size")

	// ErrExhausted means the cache, the direct fetch and every configured
	// proxy all failed for a canonical URL.
	ErrExhausted = errors.New("all acquisition strategies exhausted")
)

// ExhaustedError is the terminal pipeline failure. It matches ErrExhausted
// under errors.Is.
type ExhaustedError struct {
	URL      string
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("acquire %s: %d attempts failed", e.URL, e.Attempts)
}

func (e *ExhaustedError) Unwrap() error { return ErrExhausted }
