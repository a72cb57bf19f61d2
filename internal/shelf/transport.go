package shelf

import (
	"net/http"
	"time"
)

const defaultClientTimeout = 30 * time.Second

type ClientOption func(*http.Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *http.Client) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *http.Client) {
		c.Transport = transport
	}
}

// NewClient builds the HTTP client the pipeline uses for direct and proxy
// fetches. Individual attempts carry no timeout of their own; the client
// timeout bounds each one.
func NewClient(opts ...ClientOption) *http.Client {
	client := &http.Client{
		Timeout:   defaultClientTimeout,
		Transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}
