package integrations

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	httpTimeout = 10 * time.Second

	// DefaultRateLimit is the sustained request rate towards a registry.
	DefaultRateLimit = 10.0
	// DefaultBurst is how many requests may be sent back to back.
	DefaultBurst = 20
)

var (
	// ErrNotFound is returned when a crate or version doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrRateLimited is returned when the registry answers 429 after all retries.
	ErrRateLimited = errors.New("rate limited by registry")
)

// NewHTTPClient creates an HTTP client with a standard timeout for registry requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
