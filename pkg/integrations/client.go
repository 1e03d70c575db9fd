package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/matzehuels/cratescope/pkg/cache"
	"github.com/matzehuels/cratescope/pkg/observability"
)

var tracer = otel.Tracer("github.com/matzehuels/cratescope/pkg/integrations")

// Client provides shared HTTP functionality for registry API clients.
// It handles caching, rate limiting, retry logic, and common request headers.
type Client struct {
	http       *http.Client
	cache      cache.Cache
	ttl        time.Duration
	headers    map[string]string
	limiter    *rate.Limiter
	retries    int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRateLimit bounds outgoing requests to perSecond with the given burst.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = max(attempts, 1)
		c.retryDelay = delay
	}
}

// WithHeader sets a default header, overriding one passed to NewClient.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value == "" {
			return
		}
		headers := make(map[string]string, len(c.headers)+1)
		for k, v := range c.headers {
			headers[k] = v
		}
		headers[key] = value
		c.headers = headers
	}
}

// NewClient creates a Client with the given cache, entry TTL and default headers.
// Headers are applied to all requests made through this client.
// A nil cache disables caching.
func NewClient(backend cache.Cache, ttl time.Duration, headers map[string]string, opts ...Option) *Client {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	c := &Client{
		http:       NewHTTPClient(),
		cache:      backend,
		ttl:        ttl,
		headers:    headers,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		retries:    cache.DefaultRetryAttempts,
		retryDelay: cache.DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Namespace returns a view of the client's cache with keys prefixed by prefix.
func (c *Client) Namespace(prefix string) cache.Cache {
	return cache.Namespace(c.cache, prefix)
}

// Cached returns the value stored under key in ns or calls fetch and stores
// its result. If refresh is true the cached value is ignored but the fresh
// result is still written back. Retryable fetch errors are retried with backoff.
func Cached[T any](ctx context.Context, c *Client, ns cache.Cache, key string, refresh bool, fetch func(context.Context) (T, error)) (T, error) {
	withRetry := func(ctx context.Context) (T, error) {
		var v T
		err := cache.Retry(ctx, c.retries, c.retryDelay, func() error {
			var err error
			v, err = fetch(ctx)
			return err
		})
		return v, err
	}

	if !refresh {
		return cache.Fetch(ctx, ns, key, c.ttl, withRetry)
	}
	v, err := withRetry(ctx)
	if err != nil {
		return v, err
	}
	cache.Store(ctx, ns, key, c.ttl, v)
	return v, nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, rawURL string, v any) error {
	return c.GetWithHeaders(ctx, rawURL, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string, headers map[string]string) (io.ReadCloser, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := hostPath(req.URL)
	ctx, span := tracer.Start(ctx, "registry.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("server.address", host),
			attribute.String("url.path", path),
		))
	defer span.End()
	req = req.WithContext(ctx)

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &cache.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	hooks.OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if err := checkStatus(resp.StatusCode, resp.Header); err != nil {
		resp.Body.Close()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int, header http.Header) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return &cache.RetryableError{Err: ErrRateLimited, After: retryAfter(header)}
	case code >= 500:
		return &cache.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

func hostPath(u *url.URL) (string, string) {
	if u == nil {
		return "", ""
	}
	return u.Host, u.Path
}
