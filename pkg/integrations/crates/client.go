package crates

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/matzehuels/cratescope/pkg/cache"
	"github.com/matzehuels/cratescope/pkg/integrations"
)

const (
	// DefaultBaseURL is the crates.io v1 API root.
	DefaultBaseURL = "https://crates.io/api/v1"

	// UserAgent identifies the client as crates.io policy requires.
	UserAgent = "cratescope/1.0 (https://github.com/matzehuels/cratescope)"

	// DefaultPerPage is the page size used by Search when none is given.
	DefaultPerPage = 20

	// MaxPerPage is the largest page size crates.io accepts.
	MaxPerPage = 100
)

// Client provides access to the crates.io registry API.
// It handles HTTP requests with caching, rate limiting and automatic retries.
//
// Responses are cached in separate namespaces of the backend:
//
//	crate:{id}               crate metadata and published versions
//	version:{id}:{version}   a single version record
//	deps:{id}:{version}      declared dependencies of a version
//	search:{q}:{page}:{n}    search results
//	downloads:{id}           download series
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string

	// Refresh bypasses cached responses. Fresh responses are still stored.
	Refresh bool

	crates    cache.Cache
	versions  cache.Cache
	deps      cache.Cache
	search    cache.Cache
	downloads cache.Cache
}

// NewClient creates a crates.io client.
//
// baseURL defaults to [DefaultBaseURL] when empty. backend may be nil to
// disable caching; cacheTTL <= 0 uses [cache.DefaultTTL]. Options are passed
// to the shared [integrations.Client] (rate limit, retries, headers).
func NewClient(baseURL string, backend cache.Cache, cacheTTL time.Duration, opts ...integrations.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	headers := map[string]string{"User-Agent": UserAgent}
	base := integrations.NewClient(backend, cacheTTL, headers, opts...)
	return &Client{
		Client:    base,
		baseURL:   baseURL,
		crates:    base.Namespace("crate:"),
		versions:  base.Namespace("version:"),
		deps:      base.Namespace("deps:"),
		search:    base.Namespace("search:"),
		downloads: base.Namespace("downloads:"),
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchCrate retrieves crate metadata and its published versions.
//
// Returns [integrations.ErrNotFound] (wrapped) if the crate doesn't exist.
func (c *Client) FetchCrate(ctx context.Context, id string) (*CrateResponse, error) {
	return integrations.Cached(ctx, c.Client, c.crates, id, c.Refresh, func(ctx context.Context) (*CrateResponse, error) {
		var data CrateResponse
		if err := c.Get(ctx, c.url("crates", id), &data); err != nil {
			return nil, notFound(err, "crate %s", id)
		}
		return &data, nil
	})
}

// FetchVersions returns the published version numbers of a crate, newest first.
func (c *Client) FetchVersions(ctx context.Context, id string) ([]string, error) {
	data, err := c.FetchCrate(ctx, id)
	if err != nil {
		return nil, err
	}
	return data.VersionNums(), nil
}

// FetchVersion retrieves a single version record, including its crate size.
func (c *Client) FetchVersion(ctx context.Context, id, version string) (*Version, error) {
	return integrations.Cached(ctx, c.Client, c.versions, id+":"+version, c.Refresh, func(ctx context.Context) (*Version, error) {
		var data VersionResponse
		if err := c.Get(ctx, c.url("crates", id, version), &data); err != nil {
			return nil, notFound(err, "crate %s version %s", id, version)
		}
		return &data.Version, nil
	})
}

// FetchDependencies retrieves the dependencies declared by one crate version,
// in manifest order and unfiltered.
func (c *Client) FetchDependencies(ctx context.Context, id, version string) (*DependenciesResponse, error) {
	return integrations.Cached(ctx, c.Client, c.deps, id+":"+version, c.Refresh, func(ctx context.Context) (*DependenciesResponse, error) {
		var data DependenciesResponse
		if err := c.Get(ctx, c.url("crates", id, version, "dependencies"), &data); err != nil {
			return nil, notFound(err, "crate %s version %s", id, version)
		}
		return &data, nil
	})
}

// Search queries crates by name and keywords. page starts at 1; perPage <= 0
// uses [DefaultPerPage].
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (*SearchResponse, error) {
	page = max(page, 1)
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	key := fmt.Sprintf("%s:%d:%d", query, page, perPage)
	return integrations.Cached(ctx, c.Client, c.search, key, c.Refresh, func(ctx context.Context) (*SearchResponse, error) {
		q := url.Values{}
		q.Set("q", query)
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(perPage))

		var data SearchResponse
		if err := c.Get(ctx, c.url("crates")+"?"+q.Encode(), &data); err != nil {
			return nil, err
		}
		return &data, nil
	})
}

// FetchDownloads retrieves the recent download series of a crate.
func (c *Client) FetchDownloads(ctx context.Context, id string) (*DownloadsResponse, error) {
	return integrations.Cached(ctx, c.Client, c.downloads, id, c.Refresh, func(ctx context.Context) (*DownloadsResponse, error) {
		var data DownloadsResponse
		if err := c.Get(ctx, c.url("crates", id, "downloads"), &data); err != nil {
			return nil, notFound(err, "crate %s", id)
		}
		return &data, nil
	})
}

func (c *Client) url(segments ...string) string {
	u := c.baseURL
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	return u
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, integrations.ErrNotFound) {
		return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return err
}
