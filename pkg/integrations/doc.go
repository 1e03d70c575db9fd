// Package integrations provides the shared HTTP layer for registry API clients.
//
// # Overview
//
// The registry-specific client lives in a subpackage:
//
//   - [crates]: Rust crates.io
//
// # Shared Infrastructure
//
// [Client] wraps an [http.Client] with:
//
//   - default headers (crates.io rejects requests without a User-Agent)
//   - a token-bucket rate limiter shared by every request of the client
//   - retries with exponential backoff for 5xx, 429 and transport failures
//   - OpenTelemetry spans and [observability.HTTPHooks] events per request
//
// [Cached] layers read-through caching on top: responses are stored as JSON
// in a [cache.Cache] namespace chosen by the caller, failures never are.
//
//	ns := client.Namespace("deps:")
//	resp, err := integrations.Cached(ctx, client, ns, "serde:1.0.193", false,
//	    func(ctx context.Context) (*Response, error) { ... })
//
// # Errors
//
// Status codes map to sentinels: 404 is [ErrNotFound], 429 is [ErrRateLimited],
// everything else non-2xx wraps [ErrNetwork].
//
// [crates]: github.com/matzehuels/cratescope/pkg/integrations/crates
package integrations
