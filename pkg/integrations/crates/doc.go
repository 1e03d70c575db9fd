// Package crates provides an HTTP client for the crates.io API.
//
// # Overview
//
// This package fetches crate metadata, version records and declared
// dependencies from crates.io (https://crates.io), the Rust community's
// package registry.
//
// # Usage
//
//	client := crates.NewClient("", cache.NewMemoryCache(0, 0), 10*time.Minute)
//
//	crate, err := client.FetchCrate(ctx, "serde")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	deps, err := client.FetchDependencies(ctx, "serde", crate.DefaultVersion())
//
// # Endpoints
//
//   - [Client.FetchCrate]: GET /crates/{id}
//   - [Client.FetchVersion]: GET /crates/{id}/{version}
//   - [Client.FetchDependencies]: GET /crates/{id}/{version}/dependencies
//   - [Client.Search]: GET /crates?q=
//   - [Client.FetchDownloads]: GET /crates/{id}/downloads
//
// Dependencies are returned unfiltered and in manifest order; callers decide
// which kinds (normal, dev, build) and whether optional edges matter.
//
// # Caching
//
// Every endpoint is cached in its own namespace of the backend passed to
// [NewClient]. Set [Client.Refresh] to bypass cached entries.
//
// # User-Agent
//
// The client includes a User-Agent header as requested by crates.io policy.
package crates
