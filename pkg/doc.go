// Package pkg provides the core libraries for Cratescope dependency analysis.
//
// # Overview
//
// Cratescope resolves the transitive dependencies of a crates.io crate and
// produces two views of them: a size treemap and a node-link graph. The pkg
// directory is organized into these areas:
//
//  1. [deps] - Domain logic (tree fetching, graph construction, treemap)
//  2. [versions] - Semver requirement matching against published versions
//  3. [integrations] - The crates.io API client and shared HTTP plumbing
//  4. [cache] - Response caches (memory, file, Redis, MongoDB)
//  5. [render] - DOT and SVG export of the dependency graph
//  6. [server] - The HTTP API over the analyzer
//
// Supporting packages: [config] loads settings from TOML and the environment,
// [errors] defines coded errors shared by the CLI and API, and
// [observability] exposes hooks for metrics.
//
// # Architecture
//
// The typical data flow through Cratescope:
//
//	crates.io API
//	     ↓
//	[integrations/crates] client (cached, rate limited)
//	     ↓
//	[deps] Fetcher (breadth-first walk, requirement resolution)
//	     ↓
//	[deps] Analyzer (treemap + graph)
//	     ↓
//	JSON / DOT / SVG
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/cratescope/pkg/cache"
//	    "github.com/matzehuels/cratescope/pkg/deps"
//	    "github.com/matzehuels/cratescope/pkg/integrations/crates"
//	)
//
//	client := crates.NewClient(crates.DefaultBaseURL, cache.NewMemoryCache(0, cache.DefaultTTL), cache.DefaultTTL)
//	analyzer := deps.NewAnalyzer(client, deps.Options{})
//	res, err := analyzer.Analyze(context.Background(), "serde", "", deps.DefaultFilter)
//
// [deps]: github.com/matzehuels/cratescope/pkg/deps
// [versions]: github.com/matzehuels/cratescope/pkg/versions
// [integrations]: github.com/matzehuels/cratescope/pkg/integrations
// [integrations/crates]: github.com/matzehuels/cratescope/pkg/integrations/crates
// [cache]: github.com/matzehuels/cratescope/pkg/cache
// [render]: github.com/matzehuels/cratescope/pkg/render
// [server]: github.com/matzehuels/cratescope/pkg/server
// [config]: github.com/matzehuels/cratescope/pkg/config
// [errors]: github.com/matzehuels/cratescope/pkg/errors
// [observability]: github.com/matzehuels/cratescope/pkg/observability
package pkg
