// Package deps resolves the transitive dependency graph of a crate.
//
// # Overview
//
// Given a crate id and version, [Fetcher.FetchBaseDepTree] walks the
// crates.io dependency lists breadth first, resolving every edge's version
// requirement to the highest published version that satisfies it. Repeated
// crates are fetched once, so cycles and diamonds terminate. The result is a
// [Tree]: a per-request arena holding what each crate depends on, the first
// edge that reached it, and the version chosen for it.
//
// Two views are derived from the same tree:
//
//   - [Tree.DepGraph]: nodes and links with the hop distance from the root
//   - [Fetcher.Treemap]: crates ranked by published archive size
//
// [Analyzer] ties both together the way the JSON API and the CLI use them:
//
//	client := crates.NewClient("", cache.NewMemoryCache(0, 0), 10*time.Minute)
//	a := deps.NewAnalyzer(client, deps.Options{Logger: logger})
//	res, err := a.Analyze(ctx, "serde", "1.0.193", deps.DefaultFilter)
//
// # Concurrency
//
// The traversal is level-synchronous. All edges of a level are claimed in a
// fixed order (parents in discovery order, edges in manifest order) before any
// fetch of that level starts; the fetches then run concurrently, bounded by
// [Options.Workers], and are joined before the next level. The outcome does not
// depend on network timing.
//
// # Failures
//
// Only the root is fatal: if its dependency list cannot be fetched the call
// fails with an [errors.ErrCodeInsufficientData] error. A child whose crate
// metadata or dependency list cannot be fetched, or whose requirement matches
// no published version, becomes a leaf that is missing from the graph but is
// still counted in [Treemap.UnknownSizeCrate].
//
// # Depth
//
// [Options.MaxDepth] counts levels including the root. With the default of 10,
// crates nine hops away are recorded but not expanded.
package deps
