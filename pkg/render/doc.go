// Package render turns resolved dependency graphs into visual outputs.
//
// The [nodelink] subpackage renders a [deps.DepGraph] as a traditional
// directed diagram using Graphviz:
//
//	dot := nodelink.ToDOT(res.DepData, nodelink.Options{Root: "serde"})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// [nodelink]: github.com/matzehuels/cratescope/pkg/render/nodelink
// [deps.DepGraph]: github.com/matzehuels/cratescope/pkg/deps.DepGraph
package render
