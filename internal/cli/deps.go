package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cratescope/pkg/deps"
	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/render/nodelink"
)

const (
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"

	viewGraph   = "graph"
	viewTreemap = "treemap"
	viewAll     = "all"
)

// depsOpts holds the command-line flags for the deps command.
type depsOpts struct {
	format   string
	view     string
	output   string
	detailed bool
	refresh  bool

	// Overrides of the [resolve] config section, applied only when set.
	maxDepth int
	workers  int
	dev      bool
	build    bool
	optional bool
	exclude  []string
}

// depsCommand creates the deps command that resolves a crate's dependency tree.
func (c *CLI) depsCommand() *cobra.Command {
	opts := depsOpts{format: formatJSON, view: viewAll}

	cmd := &cobra.Command{
		Use:   "deps <crate> [version]",
		Short: "Resolve the transitive dependencies of a crate",
		Long: `Resolve the transitive dependencies of a crate version and export them.

The version defaults to the crate's newest stable release. The JSON export
contains the treemap (crate sizes) and the dependency graph; DOT and SVG
exports draw the graph.`,
		Example: `  cratescope deps serde
  cratescope deps tokio 1.38.0 --view treemap
  cratescope deps reqwest --format svg -o reqwest.svg --exclude 'windows*'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			if err := validateOutput(opts.format, opts.view); err != nil {
				return err
			}
			c.applyResolveFlags(cmd, &opts)
			return c.runDeps(cmd.Context(), cmd.OutOrStdout(), args[0], version, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", opts.format, "output format: json, dot, svg")
	f.StringVar(&opts.view, "view", opts.view, "json view: graph, treemap, all")
	f.StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	f.BoolVar(&opts.detailed, "detailed", false, "show requirement and kind in dot/svg labels")
	f.BoolVar(&opts.refresh, "refresh", false, "bypass cached registry responses")
	f.IntVar(&opts.maxDepth, "max-depth", 0, "maximum traversal depth including the root")
	f.IntVar(&opts.workers, "workers", 0, "concurrent registry fetches per level")
	f.BoolVar(&opts.dev, "dev", false, "include dev-dependencies")
	f.BoolVar(&opts.build, "build", false, "include build-dependencies")
	f.BoolVar(&opts.optional, "optional", false, "include optional dependencies")
	f.StringSliceVar(&opts.exclude, "exclude", nil, "skip crates matching a glob (repeatable)")

	return cmd
}

func validateOutput(format, view string) error {
	switch view {
	case viewGraph, viewTreemap, viewAll:
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "invalid view %q (must be graph, treemap or all)", view)
	}
	switch format {
	case formatJSON:
	case formatDOT, formatSVG:
		if view == viewTreemap {
			return errors.New(errors.ErrCodeInvalidFormat, "the treemap view is only available as json")
		}
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format %q (must be json, dot or svg)", format)
	}
	return nil
}

// applyResolveFlags copies explicitly set flags over the loaded config.
func (c *CLI) applyResolveFlags(cmd *cobra.Command, opts *depsOpts) {
	r := &c.Config.Resolve
	f := cmd.Flags()
	if f.Changed("max-depth") {
		r.MaxDepth = opts.maxDepth
	}
	if f.Changed("workers") {
		r.Workers = opts.workers
	}
	if f.Changed("dev") {
		r.Dev = opts.dev
	}
	if f.Changed("build") {
		r.Build = opts.build
	}
	if f.Changed("optional") {
		r.Optional = opts.optional
	}
	if f.Changed("exclude") {
		r.Exclude = append(append([]string(nil), r.Exclude...), opts.exclude...)
	}
}

func (c *CLI) runDeps(ctx context.Context, stdout io.Writer, id, version string, opts *depsOpts) error {
	logger := loggerFromContext(ctx)

	if c.Config.Resolve.MaxDepth < 1 || c.Config.Resolve.Workers < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "--max-depth and --workers must be at least 1")
	}
	filter, err := c.Config.Filter()
	if err != nil {
		return err
	}

	client, closeCache, err := c.newClient(ctx)
	if err != nil {
		return err
	}
	defer closeCache()
	client.Refresh = opts.refresh

	analyzer := deps.NewAnalyzer(client, c.Config.DepsOptions(logger))

	label := id
	if version != "" {
		label += "@" + version
	}
	var spinner *Spinner
	if !c.verbose {
		spinner = newSpinnerWithContext(ctx, "Resolving "+label+"...")
		spinner.Start()
	}
	res, err := analyzer.Analyze(ctx, id, version, filter)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	printSuccess("Resolved %s@%s", res.Stats.Crate, res.Stats.Version)
	printStats(res.Stats, res.UnknownSizeCrate)

	prog := newProgress(logger)
	data, err := encodeResult(ctx, res, opts)
	if err != nil {
		return err
	}

	if opts.output == "" || opts.output == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	prog.done("Wrote " + opts.output)
	printFile(opts.output)
	return nil
}

// encodeResult renders res in the requested format and view.
func encodeResult(ctx context.Context, res *deps.Result, opts *depsOpts) ([]byte, error) {
	switch opts.format {
	case formatDOT, formatSVG:
		dot := nodelink.ToDOT(res.DepData, nodelink.Options{Root: res.Stats.Crate, Detailed: opts.detailed})
		if opts.format == formatDOT {
			return []byte(dot), nil
		}
		return nodelink.RenderSVG(ctx, dot)
	}

	var v any
	switch opts.view {
	case viewGraph:
		v = res.DepData
	case viewTreemap:
		v = &deps.Treemap{Root: res.TreemapRoot, UnknownSizeCrate: res.UnknownSizeCrate}
	default:
		v = res
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
