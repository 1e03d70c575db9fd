package deps

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
	"github.com/matzehuels/cratescope/pkg/observability"
)

var tracer = otel.Tracer("github.com/matzehuels/cratescope/pkg/deps")

// Result is the outcome of [Analyzer.Analyze]. Its JSON form is the body of
// the dependency endpoint.
type Result struct {
	TreemapRoot      TreemapRoot `json:"treemapRoot"`
	UnknownSizeCrate int         `json:"unknownSizeCrate"`
	DepData          *DepGraph   `json:"depData"`
	Stats            Stats       `json:"stats"`
}

// Stats summarizes a resolution.
type Stats struct {
	Crate    string        `json:"crate"`
	Version  string        `json:"version"`
	Crates   int           `json:"crates"`  // Crates in the link cache
	Links    int           `json:"links"`   // Links in the graph
	Levels   int           `json:"levels"`  // Levels visited including the root
	Skipped  int           `json:"skipped"` // Children that failed to resolve or fetch
	Size     int64         `json:"size"`    // Summed crate size of the treemap
	Duration time.Duration `json:"duration_ns"`
}

// Analyzer resolves a crate and builds both views of its dependencies.
// It holds no per-request state; concurrent calls are safe.
type Analyzer struct {
	Registry Registry
	Fetcher  *Fetcher
	Logger   *log.Logger
}

// NewAnalyzer creates an Analyzer over registry.
func NewAnalyzer(registry Registry, opts Options) *Analyzer {
	opts = opts.WithDefaults()
	return &Analyzer{
		Registry: registry,
		Fetcher:  NewFetcher(registry, opts),
		Logger:   opts.Logger,
	}
}

// Analyze resolves id at version and returns the treemap and graph views.
// An empty version selects the crate's default version.
//
// Errors carry codes from package errors: ErrCodeInvalidPackage or
// ErrCodeInvalidVersion for malformed input, ErrCodePackageNotFound for an
// unknown crate, ErrCodeInsufficientData when the root's dependencies cannot
// be fetched.
func (a *Analyzer) Analyze(ctx context.Context, id, version string, filter Filter) (res *Result, err error) {
	if err := errors.ValidateCrateID(id); err != nil {
		return nil, err
	}
	if version != "" {
		if err := errors.ValidateVersion(version); err != nil {
			return nil, err
		}
	}

	ctx, span := tracer.Start(ctx, "deps.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("crate.id", id))

	start := time.Now()
	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, id, version)
	defer func() {
		nodes := 0
		if res != nil {
			nodes = res.Stats.Crates
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errors.UserMessage(err))
		}
		hooks.OnResolveComplete(ctx, id, version, nodes, time.Since(start), err)
	}()

	crate, err := a.Registry.FetchCrate(ctx, id)
	if err != nil {
		if stderrors.Is(err, integrations.ErrNotFound) {
			return nil, errors.Wrap(errors.ErrCodePackageNotFound, err, "crate %s not found", id)
		}
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch crate %s", id)
	}
	if version == "" {
		version = crate.DefaultVersion()
	}
	span.SetAttributes(attribute.String("crate.version", version))

	tree, err := a.Fetcher.FetchBaseDepTree(ctx, id, version, filter)
	if err != nil {
		return nil, err
	}

	treemap, err := a.Fetcher.Treemap(ctx, tree, a.rootRecord(ctx, crate, id, version))
	if err != nil {
		return nil, err
	}
	graph := tree.DepGraph(id)

	res = &Result{
		TreemapRoot:      treemap.Root,
		UnknownSizeCrate: treemap.UnknownSizeCrate,
		DepData:          graph,
		Stats: Stats{
			Crate:    id,
			Version:  version,
			Crates:   tree.Len(),
			Links:    len(graph.Links),
			Levels:   tree.Levels(),
			Skipped:  tree.Failed(),
			Size:     treemap.Total(),
			Duration: time.Since(start),
		},
	}

	a.Logger.Info("resolved dependencies",
		"crate", id,
		"version", version,
		"crates", res.Stats.Crates,
		"links", res.Stats.Links,
		"unknown_size", res.UnknownSizeCrate,
		"duration", res.Stats.Duration)

	return res, nil
}

// rootRecord returns the version record of the root: from the crate's
// version list when present, else fetched. A failed fetch yields nil.
func (a *Analyzer) rootRecord(ctx context.Context, crate *crates.CrateResponse, id, version string) *crates.Version {
	if v, ok := crate.FindVersion(version); ok {
		return v
	}
	v, err := a.Registry.FetchVersion(ctx, id, version)
	if err != nil {
		a.Logger.Debug("root version record unavailable", "crate", id, "version", version, "err", err)
		return nil
	}
	return v
}
