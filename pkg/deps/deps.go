package deps

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gobwas/glob"

	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

const (
	DefaultMaxDepth     = 10               // Levels including the root
	DefaultWorkers      = 20               // Concurrent fetches per level
	DefaultFetchTimeout = 30 * time.Second // Per-child fetch bound
)

// Dependency kinds as reported by crates.io.
const (
	KindNormal = "normal"
	KindDev    = "dev"
	KindBuild  = "build"
)

// Options configures dependency resolution behavior.
type Options struct {
	MaxDepth     int           // Levels to traverse including the root (default: 10)
	Workers      int           // Concurrent fetches per level (default: 20)
	FetchTimeout time.Duration // Timeout for one child fetch (default: 30s)
	Logger       *log.Logger   // Debug output for skipped children (default: log.Default())
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return opts
}

// Registry is the subset of the crates.io API the resolver needs.
// [*crates.Client] implements it.
type Registry interface {
	FetchCrate(ctx context.Context, id string) (*crates.CrateResponse, error)
	FetchVersions(ctx context.Context, id string) ([]string, error)
	FetchVersion(ctx context.Context, id, version string) (*crates.Version, error)
	FetchDependencies(ctx context.Context, id, version string) (*crates.DependenciesResponse, error)
}

var _ Registry = (*crates.Client)(nil)

// Filter decides whether a dependency edge is followed.
type Filter func(crates.Dependency) bool

// DefaultFilter follows normal, non-optional dependencies only.
func DefaultFilter(d crates.Dependency) bool {
	return d.Kind != KindDev && d.Kind != KindBuild && !d.Optional
}

// FilterOptions selects which edges [NewFilter] follows.
type FilterOptions struct {
	Dev      bool     // Follow dev-dependencies
	Build    bool     // Follow build-dependencies
	Optional bool     // Follow optional dependencies
	Exclude  []string // Glob patterns of crate ids never followed (e.g. "windows*")
}

// NewFilter builds a Filter from options. The zero value behaves like
// [DefaultFilter].
func NewFilter(opts FilterOptions) (Filter, error) {
	excludes := make([]glob.Glob, 0, len(opts.Exclude))
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid exclude pattern %q", pattern)
		}
		excludes = append(excludes, g)
	}

	return func(d crates.Dependency) bool {
		switch d.Kind {
		case KindDev:
			if !opts.Dev {
				return false
			}
		case KindBuild:
			if !opts.Build {
				return false
			}
		}
		if d.Optional && !opts.Optional {
			return false
		}
		for _, g := range excludes {
			if g.Match(d.CrateID) {
				return false
			}
		}
		return true
	}, nil
}
