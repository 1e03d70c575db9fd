package deps

import (
	"context"
	stderrors "errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
	"github.com/matzehuels/cratescope/pkg/observability"
	"github.com/matzehuels/cratescope/pkg/versions"
)

// ErrNoMatchingVersion is returned when no published version satisfies a
// dependency's requirement.
var ErrNoMatchingVersion = stderrors.New("no published version satisfies requirement")

// Fetcher walks crates.io dependency lists. It holds no per-request state and
// may be shared by concurrent resolutions.
type Fetcher struct {
	registry Registry
	opts     Options
}

// NewFetcher creates a Fetcher reading from registry.
func NewFetcher(registry Registry, opts Options) *Fetcher {
	return &Fetcher{registry: registry, opts: opts.WithDefaults()}
}

// node is a crate whose dependency list has been fetched.
type node struct {
	id   string
	resp *crates.DependenciesResponse
}

// FetchBaseDepTree discovers the dependency closure of rootID at rootVersion,
// following only edges accepted by filter (nil means [DefaultFilter]).
//
// A failure to fetch the root's dependency list is returned as an
// [errors.ErrCodeInsufficientData] error. Failures below the root are logged,
// counted in [Tree.Failed] and otherwise ignored. Cancelling ctx aborts the
// walk and returns ctx.Err().
func (f *Fetcher) FetchBaseDepTree(ctx context.Context, rootID, rootVersion string, filter Filter) (*Tree, error) {
	if filter == nil {
		filter = DefaultFilter
	}

	resp, err := f.registry.FetchDependencies(ctx, rootID, rootVersion)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeInsufficientData, err,
			"insufficient crate versions for %s %s", rootID, rootVersion)
	}

	t := newTree(rootID, rootVersion)
	t.claim(rootID)
	t.setLinks(rootID, resp)
	t.setResolved(rootID, rootVersion)
	t.levels = 1

	frontier := []node{{id: rootID, resp: resp}}
	for level := 1; level < f.opts.MaxDepth && len(frontier) > 0; level++ {
		claimed := f.claimLevel(t, frontier, filter)
		if len(claimed) == 0 {
			break
		}
		next, err := f.fetchLevel(ctx, t, claimed)
		if err != nil {
			return nil, err
		}
		t.levels = level + 1

		frontier = frontier[:0]
		for _, n := range next {
			if n == nil {
				continue
			}
			t.setLinks(n.id, n.resp)
			if len(n.resp.Dependencies) > 0 {
				frontier = append(frontier, *n)
			}
		}
	}
	return t, nil
}

// claimLevel schedules the children of a level in parent discovery order,
// then manifest order. Already claimed crates are skipped.
func (f *Fetcher) claimLevel(t *Tree, frontier []node, filter Filter) []crates.Dependency {
	var claimed []crates.Dependency
	for _, parent := range frontier {
		for _, d := range parent.resp.Dependencies {
			if !filter(d) || !t.claim(d.CrateID) {
				continue
			}
			t.setDep(d)
			claimed = append(claimed, d)
		}
	}
	return claimed
}

// fetchLevel fetches all claimed children concurrently. The result is indexed
// like claimed; a nil entry is a skipped child.
func (f *Fetcher) fetchLevel(ctx context.Context, t *Tree, claimed []crates.Dependency) ([]*node, error) {
	out := make([]*node, len(claimed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)
	for i, d := range claimed {
		g.Go(func() error {
			n, err := f.fetchChild(gctx, t, d)
			if err == nil {
				out[i] = n
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.fail()
			f.opts.Logger.Debug("skipped dependency", "crate", d.CrateID, "req", d.Req, "err", err)
			observability.Resolve().OnFetchFailed(ctx, d.CrateID, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Fetcher) fetchChild(ctx context.Context, t *Tree, d crates.Dependency) (*node, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.FetchTimeout)
	defer cancel()

	version, err := f.resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	t.setResolved(d.CrateID, version)

	resp, err := f.registry.FetchDependencies(ctx, d.CrateID, version)
	if err != nil {
		return nil, fmt.Errorf("fetch dependencies of %s %s: %w", d.CrateID, version, err)
	}
	return &node{id: d.CrateID, resp: resp}, nil
}

// resolve picks the highest published version of d.CrateID matching d.Req.
func (f *Fetcher) resolve(ctx context.Context, d crates.Dependency) (string, error) {
	nums, err := f.registry.FetchVersions(ctx, d.CrateID)
	if err != nil {
		return "", fmt.Errorf("fetch versions of %s: %w", d.CrateID, err)
	}
	version, ok := versions.MaxSatisfying(d.Req, nums)
	if !ok {
		return "", fmt.Errorf("%w: %s %s", ErrNoMatchingVersion, d.CrateID, d.Req)
	}
	return version, nil
}
