package deps

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/cratescope/pkg/integrations/crates"
	"github.com/matzehuels/cratescope/pkg/observability"
)

// TreemapRootName is the label of the treemap's root.
const TreemapRootName = "N/A"

// Treemap ranks the crates of a resolution by published archive size.
type Treemap struct {
	Root TreemapRoot `json:"treemapRoot"`
	// UnknownSizeCrate counts crates whose size could not be determined.
	UnknownSizeCrate int `json:"unknownSizeCrate"`
}

// TreemapRoot is the top of the treemap hierarchy.
type TreemapRoot struct {
	Name     string         `json:"name"`
	Children []TreemapEntry `json:"children"`
}

// TreemapEntry is one crate and its size in bytes.
type TreemapEntry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Total returns the summed size of all entries.
func (m *Treemap) Total() int64 {
	var total int64
	for _, c := range m.Root.Children {
		total += c.Value
	}
	return total
}

// Treemap fetches the version record of every crate in the tree's dep cache
// and ranks them by size. rootRecord, when non-nil, is added as is.
//
// Every dep-cache crate is attempted, including children that failed during
// traversal. Entries without a crate name or with a zero size are dropped and
// counted in UnknownSizeCrate. Children are sorted by size descending, ties by
// name. Only cancellation of ctx is returned as an error.
func (f *Fetcher) Treemap(ctx context.Context, t *Tree, rootRecord *crates.Version) (*Treemap, error) {
	ids := t.DepIDs()
	records := make([]*crates.Version, len(ids), len(ids)+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)
	for i, id := range ids {
		g.Go(func() error {
			v, err := f.fetchRecord(gctx, t, id)
			if err == nil {
				records[i] = v
				t.setData(id, v)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.opts.Logger.Debug("unknown crate size", "crate", id, "err", err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if rootRecord != nil {
		records = append(records, rootRecord)
		rootID, _ := t.Root()
		t.setData(rootID, rootRecord)
	}

	children := make([]TreemapEntry, 0, len(records))
	for _, r := range records {
		if r == nil || r.Crate == "" || r.CrateSize <= 0 {
			continue
		}
		children = append(children, TreemapEntry{Name: r.Crate, Value: r.CrateSize})
	}
	slices.SortStableFunc(children, func(a, b TreemapEntry) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	m := &Treemap{
		Root:             TreemapRoot{Name: TreemapRootName, Children: children},
		UnknownSizeCrate: len(records) - len(children),
	}
	rootID, _ := t.Root()
	observability.Resolve().OnTreemap(ctx, rootID, len(children), m.UnknownSizeCrate)
	return m, nil
}

// fetchRecord returns the version record of id, reusing the version chosen
// during traversal when there is one.
func (f *Fetcher) fetchRecord(ctx context.Context, t *Tree, id string) (*crates.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.FetchTimeout)
	defer cancel()

	version, ok := t.Resolved(id)
	if !ok {
		d, _ := t.Dep(id)
		var err error
		if version, err = f.resolve(ctx, d); err != nil {
			return nil, err
		}
	}
	v, err := f.registry.FetchVersion(ctx, id, version)
	if err != nil {
		return nil, fmt.Errorf("fetch version %s %s: %w", id, version, err)
	}
	return v, nil
}
