package deps

import (
	"slices"
	"sync"

	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

// Tree is the traversal arena of one resolution. It is created by
// [Fetcher.FetchBaseDepTree], read by [Tree.DepGraph] and [Fetcher.Treemap],
// and discarded afterwards.
//
// A crate id is claimed at most once, so it appears in the link cache at most
// once. Methods are safe for concurrent use.
type Tree struct {
	mu sync.Mutex

	rootID      string
	rootVersion string

	links     map[string]*crates.DependenciesResponse // what a crate depends on
	linkOrder []string
	deps      map[string]crates.Dependency // first edge that reached a crate
	depOrder  []string
	data      map[string]*crates.Version // version records, filled by Treemap
	resolved  map[string]string          // version chosen during traversal
	claimed   map[string]bool

	levels int
	failed int
}

func newTree(rootID, rootVersion string) *Tree {
	return &Tree{
		rootID:      rootID,
		rootVersion: rootVersion,
		links:       make(map[string]*crates.DependenciesResponse),
		deps:        make(map[string]crates.Dependency),
		data:        make(map[string]*crates.Version),
		resolved:    make(map[string]string),
		claimed:     make(map[string]bool),
	}
}

// Root returns the id and version the tree was built from.
func (t *Tree) Root() (id, version string) { return t.rootID, t.rootVersion }

// claim marks id as scheduled. It reports false if id was already claimed.
func (t *Tree) claim(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.claimed[id] {
		return false
	}
	t.claimed[id] = true
	return true
}

func (t *Tree) setLinks(id string, resp *crates.DependenciesResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.links[id]; ok {
		return
	}
	t.links[id] = resp
	t.linkOrder = append(t.linkOrder, id)
}

// setDep records the edge that reached d.CrateID. The first writer wins.
func (t *Tree) setDep(d crates.Dependency) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.deps[d.CrateID]; ok {
		return
	}
	t.deps[d.CrateID] = d
	t.depOrder = append(t.depOrder, d.CrateID)
}

func (t *Tree) setResolved(id, version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolved[id] = version
}

func (t *Tree) setData(id string, v *crates.Version) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[id] = v
}

func (t *Tree) fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed++
}

// Links returns the dependency response recorded for id.
func (t *Tree) Links(id string) (*crates.DependenciesResponse, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.links[id]
	return r, ok
}

// Dep returns the first edge that reached id. The root has none.
func (t *Tree) Dep(id string) (crates.Dependency, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.deps[id]
	return d, ok
}

// Resolved returns the version chosen for id during traversal.
func (t *Tree) Resolved(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.resolved[id]
	return v, ok
}

// Data returns the version record fetched for id by the treemap.
func (t *Tree) Data(id string) (*crates.Version, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.data[id]
	return v, ok
}

// IDs returns the crates in the link cache in discovery order.
func (t *Tree) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.linkOrder)
}

// DepIDs returns the crates in the dep cache in claim order. This includes
// children whose fetch failed.
func (t *Tree) DepIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.depOrder)
}

// Len returns the number of crates in the link cache.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.linkOrder)
}

// Failed returns how many claimed children were skipped.
func (t *Tree) Failed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// Levels returns how many levels were visited, including the root's.
func (t *Tree) Levels() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.levels
}
