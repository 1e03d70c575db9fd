package deps

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cratescope/pkg/integrations"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

// fakeRegistry is an in-memory crates.io.
type fakeRegistry struct {
	mu        sync.Mutex
	crates    map[string][]crates.Version    // id -> versions, newest first
	deps      map[string][]crates.Dependency // id:version -> declared deps
	failDeps  map[string]bool                // id -> dependency fetch fails
	failCrate map[string]bool                // id -> metadata fetch fails
	delay     map[string]time.Duration       // id -> dependency fetch latency
	calls     map[string]int                 // endpoint:key -> calls
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		crates:    make(map[string][]crates.Version),
		deps:      make(map[string][]crates.Dependency),
		failDeps:  make(map[string]bool),
		failCrate: make(map[string]bool),
		delay:     make(map[string]time.Duration),
		calls:     make(map[string]int),
	}
}

// publish adds a crate version of the given size declaring deps.
func (r *fakeRegistry) publish(id, version string, size int64, deps ...crates.Dependency) *fakeRegistry {
	r.crates[id] = append([]crates.Version{{Crate: id, Num: version, CrateSize: size}}, r.crates[id]...)
	r.deps[id+":"+version] = deps
	return r
}

func (r *fakeRegistry) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func (r *fakeRegistry) hit(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[key]++
}

func (r *fakeRegistry) FetchCrate(_ context.Context, id string) (*crates.CrateResponse, error) {
	r.hit("crate:" + id)
	versions, ok := r.crates[id]
	if !ok || r.failCrate[id] {
		return nil, fmt.Errorf("%w: crate %s", integrations.ErrNotFound, id)
	}
	resp := &crates.CrateResponse{Versions: versions}
	resp.Crate.Name = id
	resp.Crate.MaxVersion = versions[0].Num
	return resp, nil
}

func (r *fakeRegistry) FetchVersions(ctx context.Context, id string) ([]string, error) {
	resp, err := r.FetchCrate(ctx, id)
	if err != nil {
		return nil, err
	}
	return resp.VersionNums(), nil
}

func (r *fakeRegistry) FetchVersion(_ context.Context, id, version string) (*crates.Version, error) {
	r.hit("version:" + id + ":" + version)
	for _, v := range r.crates[id] {
		if v.Num == version {
			return &v, nil
		}
	}
	return nil, fmt.Errorf("%w: crate %s version %s", integrations.ErrNotFound, id, version)
}

func (r *fakeRegistry) FetchDependencies(ctx context.Context, id, version string) (*crates.DependenciesResponse, error) {
	r.hit("deps:" + id + ":" + version)
	if d := r.delay[id]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.failDeps[id] {
		return nil, fmt.Errorf("%w: status 500", integrations.ErrNetwork)
	}
	deps, ok := r.deps[id+":"+version]
	if !ok {
		return nil, fmt.Errorf("%w: crate %s version %s", integrations.ErrNotFound, id, version)
	}
	return &crates.DependenciesResponse{Dependencies: deps}, nil
}

func normal(id, req string) crates.Dependency {
	return crates.Dependency{CrateID: id, Req: req, Kind: KindNormal, DefaultFeatures: true}
}

func dev(id, req string) crates.Dependency {
	d := normal(id, req)
	d.Kind = KindDev
	return d
}

func testOptions() Options {
	return Options{Logger: log.New(io.Discard), FetchTimeout: 2 * time.Second}
}
