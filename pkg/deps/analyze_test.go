package deps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/cratescope/pkg/cache"
	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

// registryServer serves a fakeRegistry over the crates.io URL layout.
func registryServer(t *testing.T, reg *fakeRegistry, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		var (
			body any
			err  error
		)
		switch {
		case len(parts) == 2 && parts[0] == "crates":
			body, err = reg.FetchCrate(r.Context(), parts[1])
		case len(parts) == 3 && parts[0] == "crates":
			var v *crates.Version
			v, err = reg.FetchVersion(r.Context(), parts[1], parts[2])
			if err == nil {
				body = crates.VersionResponse{Version: *v}
			}
		case len(parts) == 4 && parts[3] == "dependencies":
			body, err = reg.FetchDependencies(r.Context(), parts[1], parts[2])
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func diamondRegistry() *fakeRegistry {
	return newFakeRegistry().
		publish("root", "1.0.0", 400, normal("a", "1"), normal("b", "1"), dev("tester", "1")).
		publish("a", "1.0.0", 200, normal("b", "1"), normal("c", "0.3")).
		publish("b", "1.0.0", 300).
		publish("c", "0.3.1", 100).
		publish("tester", "1.0.0", 50)
}

func analyze(t *testing.T, a *Analyzer, id, version string, filter Filter) *Result {
	t.Helper()
	res, err := a.Analyze(context.Background(), id, version, filter)
	if err != nil {
		t.Fatalf("Analyze(%s, %s): %v", id, version, err)
	}
	return res
}

func TestAnalyze(t *testing.T) {
	res := analyze(t, NewAnalyzer(diamondRegistry(), testOptions()), "root", "1.0.0", DefaultFilter)

	if res.TreemapRoot.Name != TreemapRootName {
		t.Errorf("treemap root = %q, want %q", res.TreemapRoot.Name, TreemapRootName)
	}
	wantChildren := []TreemapEntry{
		{Name: "root", Value: 400},
		{Name: "b", Value: 300},
		{Name: "a", Value: 200},
		{Name: "c", Value: 100},
	}
	if !reflect.DeepEqual(res.TreemapRoot.Children, wantChildren) {
		t.Errorf("children = %+v, want %+v", res.TreemapRoot.Children, wantChildren)
	}
	if res.UnknownSizeCrate != 0 {
		t.Errorf("UnknownSizeCrate = %d, want 0", res.UnknownSizeCrate)
	}

	checkIDs(t, "nodes", res.DepData.NodeIDs(), []string{"root", "a", "b", "c"})
	wantLinks := []Link{
		{Source: "root", Target: "a", Distance: 1},
		{Source: "root", Target: "b", Distance: 1},
		{Source: "a", Target: "c", Distance: 2},
	}
	if !reflect.DeepEqual(res.DepData.Links, wantLinks) {
		t.Errorf("links = %+v, want %+v", res.DepData.Links, wantLinks)
	}
	checkGraphInvariants(t, res.DepData, "root")

	s := res.Stats
	if s.Crate != "root" || s.Crates != 4 || s.Levels != 3 || s.Size != 1000 {
		t.Errorf("stats = %+v, want root with 4 crates, 3 levels, 1000 bytes", s)
	}
}

func TestAnalyze_DefaultVersion(t *testing.T) {
	reg := diamondRegistry().publish("root", "1.1.0", 10)

	res := analyze(t, NewAnalyzer(reg, testOptions()), "root", "", nil)

	if res.Stats.Version != "1.1.0" {
		t.Errorf("version = %q, want 1.1.0", res.Stats.Version)
	}
	checkIDs(t, "nodes", res.DepData.NodeIDs(), []string{"root"})
}

func TestAnalyze_Errors(t *testing.T) {
	a := NewAnalyzer(diamondRegistry(), testOptions())

	tests := []struct {
		name    string
		id      string
		version string
		code    errors.Code
	}{
		{"invalid id", "../etc", "1.0.0", errors.ErrCodeInvalidPackage},
		{"invalid version", "root", "1.0/../x", errors.ErrCodeInvalidVersion},
		{"unknown crate", "nope", "1.0.0", errors.ErrCodePackageNotFound},
		{"unknown version", "root", "7.0.0", errors.ErrCodeInsufficientData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Analyze(context.Background(), tt.id, tt.version, nil)
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %q, want %q (err: %v)", got, tt.code, err)
			}
		})
	}
}

func TestAnalyze_RootRecordFallsBackToFetch(t *testing.T) {
	reg := diamondRegistry()
	a := NewAnalyzer(reg, testOptions())

	// the crate listing omits the requested version
	a.Registry = &trimmedRegistry{fakeRegistry: reg, hide: "1.0.0"}

	res := analyze(t, a, "root", "1.0.0", nil)

	if got := reg.count("version:root:1.0.0"); got != 1 {
		t.Errorf("version:root:1.0.0 fetched %d times, want 1", got)
	}
	if want := (TreemapEntry{Name: "root", Value: 400}); !slices.Contains(res.TreemapRoot.Children, want) {
		t.Errorf("children %+v lack %+v", res.TreemapRoot.Children, want)
	}
}

// trimmedRegistry hides one version of the root from FetchCrate.
type trimmedRegistry struct {
	*fakeRegistry
	hide string
}

func (r *trimmedRegistry) FetchCrate(ctx context.Context, id string) (*crates.CrateResponse, error) {
	resp, err := r.fakeRegistry.FetchCrate(ctx, id)
	if err != nil || id != "root" {
		return resp, err
	}
	trimmed := *resp
	trimmed.Versions = nil
	for _, v := range resp.Versions {
		if v.Num != r.hide {
			trimmed.Versions = append(trimmed.Versions, v)
		}
	}
	return &trimmed, nil
}

func TestAnalyze_WarmCacheIsIdempotent(t *testing.T) {
	var hits atomic.Int32
	srv := registryServer(t, diamondRegistry(), &hits)

	client := crates.NewClient(srv.URL, cache.NewMemoryCache(1000, time.Hour), time.Hour,
		integrations.WithRateLimit(0, 0),
		integrations.WithRetry(1, time.Millisecond))
	a := NewAnalyzer(client, testOptions())

	cold := analyze(t, a, "root", "1.0.0", nil)
	coldHits := hits.Load()
	if coldHits == 0 {
		t.Fatal("cold run did not reach the registry")
	}

	warm := analyze(t, a, "root", "1.0.0", nil)

	if got := hits.Load(); got != coldHits {
		t.Errorf("warm run made %d requests, want it served from the cache", got-coldHits)
	}
	if !reflect.DeepEqual(cold.DepData, warm.DepData) {
		t.Errorf("graph changed: %+v vs %+v", cold.DepData, warm.DepData)
	}
	if !reflect.DeepEqual(cold.TreemapRoot, warm.TreemapRoot) || cold.UnknownSizeCrate != warm.UnknownSizeCrate {
		t.Errorf("treemap changed: %+v vs %+v", cold.TreemapRoot, warm.TreemapRoot)
	}
}

func TestResultJSON(t *testing.T) {
	res := analyze(t, NewAnalyzer(diamondRegistry(), testOptions()), "root", "1.0.0", nil)

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"treemapRoot", "unknownSizeCrate", "depData"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("result JSON lacks %q", key)
		}
	}
	for _, want := range []string{`"attr":null`, `"crate_id":"a"`} {
		if !strings.Contains(string(decoded["depData"]), want) {
			t.Errorf("depData lacks %s: %s", want, decoded["depData"])
		}
	}
}
