package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

// fakeCratesIO serves a three-crate registry:
//
//	app 1.0.0 -> lib ^1 (normal), dev 0.1 (dev)
//	lib 1.2.0, 1.1.0
//	dev 0.1.0
func fakeCratesIO(t *testing.T) *httptest.Server {
	t.Helper()
	versions := map[string][]crates.Version{
		"app": {{Crate: "app", Num: "1.0.0", CrateSize: 2048, License: "MIT"}},
		"lib": {{Crate: "lib", Num: "1.2.0", CrateSize: 1024}, {Crate: "lib", Num: "1.1.0", CrateSize: 900, Yanked: true}},
		"dev": {{Crate: "dev", Num: "0.1.0", CrateSize: 10}},
	}
	dependencies := map[string][]crates.Dependency{
		"app:1.0.0": {
			{CrateID: "lib", Req: "^1", Kind: "normal"},
			{CrateID: "dev", Req: "0.1", Kind: "dev"},
		},
	}
	find := func(id, num string) (crates.Version, bool) {
		for _, v := range versions[id] {
			if v.Num == num {
				return v, true
			}
		}
		return crates.Version{}, false
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /crates", func(w http.ResponseWriter, r *http.Request) {
		var resp crates.SearchResponse
		if r.URL.Query().Get("q") == "lib" {
			resp.Crates = []crates.Crate{{ID: "lib", Name: "lib", MaxVersion: "1.2.0", Description: "a library", Downloads: 12345}}
			resp.Meta.Total = 1
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /crates/{id}", func(w http.ResponseWriter, r *http.Request) {
		vs, ok := versions[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		resp := crates.CrateResponse{Versions: vs}
		resp.Crate.ID = r.PathValue("id")
		resp.Crate.Name = r.PathValue("id")
		resp.Crate.MaxVersion = vs[0].Num
		resp.Crate.Repository = "https://example.com/" + r.PathValue("id")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /crates/{id}/downloads", func(w http.ResponseWriter, r *http.Request) {
		resp := crates.DownloadsResponse{VersionDownloads: []crates.VersionDownloads{
			{Version: 1, Date: "2026-10-01", Downloads: 1000},
			{Version: 2, Date: "2026-10-01", Downloads: 500},
			{Version: 1, Date: "2026-10-02", Downloads: 700},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /crates/{id}/{version}", func(w http.ResponseWriter, r *http.Request) {
		v, ok := find(r.PathValue("id"), r.PathValue("version"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(crates.VersionResponse{Version: v})
	})
	mux.HandleFunc("GET /crates/{id}/{version}/dependencies", func(w http.ResponseWriter, r *http.Request) {
		v, ok := find(r.PathValue("id"), r.PathValue("version"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		ds := dependencies[r.PathValue("id")+":"+v.Num]
		_ = json.NewEncoder(w).Encode(crates.DependenciesResponse{Dependencies: ds})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// runCLI executes the root command against registryURL with an isolated
// config and cache. It returns what the command wrote to stdout.
func runCLI(t *testing.T, registryURL string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("CRATESCOPE_REGISTRY_URL", registryURL)
	t.Setenv("CRATESCOPE_CACHE_BACKEND", "memory")
	t.Setenv("CRATESCOPE_RATE", "0")

	prev := statusOut
	statusOut = io.Discard
	t.Cleanup(func() { statusOut = prev })

	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
