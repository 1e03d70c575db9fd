package deps

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

func checkIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestFetchBaseDepTree_NoDependencies(t *testing.T) {
	reg := newFakeRegistry().publish("root", "1.0.0", 100)

	tree := fetchTree(t, NewFetcher(reg, testOptions()), "root")

	checkIDs(t, "IDs()", tree.IDs(), []string{"root"})
	if ids := tree.DepIDs(); len(ids) != 0 {
		t.Errorf("DepIDs() = %v, want none", ids)
	}
	if tree.Levels() != 1 {
		t.Errorf("Levels() = %d, want 1", tree.Levels())
	}
}

func TestFetchBaseDepTree_ResolvesHighestMatchingVersion(t *testing.T) {
	reg := newFakeRegistry().
		publish("root", "1.0.0", 100, normal("lib", "^2.0")).
		publish("lib", "1.0.0", 10).
		publish("lib", "2.1.0", 20).
		publish("lib", "2.3.0", 30, normal("leaf", "*")).
		publish("lib", "3.0.0", 40).
		publish("leaf", "0.1.0", 5)

	tree := fetchTree(t, NewFetcher(reg, testOptions()), "root")

	if v, ok := tree.Resolved("lib"); !ok || v != "2.3.0" {
		t.Errorf("Resolved(lib) = (%q, %v), want 2.3.0", v, ok)
	}
	if got := reg.count("deps:lib:2.3.0"); got != 1 {
		t.Errorf("deps:lib:2.3.0 fetched %d times, want 1", got)
	}
	checkIDs(t, "IDs()", tree.IDs(), []string{"root", "lib", "leaf"})
}

func TestFetchBaseDepTree_FetchesEachCrateOnce(t *testing.T) {
	// root -> a, b, c; a -> b, c; b -> c; c -> a (cycle)
	reg := newFakeRegistry().
		publish("root", "1.0.0", 1, normal("a", "1"), normal("b", "1"), normal("c", "1")).
		publish("a", "1.0.0", 1, normal("b", "1"), normal("c", "1")).
		publish("b", "1.0.0", 1, normal("c", "1")).
		publish("c", "1.0.0", 1, normal("a", "1"), normal("root", "1"))

	tree := fetchTree(t, NewFetcher(reg, testOptions()), "root")

	ids := slices.Clone(tree.IDs())
	slices.Sort(ids)
	checkIDs(t, "sorted IDs()", ids, []string{"a", "b", "c", "root"})
	for _, id := range []string{"root", "a", "b", "c"} {
		if got := reg.count("deps:" + id + ":1.0.0"); got != 1 {
			t.Errorf("dependencies of %s fetched %d times, want 1", id, got)
		}
	}
	if _, ok := tree.Dep("root"); ok {
		t.Error("a cycle back to the root claimed it again")
	}
}

func TestFetchBaseDepTree_MaxDepthCountsRootLevel(t *testing.T) {
	reg := newFakeRegistry()
	for i := range 12 {
		id := fmt.Sprintf("c%d", i)
		if i == 11 {
			reg.publish(id, "1.0.0", 1)
			continue
		}
		reg.publish(id, "1.0.0", 1, normal(fmt.Sprintf("c%d", i+1), "1"))
	}

	tree := fetchTree(t, NewFetcher(reg, testOptions()), "c0")

	if tree.Len() != DefaultMaxDepth || tree.Levels() != DefaultMaxDepth {
		t.Errorf("Len() = %d, Levels() = %d, want %d", tree.Len(), tree.Levels(), DefaultMaxDepth)
	}
	if _, ok := tree.Links("c9"); !ok {
		t.Error("the last level is not recorded")
	}
	if got := reg.count("crate:c10"); got != 0 {
		t.Errorf("crate:c10 fetched %d times, the last level must not be expanded", got)
	}
}

func TestFetchBaseDepTree_MaxDepthOption(t *testing.T) {
	reg := newFakeRegistry().
		publish("root", "1.0.0", 1, normal("a", "1")).
		publish("a", "1.0.0", 1, normal("b", "1")).
		publish("b", "1.0.0", 1)

	opts := testOptions()
	opts.MaxDepth = 2
	tree := fetchTree(t, NewFetcher(reg, opts), "root")

	checkIDs(t, "IDs()", tree.IDs(), []string{"root", "a"})
}

func TestFetchBaseDepTree_RootFailure(t *testing.T) {
	reg := newFakeRegistry().publish("root", "1.0.0", 1)

	_, err := NewFetcher(reg, testOptions()).FetchBaseDepTree(context.Background(), "root", "9.9.9", nil)
	if !errors.Is(err, errors.ErrCodeInsufficientData) {
		t.Errorf("err = %v, want %s", err, errors.ErrCodeInsufficientData)
	}
}

func TestFetchBaseDepTree_ChildFailureIsLocal(t *testing.T) {
	// chain c0 -> c1 -> ... -> c9; c5's metadata cannot be fetched
	reg := newFakeRegistry()
	for i := range 10 {
		id := fmt.Sprintf("c%d", i)
		if i == 9 {
			reg.publish(id, "1.0.0", 1)
			continue
		}
		reg.publish(id, "1.0.0", 1, normal(fmt.Sprintf("c%d", i+1), "1"))
	}
	reg.failCrate["c5"] = true

	tree := fetchTree(t, NewFetcher(reg, testOptions()), "c0")

	checkIDs(t, "IDs()", tree.IDs(), []string{"c0", "c1", "c2", "c3", "c4"})
	if tree.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", tree.Failed())
	}
	if _, ok := tree.Dep("c5"); !ok {
		t.Error("the failed child left the dep cache")
	}
	if got := reg.count("crate:c6"); got != 0 {
		t.Errorf("crate:c6 fetched %d times, want 0", got)
	}
}

func TestFetchBaseDepTree_UnresolvableRequirement(t *testing.T) {
	reg := newFakeRegistry().
		publish("root", "1.0.0", 1, normal("old", "^5"), normal("ok", "1")).
		publish("old", "1.0.0", 1).
		publish("ok", "1.0.0", 1)

	tree := fetchTree(t, NewFetcher(reg, testOptions()), "root")

	checkIDs(t, "IDs()", tree.IDs(), []string{"root", "ok"})
	checkIDs(t, "DepIDs()", tree.DepIDs(), []string{"old", "ok"})
	if v, ok := tree.Resolved("old"); ok {
		t.Errorf("Resolved(old) = %q, want unresolved", v)
	}
}

func TestFetchBaseDepTree_Filter(t *testing.T) {
	opt := normal("opt", "1")
	opt.Optional = true
	build := normal("cc", "1")
	build.Kind = KindBuild

	reg := newFakeRegistry().
		publish("root", "1.0.0", 1, normal("a", "1"), dev("tester", "1"), opt, build, normal("windows-sys", "1")).
		publish("a", "1.0.0", 1).
		publish("tester", "1.0.0", 1).
		publish("opt", "1.0.0", 1).
		publish("cc", "1.0.0", 1).
		publish("windows-sys", "1.0.0", 1)

	tests := []struct {
		name string
		opts *FilterOptions
		want []string
	}{
		{"default", nil, []string{"root", "a", "windows-sys"}},
		{"dev", &FilterOptions{Dev: true}, []string{"root", "a", "tester", "windows-sys"}},
		{"all kinds", &FilterOptions{Dev: true, Build: true, Optional: true}, []string{"root", "a", "tester", "opt", "cc", "windows-sys"}},
		{"exclude glob", &FilterOptions{Exclude: []string{"windows*"}}, []string{"root", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := Filter(DefaultFilter)
			if tt.opts != nil {
				var err error
				if filter, err = NewFilter(*tt.opts); err != nil {
					t.Fatalf("NewFilter: %v", err)
				}
			}
			tree, err := NewFetcher(reg, testOptions()).FetchBaseDepTree(context.Background(), "root", "1.0.0", filter)
			if err != nil {
				t.Fatalf("FetchBaseDepTree: %v", err)
			}
			checkIDs(t, "IDs()", tree.IDs(), tt.want)
		})
	}
}

func TestNewFilter_InvalidPattern(t *testing.T) {
	_, err := NewFilter(FilterOptions{Exclude: []string{"[unterminated"}})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want %s", err, errors.ErrCodeInvalidInput)
	}
}

func TestFetchBaseDepTree_DeterministicOrder(t *testing.T) {
	reg := newFakeRegistry().
		publish("root", "1.0.0", 1, normal("a", "1"), normal("b", "1"), normal("c", "1")).
		publish("a", "1.0.0", 1, normal("shared", "1"), normal("x", "1")).
		publish("b", "1.0.0", 1, normal("shared", "^1.0"), normal("y", "1")).
		publish("c", "1.0.0", 1, normal("shared", "1")).
		publish("shared", "1.0.0", 1).
		publish("x", "1.0.0", 1).
		publish("y", "1.0.0", 1)
	// later siblings answer first
	reg.delay["a"] = 30 * time.Millisecond
	reg.delay["b"] = 15 * time.Millisecond

	tree := fetchTree(t, NewFetcher(reg, testOptions()), "root")

	checkIDs(t, "IDs()", tree.IDs(), []string{"root", "a", "b", "c", "shared", "x", "y"})
	d, ok := tree.Dep("shared")
	if !ok {
		t.Fatal("shared is not in the dep cache")
	}
	if d.Req != "1" {
		t.Errorf("shared req = %q, want the first parent's edge 1", d.Req)
	}
}

func TestFetchBaseDepTree_FetchTimeoutIsLocal(t *testing.T) {
	reg := newFakeRegistry().
		publish("root", "1.0.0", 1, normal("slow", "1"), normal("fast", "1")).
		publish("slow", "1.0.0", 1).
		publish("fast", "1.0.0", 1)
	reg.delay["slow"] = time.Second

	opts := testOptions()
	opts.FetchTimeout = 20 * time.Millisecond
	tree := fetchTree(t, NewFetcher(reg, opts), "root")

	checkIDs(t, "IDs()", tree.IDs(), []string{"root", "fast"})
	if tree.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", tree.Failed())
	}
}

func TestFetchBaseDepTree_Cancelled(t *testing.T) {
	reg := newFakeRegistry().
		publish("root", "1.0.0", 1, normal("slow", "1")).
		publish("slow", "1.0.0", 1)
	reg.delay["slow"] = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewFetcher(reg, testOptions()).FetchBaseDepTree(ctx, "root", "1.0.0", nil)
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	if opts.MaxDepth != DefaultMaxDepth || opts.Workers != DefaultWorkers || opts.FetchTimeout != DefaultFetchTimeout {
		t.Errorf("defaults = %d/%d/%v", opts.MaxDepth, opts.Workers, opts.FetchTimeout)
	}
	if opts.Logger == nil {
		t.Error("Logger is nil")
	}

	custom := Options{MaxDepth: 3, Workers: 2}.WithDefaults()
	if custom.MaxDepth != 3 || custom.Workers != 2 {
		t.Errorf("custom = %d/%d, want 3/2", custom.MaxDepth, custom.Workers)
	}
}

func TestDefaultFilter(t *testing.T) {
	opt := normal("x", "1")
	opt.Optional = true
	build := normal("x", "1")
	build.Kind = KindBuild

	tests := []struct {
		name string
		dep  crates.Dependency
		want bool
	}{
		{"normal", normal("x", "1"), true},
		{"dev", dev("x", "1"), false},
		{"build", build, false},
		{"optional", opt, false},
		{"empty kind", crates.Dependency{CrateID: "x", Kind: ""}, true},
	}
	for _, tt := range tests {
		if got := DefaultFilter(tt.dep); got != tt.want {
			t.Errorf("DefaultFilter(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
