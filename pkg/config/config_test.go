package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/cratescope/pkg/cache"
	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// isolate points the default config location at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, crates.DefaultBaseURL, cfg.Registry.BaseURL)
	assert.Equal(t, BackendFile, cfg.Cache.Backend)
	assert.Equal(t, 600*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 10, cfg.Resolve.MaxDepth)
	assert.Equal(t, 20, cfg.Resolve.Workers)
	assert.Equal(t, 30*time.Second, cfg.Resolve.FetchTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
[registry]
rate = 2.5
timeout = "5s"

[cache]
backend = "memory"
ttl = "1m"

[resolve]
max_depth = 4
dev = true
exclude = ["windows-*"]

[server]
addr = "127.0.0.1:9000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Registry.Rate)
	assert.Equal(t, 5*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 4, cfg.Resolve.MaxDepth)
	assert.True(t, cfg.Resolve.Dev)
	assert.Equal(t, []string{"windows-*"}, cfg.Resolve.Exclude)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	// untouched keys keep their defaults
	assert.Equal(t, 20, cfg.Resolve.Workers)
}

func TestLoadDefaultPath(t *testing.T) {
	isolate(t)
	path, err := DefaultPath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("[resolve]\nworkers = 3\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Resolve.Workers)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "[cache\nbackend = 1"},
		{"unknown key", "[cache]\nbakend = \"memory\""},
		{"unknown backend", "[cache]\nbackend = \"sqlite\""},
		{"redis without addr", "[cache]\nbackend = \"redis\""},
		{"mongo without uri", "[cache]\nbackend = \"mongo\""},
		{"zero depth", "[resolve]\nmax_depth = 0"},
		{"zero workers", "[resolve]\nworkers = 0"},
		{"bad url", "[registry]\nbase_url = \"ftp://example.com\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig), "got %v", err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadBadExclude(t *testing.T) {
	isolate(t)
	_, err := Load(writeConfig(t, "[resolve]\nexclude = [\"[unterminated\"]"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "[resolve]\nmax_depth = 4\n")
	t.Setenv("CRATESCOPE_MAX_DEPTH", "7")
	t.Setenv("CRATESCOPE_CACHE_BACKEND", "none")
	t.Setenv("CRATESCOPE_EXCLUDE", "a-*, b ,,")
	t.Setenv("CRATESCOPE_FETCH_TIMEOUT", "2s")
	t.Setenv("CRATESCOPE_OPTIONAL", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Resolve.MaxDepth)
	assert.Equal(t, BackendNone, cfg.Cache.Backend)
	assert.Equal(t, []string{"a-*", "b"}, cfg.Resolve.Exclude)
	assert.Equal(t, 2*time.Second, cfg.Resolve.FetchTimeout)
	assert.True(t, cfg.Resolve.Optional)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CRATESCOPE_RATE":         "1.5",
		"CRATESCOPE_BURST":        "4",
		"CRATESCOPE_REDIS_ADDR":   "redis:6379",
		"CRATESCOPE_REDIS_DB":     "2",
		"CRATESCOPE_ADDR":         ":9999",
		"CRATESCOPE_USER_AGENT":   "",
		"CRATESCOPE_MONGO_URI":    "mongodb://db",
		"UNRELATED_MAX_DEPTH":     "1",
		"CRATESCOPE_HTTP_TIMEOUT": "3s",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, 1.5, cfg.Registry.Rate)
	assert.Equal(t, 4, cfg.Registry.Burst)
	assert.Equal(t, 3*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, "mongodb://db", cfg.Cache.Mongo.URI)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, crates.UserAgent, cfg.Registry.UserAgent, "empty values are ignored")
	assert.Equal(t, 10, cfg.Resolve.MaxDepth)
}

func TestApplyEnvInvalid(t *testing.T) {
	for _, key := range []string{"CRATESCOPE_WORKERS", "CRATESCOPE_RATE", "CRATESCOPE_DEV", "CRATESCOPE_CACHE_TTL"} {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(func(k string) (string, bool) {
				if k == key {
					return "not-a-value", true
				}
				return "", false
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()

	cfg := Default()
	cfg.Cache.Backend = BackendNone
	c, err := cfg.OpenCache(ctx)
	require.NoError(t, err)
	assert.IsType(t, cache.NullCache{}, c)

	cfg.Cache.Backend = BackendMemory
	c, err = cfg.OpenCache(ctx)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)
	require.NoError(t, c.Close())

	cfg.Cache.Backend = BackendFile
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "responses")
	c, err = cfg.OpenCache(ctx)
	require.NoError(t, err)
	fc, ok := c.(*cache.FileCache)
	require.True(t, ok)
	assert.Equal(t, cfg.Cache.Dir, fc.Dir())
}

func TestCacheDirDefault(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	base, err := os.UserCacheDir()
	require.NoError(t, err)
	dir, err := Default().CacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, appName), dir)
}

func TestBuilders(t *testing.T) {
	cfg := Default()
	cfg.Registry.BaseURL = "http://registry.test/api/v1"
	cfg.Resolve.MaxDepth = 3
	cfg.Resolve.Exclude = []string{"winapi*"}

	client := cfg.CratesClient(cache.NewNullCache())
	assert.Equal(t, "http://registry.test/api/v1", client.BaseURL())

	opts := cfg.DepsOptions(nil)
	assert.Equal(t, 3, opts.MaxDepth)
	assert.Equal(t, 20, opts.Workers)

	filter, err := cfg.Filter()
	require.NoError(t, err)
	assert.False(t, filter(crates.Dependency{CrateID: "winapi-util", Kind: "normal"}))
	assert.True(t, filter(crates.Dependency{CrateID: "serde", Kind: "normal"}))
	assert.False(t, filter(crates.Dependency{CrateID: "proptest", Kind: "dev"}))
}
