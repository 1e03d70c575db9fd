// Package config loads cratescope settings.
//
// Values are layered, later sources overriding earlier ones:
//
//  1. built-in defaults ([Default])
//  2. a TOML file ($XDG_CONFIG_HOME/cratescope/config.toml, or an explicit path)
//  3. a .env file in the working directory
//  4. CRATESCOPE_* environment variables
//
// Command-line flags are applied on top by the CLI.
//
// A minimal config file:
//
//	[registry]
//	rate = 5.0
//
//	[cache]
//	backend = "redis"
//	ttl = "10m"
//
//	[cache.redis]
//	addr = "localhost:6379"
//
//	[resolve]
//	max_depth = 6
//	exclude = ["windows-*", "*-sys"]
package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/matzehuels/cratescope/pkg/cache"
	"github.com/matzehuels/cratescope/pkg/deps"
	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

const appName = "cratescope"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

// Config is the complete runtime configuration.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Cache    CacheConfig    `toml:"cache"`
	Resolve  ResolveConfig  `toml:"resolve"`
	Server   ServerConfig   `toml:"server"`
}

// RegistryConfig configures the crates.io client.
type RegistryConfig struct {
	BaseURL   string        `toml:"base_url"`
	UserAgent string        `toml:"user_agent"`
	Rate      float64       `toml:"rate"`
	Burst     int           `toml:"burst"`
	Timeout   time.Duration `toml:"timeout"`
}

// CacheConfig selects and configures the response cache backend.
type CacheConfig struct {
	Backend string        `toml:"backend"`
	TTL     time.Duration `toml:"ttl"`
	Dir     string        `toml:"dir"`
	Redis   RedisConfig   `toml:"redis"`
	Mongo   MongoConfig   `toml:"mongo"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	DB       int    `toml:"db"`
	Password string `toml:"password"`
}

type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// ResolveConfig holds traversal limits and the dependency filter.
type ResolveConfig struct {
	MaxDepth     int           `toml:"max_depth"`
	Workers      int           `toml:"workers"`
	FetchTimeout time.Duration `toml:"fetch_timeout"`
	Dev          bool          `toml:"dev"`
	Build        bool          `toml:"build"`
	Optional     bool          `toml:"optional"`
	Exclude      []string      `toml:"exclude"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			BaseURL:   crates.DefaultBaseURL,
			UserAgent: crates.UserAgent,
			Rate:      integrations.DefaultRateLimit,
			Burst:     integrations.DefaultBurst,
			Timeout:   10 * time.Second,
		},
		Cache: CacheConfig{
			Backend: BackendFile,
			TTL:     cache.DefaultTTL,
			Mongo: MongoConfig{
				Database:   appName,
				Collection: "response_cache",
			},
		},
		Resolve: ResolveConfig{
			MaxDepth:     deps.DefaultMaxDepth,
			Workers:      deps.DefaultWorkers,
			FetchTimeout: deps.DefaultFetchTimeout,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// DefaultPath returns the config file location used when none is given.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, "config.toml"), nil
}

// Load builds a Config from all sources. An explicit path must exist; the
// default path is skipped when missing.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !stderrors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "load .env")
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "%s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

// Validate checks value ranges and the backend name.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendMemory, BackendFile, BackendNone:
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis.addr is required for the redis backend")
		}
	case BackendMongo:
		if c.Cache.Mongo.URI == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.mongo.uri is required for the mongo backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Registry.BaseURL != "" {
		if err := errors.ValidateURL(c.Registry.BaseURL); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "registry.base_url")
		}
	}
	if c.Resolve.MaxDepth < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "resolve.max_depth must be at least 1")
	}
	if c.Resolve.Workers < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "resolve.workers must be at least 1")
	}
	if _, err := c.Filter(); err != nil {
		return err
	}
	return nil
}

// OpenCache creates the configured cache backend. The caller closes it.
func (c *Config) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Cache.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendMemory:
		return cache.NewMemoryCache(cache.DefaultMemoryEntries, c.Cache.TTL), nil
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
			TTL:      c.Cache.TTL,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open redis cache")
		}
		return rc, nil
	case BackendMongo:
		mc, err := cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:        c.Cache.Mongo.URI,
			Database:   c.Cache.Mongo.Database,
			Collection: c.Cache.Mongo.Collection,
			TTL:        c.Cache.TTL,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open mongo cache")
		}
		return mc, nil
	default:
		dir, err := c.CacheDir()
		if err != nil {
			return nil, err
		}
		fc, err := cache.NewFileCache(dir, c.Cache.TTL)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
}

// CacheDir returns the file cache directory, defaulting to the user cache
// dir ($XDG_CACHE_HOME/cratescope on Linux).
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("user cache dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// CratesClient builds a crates.io client on top of backend.
func (c *Config) CratesClient(backend cache.Cache) *crates.Client {
	return crates.NewClient(c.Registry.BaseURL, backend, c.Cache.TTL,
		integrations.WithHTTPClient(&http.Client{Timeout: c.Registry.Timeout}),
		integrations.WithRateLimit(c.Registry.Rate, c.Registry.Burst),
		integrations.WithHeader("User-Agent", c.Registry.UserAgent),
	)
}

// DepsOptions returns the traversal options for the fetcher.
func (c *Config) DepsOptions(logger *log.Logger) deps.Options {
	return deps.Options{
		MaxDepth:     c.Resolve.MaxDepth,
		Workers:      c.Resolve.Workers,
		FetchTimeout: c.Resolve.FetchTimeout,
		Logger:       logger,
	}
}

// FilterOptions returns the configured dependency filter settings.
func (c *Config) FilterOptions() deps.FilterOptions {
	return deps.FilterOptions{
		Dev:      c.Resolve.Dev,
		Build:    c.Resolve.Build,
		Optional: c.Resolve.Optional,
		Exclude:  c.Resolve.Exclude,
	}
}

// Filter compiles the configured dependency filter.
func (c *Config) Filter() (deps.Filter, error) {
	return deps.NewFilter(c.FilterOptions())
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
