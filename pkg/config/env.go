package config

import (
	"strconv"
	"time"

	"github.com/matzehuels/cratescope/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CRATESCOPE_"

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

type envBinding struct {
	key string
	set func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"REGISTRY_URL", func(c *Config, v string) error { c.Registry.BaseURL = v; return nil }},
	{"USER_AGENT", func(c *Config, v string) error { c.Registry.UserAgent = v; return nil }},
	{"RATE", floatVar(func(c *Config) *float64 { return &c.Registry.Rate })},
	{"BURST", intVar(func(c *Config) *int { return &c.Registry.Burst })},
	{"HTTP_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Registry.Timeout })},

	{"CACHE_BACKEND", func(c *Config, v string) error { c.Cache.Backend = v; return nil }},
	{"CACHE_TTL", durationVar(func(c *Config) *time.Duration { return &c.Cache.TTL })},
	{"CACHE_DIR", func(c *Config, v string) error { c.Cache.Dir = v; return nil }},
	{"REDIS_ADDR", func(c *Config, v string) error { c.Cache.Redis.Addr = v; return nil }},
	{"REDIS_DB", intVar(func(c *Config) *int { return &c.Cache.Redis.DB })},
	{"REDIS_PASSWORD", func(c *Config, v string) error { c.Cache.Redis.Password = v; return nil }},
	{"MONGO_URI", func(c *Config, v string) error { c.Cache.Mongo.URI = v; return nil }},
	{"MONGO_DATABASE", func(c *Config, v string) error { c.Cache.Mongo.Database = v; return nil }},
	{"MONGO_COLLECTION", func(c *Config, v string) error { c.Cache.Mongo.Collection = v; return nil }},

	{"MAX_DEPTH", intVar(func(c *Config) *int { return &c.Resolve.MaxDepth })},
	{"WORKERS", intVar(func(c *Config) *int { return &c.Resolve.Workers })},
	{"FETCH_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Resolve.FetchTimeout })},
	{"DEV", boolVar(func(c *Config) *bool { return &c.Resolve.Dev })},
	{"BUILD", boolVar(func(c *Config) *bool { return &c.Resolve.Build })},
	{"OPTIONAL", boolVar(func(c *Config) *bool { return &c.Resolve.Optional })},
	{"EXCLUDE", func(c *Config, v string) error { c.Resolve.Exclude = splitList(v); return nil }},

	{"ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
}

// applyEnv overrides fields from CRATESCOPE_* variables. Empty values are
// ignored.
func (c *Config) applyEnv(lookup lookupFunc) error {
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, v); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s%s", EnvPrefix, b.key)
		}
	}
	return nil
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatVar(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
