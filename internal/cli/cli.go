// Package cli implements the cratescope command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cratescope/pkg/buildinfo"
	"github.com/matzehuels/cratescope/pkg/cache"
	"github.com/matzehuels/cratescope/pkg/config"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "cratescope"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before any subcommand runs.
	Config *config.Config

	configPath string
	noCache    bool
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Cratescope resolves and visualizes crates.io dependency trees",
		Long: `Cratescope resolves the transitive dependencies of a crates.io crate,
sizes them, and exports the result as JSON, Graphviz DOT or SVG.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/cratescope/config.toml)")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable the response cache")

	root.AddCommand(c.depsCommand())
	root.AddCommand(c.crateCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration and attaches the logger to the command context.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	if c.verbose {
		c.SetLogLevel(LogDebug)
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.noCache {
		cfg.Cache.Backend = config.BackendNone
	}
	c.Config = cfg

	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}

// =============================================================================
// Client Factory
// =============================================================================

// newClient opens the configured cache and a crates.io client on top of it.
// The returned func closes the cache.
func (c *CLI) newClient(ctx context.Context) (*crates.Client, func(), error) {
	backend, err := c.Config.OpenCache(ctx)
	if err != nil {
		if c.Config.Cache.Backend != config.BackendFile {
			return nil, nil, err
		}
		// An unusable cache directory only costs speed.
		c.Logger.Warn("file cache unavailable, continuing without cache", "err", err)
		backend = cache.NewNullCache()
	}
	c.Logger.Debug("cache", "backend", c.Config.Cache.Backend, "ttl", c.Config.Cache.TTL)
	return c.Config.CratesClient(backend), func() { _ = backend.Close() }, nil
}
