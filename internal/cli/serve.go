package cli

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cratescope/pkg/deps"
	"github.com/matzehuels/cratescope/pkg/observability"
	"github.com/matzehuels/cratescope/pkg/server"
)

// serveCommand creates the serve command that runs the JSON API.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dependency API over HTTP",
		Long: `Serve the dependency API over HTTP.

Endpoints:
  GET /api/crates/{id}/{version}/deps
  GET /api/crates/{id}
  GET /api/search?q=
  GET /healthz
  GET /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				c.Config.Server.Addr = addr
			}
			return c.runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context) error {
	logger := newServerLogger(os.Stderr, c.Logger.GetLevel())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	hooks := observability.NewPrometheusHooks(reg)
	observability.SetResolveHooks(hooks)
	observability.SetCacheHooks(hooks)
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	client, closeCache, err := c.newClient(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	analyzer := deps.NewAnalyzer(client, c.Config.DepsOptions(logger))
	srv := server.New(analyzer, client, server.Options{
		FilterOptions: c.Config.FilterOptions(),
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:        logger,
	})

	logger.Info("starting server",
		"addr", c.Config.Server.Addr,
		"registry", client.BaseURL(),
		"cache", c.Config.Cache.Backend)
	return srv.ListenAndServe(ctx, c.Config.Server.Addr)
}
