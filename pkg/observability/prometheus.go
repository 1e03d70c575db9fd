package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusHooks implements ResolveHooks, CacheHooks and HTTPHooks by
// recording Prometheus metrics.
type PrometheusHooks struct {
	resolveDuration *prometheus.HistogramVec
	resolveNodes    prometheus.Histogram
	fetchFailures   prometheus.Counter
	unknownSizes    prometheus.Counter

	cacheEvents *prometheus.CounterVec
	cacheBytes  *prometheus.CounterVec

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
}

// NewPrometheusHooks creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	f := promauto.With(reg)
	return &PrometheusHooks{
		resolveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cratescope_resolve_duration_seconds",
			Help:    "Time to resolve a crate's dependency closure.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		resolveNodes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cratescope_resolve_nodes",
			Help:    "Number of crates in a resolved dependency graph.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		fetchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "cratescope_fetch_failures_total",
			Help: "Non-root fetches skipped during resolution.",
		}),
		unknownSizes: f.NewCounter(prometheus.CounterOpts{
			Name: "cratescope_treemap_unknown_size_total",
			Help: "Crates whose size could not be determined.",
		}),
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cratescope_cache_events_total",
			Help: "Response cache events by namespace.",
		}, []string{"namespace", "event"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cratescope_cache_written_bytes_total",
			Help: "Bytes written to the response cache.",
		}, []string{"namespace"}),
		upstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cratescope_upstream_requests_total",
			Help: "Registry responses by status code.",
		}, []string{"host", "code"}),
		upstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cratescope_upstream_request_duration_seconds",
			Help:    "Registry request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		upstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cratescope_upstream_errors_total",
			Help: "Registry requests that failed without a response.",
		}, []string{"host"}),
	}
}

func (p *PrometheusHooks) OnResolveStart(context.Context, string, string) {}

func (p *PrometheusHooks) OnResolveComplete(_ context.Context, _, _ string, nodeCount int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.resolveDuration.WithLabelValues(status).Observe(d.Seconds())
	if err == nil {
		p.resolveNodes.Observe(float64(nodeCount))
	}
}

func (p *PrometheusHooks) OnFetchFailed(context.Context, string, error) {
	p.fetchFailures.Inc()
}

func (p *PrometheusHooks) OnTreemap(_ context.Context, _ string, _, unknown int) {
	p.unknownSizes.Add(float64(unknown))
}

func (p *PrometheusHooks) OnCacheHit(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (p *PrometheusHooks) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (p *PrometheusHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	p.cacheEvents.WithLabelValues(keyType, "set").Inc()
	p.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (p *PrometheusHooks) OnRequest(context.Context, string, string, string) {}

func (p *PrometheusHooks) OnResponse(_ context.Context, _, host, _ string, code int, d time.Duration) {
	p.upstreamRequests.WithLabelValues(host, strconv.Itoa(code)).Inc()
	p.upstreamDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (p *PrometheusHooks) OnError(_ context.Context, _, host, _ string, _ error) {
	p.upstreamErrors.WithLabelValues(host).Inc()
}

var (
	_ ResolveHooks = (*PrometheusHooks)(nil)
	_ CacheHooks   = (*PrometheusHooks)(nil)
	_ HTTPHooks    = (*PrometheusHooks)(nil)
)
