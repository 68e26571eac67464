package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusHooks records resolution, cache and HTTP events as Prometheus
// metrics. It implements [ResolveHooks], [CacheHooks] and [HTTPHooks].
type PrometheusHooks struct {
	gatherer prometheus.Gatherer

	runDuration      prometheus.Histogram
	runErrors        prometheus.Counter
	bundlesResolved  *prometheus.CounterVec
	unresolved       *prometheus.CounterVec
	forks            *prometheus.CounterVec
	indexDuration    prometheus.Histogram
	indexUnits       prometheus.Gauge
	indexErrors      prometheus.Counter
	artifactFetches  *prometheus.CounterVec
	artifactBytes    prometheus.Counter
	artifactDuration prometheus.Histogram
	cacheEvents      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     prometheus.Histogram
	httpErrors       prometheus.Counter
}

// NewPrometheusHooks creates the metrics and registers them with reg.
func NewPrometheusHooks(reg *prometheus.Registry) *PrometheusHooks {
	h := &PrometheusHooks{
		gatherer: reg,
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "launchtower_resolve_duration_seconds",
			Help:    "Time taken to resolve a product.",
			Buckets: prometheus.DefBuckets,
		}),
		runErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "launchtower_resolve_error_total",
			Help: "Number of resolution runs that failed.",
		}),
		bundlesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchtower_bundles_resolved_total",
			Help: "Number of bundles added to a result, by source.",
		}, []string{"source"}),
		unresolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchtower_unresolved_total",
			Help: "Number of references that could not be resolved, by kind.",
		}, []string{"kind"}),
		forks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchtower_forks_total",
			Help: "Number of speculative result forks, by outcome.",
		}, []string{"outcome"}),
		indexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "launchtower_index_duration_seconds",
			Help:    "Time taken to index one repository node.",
			Buckets: prometheus.DefBuckets,
		}),
		indexUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "launchtower_index_units",
			Help: "Number of units in the last indexed repository node.",
		}),
		indexErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "launchtower_index_error_total",
			Help: "Number of repository nodes that failed to index.",
		}),
		artifactFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchtower_artifact_fetch_total",
			Help: "Number of artifact downloads, by result.",
		}, []string{"result"}),
		artifactBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "launchtower_artifact_bytes_total",
			Help: "Bytes written for downloaded artifacts.",
		}),
		artifactDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "launchtower_artifact_fetch_duration_seconds",
			Help:    "Time taken to download one artifact.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchtower_cache_events_total",
			Help: "Cache operations by key type and event.",
		}, []string{"key_type", "event"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchtower_http_requests_total",
			Help: "HTTP requests by method, host and status code.",
		}, []string{"method", "host", "code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "launchtower_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		httpErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "launchtower_http_error_total",
			Help: "HTTP requests that failed without a response.",
		}),
	}

	reg.MustRegister(
		h.runDuration,
		h.runErrors,
		h.bundlesResolved,
		h.unresolved,
		h.forks,
		h.indexDuration,
		h.indexUnits,
		h.indexErrors,
		h.artifactFetches,
		h.artifactBytes,
		h.artifactDuration,
		h.cacheEvents,
		h.httpRequests,
		h.httpDuration,
		h.httpErrors,
	)
	return h
}

// WriteTextfile writes all registered metrics to path in the text exposition
// format, for the node exporter's textfile collector.
func (h *PrometheusHooks) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, h.gatherer)
}

func (h *PrometheusHooks) OnResolveStart(context.Context, string) {}

func (h *PrometheusHooks) OnResolveComplete(_ context.Context, _ string, _, _ int, d time.Duration, err error) {
	h.runDuration.Observe(d.Seconds())
	if err != nil {
		h.runErrors.Inc()
	}
}

func (h *PrometheusHooks) OnBundleResolved(_ context.Context, _, _, source string) {
	h.bundlesResolved.WithLabelValues(source).Inc()
}

func (h *PrometheusHooks) OnUnresolved(_ context.Context, kind, _ string) {
	h.unresolved.WithLabelValues(kind).Inc()
}

func (h *PrometheusHooks) OnForkComplete(_ context.Context, merged bool) {
	outcome := "discarded"
	if merged {
		outcome = "merged"
	}
	h.forks.WithLabelValues(outcome).Inc()
}

func (h *PrometheusHooks) OnIndexComplete(_ context.Context, _ string, units int, d time.Duration, err error) {
	h.indexDuration.Observe(d.Seconds())
	if err != nil {
		h.indexErrors.Inc()
		return
	}
	h.indexUnits.Set(float64(units))
}

func (h *PrometheusHooks) OnArtifactFetch(_ context.Context, _ string, size int64, d time.Duration, err error) {
	if err != nil {
		h.artifactFetches.WithLabelValues("error").Inc()
		return
	}
	h.artifactFetches.WithLabelValues("ok").Inc()
	h.artifactBytes.Add(float64(size))
	h.artifactDuration.Observe(d.Seconds())
}

func (h *PrometheusHooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (h *PrometheusHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (h *PrometheusHooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	h.cacheEvents.WithLabelValues(keyType, "set").Inc()
}

func (h *PrometheusHooks) OnRequest(context.Context, string, string, string) {}

func (h *PrometheusHooks) OnResponse(_ context.Context, method, host, _ string, code int, d time.Duration) {
	h.httpRequests.WithLabelValues(method, host, strconv.Itoa(code)).Inc()
	h.httpDuration.Observe(d.Seconds())
}

func (h *PrometheusHooks) OnError(context.Context, string, string, string, error) {
	h.httpErrors.Inc()
}

var (
	_ ResolveHooks = (*PrometheusHooks)(nil)
	_ CacheHooks   = (*PrometheusHooks)(nil)
	_ HTTPHooks    = (*PrometheusHooks)(nil)
)
