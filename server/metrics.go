package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects pipeline counters on a private registry so plugin restarts
// never trip duplicate-registration panics in the server process.
type Metrics struct {
	registry *prometheus.Registry

	postsScanned         prometheus.Counter
	targetsFound         prometheus.Counter
	duplicatesSuppressed prometheus.Counter
	resolved             *prometheus.CounterVec
	resolveFailures      *prometheus.CounterVec
	resolveDuration      *prometheus.HistogramVec
}

// NewMetrics builds the collector set used by the preview pipeline.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		postsScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mediapreview",
			Name:      "posts_scanned_total",
			Help:      "Posts inspected for platform links.",
		}),
		targetsFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mediapreview",
			Name:      "targets_found_total",
			Help:      "Link and identifier targets extracted from posts.",
		}),
		duplicatesSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mediapreview",
			Name:      "duplicates_suppressed_total",
			Help:      "Targets skipped because the media was previewed recently.",
		}),
		resolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediapreview",
			Name:      "resolved_total",
			Help:      "Successfully resolved previews.",
		}, []string{"platform"}),
		resolveFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediapreview",
			Name:      "resolve_failures_total",
			Help:      "Resolver errors after retries.",
		}, []string{"platform"}),
		resolveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediapreview",
			Name:      "resolve_duration_seconds",
			Help:      "Wall time to resolve one target, downloads included.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"platform"}),
	}
}

func (m *Metrics) ObservePost() {
	m.postsScanned.Inc()
}

func (m *Metrics) ObserveTargets(n int) {
	m.targetsFound.Add(float64(n))
}

func (m *Metrics) ObserveDuplicate() {
	m.duplicatesSuppressed.Inc()
}

func (m *Metrics) ObserveResolved(platform string, elapsed time.Duration) {
	m.resolved.WithLabelValues(platform).Inc()
	m.resolveDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveFailure(platform string) {
	m.resolveFailures.WithLabelValues(platform).Inc()
}

// Handler serves the private registry in the standard exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
