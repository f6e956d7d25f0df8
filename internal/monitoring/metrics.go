// Package monitoring exposes build and dev-server metrics in the Prometheus
// format. Every Metrics value owns its registry, so several runs (and tests)
// never collide on global registration.
package monitoring

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remixure/remixure/internal/bundle"
)

const namespace = "remixure"

// Build results recorded by ObserveBuild.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds all Prometheus metrics of a remixure process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Build metrics
	buildsTotal   *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	assetBytes    *prometheus.GaugeVec
	assetsEmitted *prometheus.CounterVec
	buildWarnings *prometheus.CounterVec

	// Watch metrics
	watcherEvents *prometheus.CounterVec

	// Dev server metrics
	httpRequestsTotal *prometheus.CounterVec
	liveClients       prometheus.Gauge
	reloadsTotal      prometheus.Counter
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Total number of target compilations",
			},
			[]string{"language", "result"},
		),
		buildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Target compilation time in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"language"},
		),
		assetBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "asset_bytes",
				Help:      "Total size of the assets of the last compilation",
			},
			[]string{"language"},
		),
		assetsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assets_emitted_total",
				Help:      "Total number of assets written to disk",
			},
			[]string{"language"},
		),
		buildWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "build_warnings_total",
				Help:      "Total number of compiler warnings",
			},
			[]string{"language"},
		),

		watcherEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watcher_events_total",
				Help:      "Total number of source changes seen by the watcher",
			},
			[]string{"type"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of dev server requests",
			},
			[]string{"method", "status"},
		),
		liveClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_reload_clients",
				Help:      "Current number of connected live reload clients",
			},
		),
		reloadsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total number of reload broadcasts",
			},
		),
	}
}

// ObserveBuild records one finished compilation.
func (m *Metrics) ObserveBuild(stats *bundle.Stats, failed bool) {
	if m == nil || stats == nil {
		return
	}
	lang := stats.Language
	result := ResultSuccess
	if failed || stats.HasErrors() {
		result = ResultFailure
	}
	m.buildsTotal.WithLabelValues(lang, result).Inc()
	m.buildDuration.WithLabelValues(lang).Observe(stats.Duration.Seconds())
	m.buildWarnings.WithLabelValues(lang).Add(float64(len(stats.Warnings)))

	var total int64
	var emitted int
	for _, a := range stats.Assets {
		total += a.Size
		if a.Emitted {
			emitted++
		}
	}
	m.assetBytes.WithLabelValues(lang).Set(float64(total))
	m.assetsEmitted.WithLabelValues(lang).Add(float64(emitted))
}

// FileWatcherEvent records a source change of the given type.
func (m *Metrics) FileWatcherEvent(eventType string) {
	if m == nil {
		return
	}
	m.watcherEvents.WithLabelValues(eventType).Inc()
}

// LiveClientConnected tracks live reload connections; pass false on
// disconnect.
func (m *Metrics) LiveClientConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.liveClients.Inc()
	} else {
		m.liveClients.Dec()
	}
}

// Reload records a reload broadcast.
func (m *Metrics) Reload() {
	if m == nil {
		return
	}
	m.reloadsTotal.Inc()
}

// Middleware counts dev server requests by method and status class.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, statusClass(status)).Inc()
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteToTextfile dumps the registry to path for the node exporter textfile
// collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
