package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carbon"

// Reload results.
const (
	ReloadOK    = "ok"
	ReloadError = "error"
)

// Proxy results.
const (
	ProxyOK              = "ok"
	ProxyTransportError  = "transport_error"
	ProxyRequestBuilder  = "request_builder_error"
	ProxyResponseBuilder = "response_builder_error"
)

// Unmatched is the provider_type label used when no provider was selected.
const Unmatched = "none"

// Metrics holds the collectors used by the engine and proxy forwarder.
type Metrics struct {
	gatherer prometheus.Gatherer

	transactions        *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec
	cacheReloads        *prometheus.CounterVec
	cacheEntries        prometheus.Gauge
	compileErrors       prometheus.Gauge
	proxyRequests       *prometheus.CounterVec
	proxyDuration       prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry, which also carries the Go and process collectors.
//
//nolint:funlen // metric initialization requires many declarations
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}
	if reg == nil {
		r := prometheus.NewRegistry()
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg = r
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	factory := promauto.With(reg)
	m.transactions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Total number of mock transactions handled",
		},
		[]string{"status", "matched", "provider_type"},
	)
	m.transactionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Duration of mock transactions in seconds, including injected latency",
			Buckets: []float64{
				.001, .005, .01, .025,
				.05, .1, .25, .5,
				1, 2.5, 5, 10,
			},
		},
		[]string{"provider_type"},
	)
	m.cacheReloads = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "reloads_total",
			Help:      "Total number of configuration cache reloads",
		},
		[]string{"result"},
	)
	m.cacheEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of apis in the current configuration snapshot",
		},
	)
	m.compileErrors = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "compile_errors",
			Help:      "Number of compile failures in the current configuration snapshot",
		},
	)
	m.proxyRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of proxied requests",
		},
		[]string{"result"},
	)
	m.proxyDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "duration_seconds",
			Help:      "Duration of downstream proxy calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
	return m
}

// ObserveTransaction records one completed transaction.
func (m *Metrics) ObserveTransaction(status int, matched bool, providerType string, d time.Duration) {
	if m == nil {
		return
	}
	if providerType == "" {
		providerType = Unmatched
	}
	m.transactions.WithLabelValues(strconv.Itoa(status), strconv.FormatBool(matched), providerType).Inc()
	m.transactionDuration.WithLabelValues(providerType).Observe(d.Seconds())
}

// ObserveReload records a cache reload. entries and compileErrors are only
// applied on success.
func (m *Metrics) ObserveReload(err error, entries, compileErrors int) {
	if m == nil {
		return
	}
	if err != nil {
		m.cacheReloads.WithLabelValues(ReloadError).Inc()
		return
	}
	m.cacheReloads.WithLabelValues(ReloadOK).Inc()
	m.cacheEntries.Set(float64(entries))
	m.compileErrors.Set(float64(compileErrors))
}

// ObserveProxy records one proxy forward.
func (m *Metrics) ObserveProxy(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(result).Inc()
	m.proxyDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format. It returns
// 404 when the registerer cannot be gathered from.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
