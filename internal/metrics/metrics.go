package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Results recorded for item operations.
const (
	ResultOK      = "ok"
	ResultNoop    = "noop"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Metrics holds the collectors for shopping list operations
type Metrics struct {
	registry      *prometheus.Registry
	Operations    *prometheus.CounterVec
	StoreFailures *prometheus.CounterVec
	Subscribers   prometheus.Gauge
	Snapshots     prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoppingbot",
			Name:      "item_operations_total",
			Help:      "Item lifecycle operations by operation and result.",
		}, []string{"operation", "result"}),
		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoppingbot",
			Name:      "store_failures_total",
			Help:      "Document store calls that returned an error.",
		}, []string{"operation"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shoppingbot",
			Name:      "live_subscribers",
			Help:      "Open live snapshot subscriptions.",
		}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shoppingbot",
			Name:      "snapshots_published_total",
			Help:      "Collection snapshots delivered to subscribers.",
		}),
	}

	m.registry.MustRegister(
		m.Operations,
		m.StoreFailures,
		m.Subscribers,
		m.Snapshots,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records the outcome of one item operation
func (m *Metrics) Observe(operation, result string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, result).Inc()
	if result == ResultError {
		m.StoreFailures.WithLabelValues(operation).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
