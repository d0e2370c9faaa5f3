// Package metrics exposes prometheus collectors for dispatch and store calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dqs"

// Collector owns a private registry so tests and multiple servers in one
// process do not collide on the global one.
type Collector struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	storeCalls *prometheus.HistogramVec
	storeErrs  *prometheus.CounterVec
	sseStreams prometheus.Gauge
}

// New registers all collectors plus the Go and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "JSON-RPC requests handled, by transport, method and outcome.",
		}, []string{"transport", "method", "outcome"}),
		storeCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_call_duration_seconds",
			Help:      "Time spent waiting for and executing dataset store calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		storeErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_call_errors_total",
			Help:      "Dataset store calls that returned an error.",
		}, []string{"op"}),
		sseStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_streams_active",
			Help:      "Open event-stream connections.",
		}),
	}

	c.registry.MustRegister(
		c.requests,
		c.storeCalls,
		c.storeErrs,
		c.sseStreams,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRequest counts one JSON-RPC request.
func (c *Collector) ObserveRequest(transport, method, outcome string) {
	if method == "" {
		method = "unknown"
	}
	c.requests.WithLabelValues(transport, method, outcome).Inc()
}

// ObserveStoreCall records the duration of one store call.
func (c *Collector) ObserveStoreCall(op string, elapsed time.Duration, err error) {
	c.storeCalls.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		c.storeErrs.WithLabelValues(op).Inc()
	}
}

// StreamOpened increments the active event-stream gauge.
func (c *Collector) StreamOpened() {
	c.sseStreams.Inc()
}

// StreamClosed decrements the active event-stream gauge.
func (c *Collector) StreamClosed() {
	c.sseStreams.Dec()
}
