package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the gateway's Prometheus metrics behind a private
// registry so tests can create collectors without global registration
// conflicts.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	outboundTotal   *prometheus.CounterVec
	outboundLatency *prometheus.HistogramVec
	tokenRefreshes  prometheus.Counter
	inFlight        prometheus.Gauge
}

// NewCollector creates and registers the gateway metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issgate_http_requests_total",
			Help: "Total number of HTTP requests handled, by route and status",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "issgate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issgate_outbound_requests_total",
			Help: "Total number of upstream scheduler requests, by operation and status",
		}, []string{"op", "status"}),
		outboundLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "issgate_outbound_request_duration_seconds",
			Help:    "Upstream scheduler request latency in seconds, by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		tokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issgate_token_refreshes_total",
			Help: "Total number of OAuth2 token exchanges performed",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "issgate_http_requests_in_flight",
			Help: "Current number of in-flight HTTP requests",
		}),
	}

	c.registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.outboundTotal,
		c.outboundLatency,
		c.tokenRefreshes,
		c.inFlight,
	)
	return c
}

// RecordRequest records one handled HTTP request.
func (c *Collector) RecordRequest(route, method string, status int, elapsed time.Duration) {
	c.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveOutbound records one upstream scheduler call. It satisfies the
// scheduler client's Observer interface.
func (c *Collector) ObserveOutbound(op string, status int, elapsed time.Duration) {
	c.outboundTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.outboundLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordTokenRefresh counts one OAuth2 token exchange.
func (c *Collector) RecordTokenRefresh() {
	c.tokenRefreshes.Inc()
}

// RequestStarted and RequestFinished track the in-flight gauge.
func (c *Collector) RequestStarted()  { c.inFlight.Inc() }
func (c *Collector) RequestFinished() { c.inFlight.Dec() }

// Handler exposes the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
