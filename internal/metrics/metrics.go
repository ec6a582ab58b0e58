// Package metrics provides the Prometheus-backed implementation of
// routing.Metrics, plus the daemon and network counters for a running
// overlay node.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshroute/overlay/internal/pid"
)

// Metrics holds all overlay Prometheus collectors. It uses an isolated
// prometheus.Registry so overlay metrics never collide with the global
// default registry, and so each test gets its own instance.
type Metrics struct {
	Registry *prometheus.Registry

	EdgesAppliedTotal    *prometheus.CounterVec
	forwardingMapSize    prometheus.Gauge
	RouteSelectedTotal   *prometheus.CounterVec
	RouteBackResultTotal *prometheus.CounterVec

	DaemonRequestsTotal          *prometheus.CounterVec
	DaemonRequestDurationSeconds *prometheus.HistogramVec

	ConnectedPeers *prometheus.GaugeVec
	MDNSDiscoveredTotal *prometheus.CounterVec

	BuildInfo *prometheus.GaugeVec
}

// New creates a Metrics instance with all collectors registered on an
// isolated registry. version and goVersion are recorded as labels on the
// overlay_info gauge.
func New(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		EdgesAppliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_edges_applied_total",
				Help: "Total number of edge-authentication events applied to the edge store, by outcome.",
			},
			[]string{"outcome"},
		),
		forwardingMapSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "overlay_forwarding_map_size",
				Help: "Number of peers reachable in the most recently computed forwarding map.",
			},
		),
		RouteSelectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_route_selected_total",
				Help: "Total number of times a first hop was selected by round-robin routing, by hop.",
			},
			[]string{"hop"},
		),
		RouteBackResultTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_route_back_result_total",
				Help: "Total route-back cache lookups, by hit/miss.",
			},
			[]string{"result"},
		),

		DaemonRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_daemon_requests_total",
				Help: "Total number of daemon API requests.",
			},
			[]string{"method", "path", "status"},
		),
		DaemonRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "overlay_daemon_request_duration_seconds",
				Help:    "Duration of daemon API requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		ConnectedPeers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "overlay_connected_peers",
				Help: "Number of currently connected libp2p peers, by transport.",
			},
			[]string{"transport"},
		),
		MDNSDiscoveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_mdns_discovered_total",
				Help: "Total mDNS peer discovery events.",
			},
			[]string{"result"},
		),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "overlay_info",
				Help: "Build information for the running overlay node.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.EdgesAppliedTotal,
		m.forwardingMapSize,
		m.RouteSelectedTotal,
		m.RouteBackResultTotal,
		m.DaemonRequestsTotal,
		m.DaemonRequestDurationSeconds,
		m.ConnectedPeers,
		m.MDNSDiscoveredTotal,
		m.BuildInfo,
	)

	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	return m
}

// Handler returns an http.Handler that serves the Prometheus metrics
// endpoint for this instance's isolated registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// The methods below satisfy routing.Metrics without importing the routing
// package, avoiding an import cycle (routing is lower in the dependency
// graph than metrics, which wraps Prometheus).

func (m *Metrics) EdgeApplied(accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.EdgesAppliedTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ForwardingMapSize(n int) {
	m.forwardingMapSize.Set(float64(n))
}

func (m *Metrics) RouteSelected(hop pid.ID) {
	m.RouteSelectedTotal.WithLabelValues(pid.Short(hop)).Inc()
}

func (m *Metrics) RouteBackResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RouteBackResultTotal.WithLabelValues(result).Inc()
}

// MDNSDiscovered records an mDNS discovery-pipeline event ("discovered",
// "connected") for the pkg/overlaynet mDNS browser.
func (m *Metrics) MDNSDiscovered(result string) {
	m.MDNSDiscoveredTotal.WithLabelValues(result).Inc()
}
