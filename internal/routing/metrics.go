package routing

import "github.com/meshroute/overlay/internal/pid"

// Metrics is the observability hook Table reports to, if one is configured.
// It is implemented concretely by internal/metrics (Prometheus-backed); the
// routing package only depends on this small interface so its tests never
// need a Prometheus registry.
type Metrics interface {
	EdgeApplied(accepted bool)
	ForwardingMapSize(n int)
	RouteSelected(hop pid.ID)
	RouteBackResult(hit bool)
}

// noopMetrics discards everything. Used when a Table is constructed without
// an explicit Metrics.
type noopMetrics struct{}

func (noopMetrics) EdgeApplied(bool)      {}
func (noopMetrics) ForwardingMapSize(int) {}
func (noopMetrics) RouteSelected(pid.ID)  {}
func (noopMetrics) RouteBackResult(bool)  {}
