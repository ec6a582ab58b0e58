package daemon

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/meshroute/overlay/internal/audit"
	"github.com/meshroute/overlay/internal/metrics"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler wraps an HTTP handler with Prometheus metrics and audit
// logging. If both m and a are nil, the handler is returned unchanged (zero
// overhead).
func InstrumentHandler(next http.Handler, m *metrics.Metrics, a *audit.Logger) http.Handler {
	if m == nil && a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()
		path := sanitizePath(r.URL.Path)
		status := strconv.Itoa(rec.status)

		if m != nil {
			m.DaemonRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			m.DaemonRequestDurationSeconds.WithLabelValues(r.Method, path, status).Observe(duration)
		}
		if a != nil {
			a.DaemonAPIAccess(r.Method, path, rec.status)
		}
	})
}

// sanitizePath replaces dynamic path segments with fixed labels to prevent
// high cardinality in Prometheus metrics. For example:
//
//	/v1/route/12D3KooW... -> /v1/route/:id
func sanitizePath(path string) string {
	parts := strings.Split(strings.TrimRight(path, "/"), "/")
	// Parameterized routes have 4 parts: ["", "v1", resource, param]
	if len(parts) == 4 && parts[1] == "v1" {
		switch parts[2] {
		case "route", "account":
			return "/v1/" + parts[2] + "/:id"
		}
	}
	return path
}
