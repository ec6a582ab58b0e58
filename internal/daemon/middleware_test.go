package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/meshroute/overlay/internal/metrics"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/v1/status", "/v1/status"},
		{"/v1/edges", "/v1/edges"},
		{"/v1/route/12D3KooWTest1234", "/v1/route/:id"},
		{"/v1/account/alice.near", "/v1/account/:id"},
		{"/v1/route/someid/", "/v1/route/:id"},
		{"/v1/unknown/thing", "/v1/unknown/thing"},
		{"/", "/"},
		{"/metrics", "/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizePath(tt.input)
			if got != tt.want {
				t.Errorf("sanitizePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestInstrumentHandlerNilIsZeroOverhead(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := InstrumentHandler(inner, nil, nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/status", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
}

func TestInstrumentHandlerRecordsMetrics(t *testing.T) {
	m := metrics.New("test", "go1.test")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := InstrumentHandler(inner, m, nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/status", nil))

	count := testutil.ToFloat64(m.DaemonRequestsTotal.WithLabelValues("GET", "/v1/status", "200"))
	if count != 1 {
		t.Errorf("DaemonRequestsTotal = %v, want 1", count)
	}
}
