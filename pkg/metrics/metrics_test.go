package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue reads a counter from the default gatherer.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestObserveHTTP(t *testing.T) {
	labels := map[string]string{"route": "/api/global", "method": http.MethodGet, "status": "200"}
	before := counterValue(t, "market_http_requests_total", labels)

	ObserveHTTP("/api/global", http.MethodGet, http.StatusOK, 15*time.Millisecond)

	after := counterValue(t, "market_http_requests_total", labels)
	if after != before+1 {
		t.Errorf("market_http_requests_total = %v, want %v", after, before+1)
	}
}

func TestHandler(t *testing.T) {
	ObserveHTTP("/api/trending", http.MethodGet, http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "market_http_requests_total") {
		t.Error("metrics output missing market_http_requests_total")
	}
}
