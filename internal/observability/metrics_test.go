package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable verifies that label dimensions match usage across the
// records, service, cache and http packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/crops/{id}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/crops/{id}").Observe(0.01)
	RecordsAPICallsTotal.WithLabelValues("crop_c", "fetch", "success").Inc()
	RecordsAPIDuration.WithLabelValues("crop_c", "fetch", "success").Observe(0.1)
	RecordsAPIRetriesTotal.WithLabelValues("crop_c", "fetch").Inc()
	RecordsAPIErrorsTotal.WithLabelValues("crop_c", "create", "timeout").Inc()
	ForecastCacheLookupsTotal.WithLabelValues("hit").Inc()
	ForecastRefreshTotal.WithLabelValues("success").Inc()
	ReadFailuresTotal.WithLabelValues("farm_c").Inc()
	MutationFailuresTotal.WithLabelValues("task_c", "update").Inc()
	NotificationsTotal.Inc()
}

func TestSetCircuitBreakerState(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"bogus", 0},
	}
	for _, tt := range tests {
		SetCircuitBreakerState("records_api", tt.state)
		if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("records_api")); got != tt.want {
			t.Errorf("SetCircuitBreakerState(%q) gauge = %v, want %v", tt.state, got, tt.want)
		}
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
