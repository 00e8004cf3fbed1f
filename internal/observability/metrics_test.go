package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable verifies label dimensions match usage across client, http, and service packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/dashboard", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/dashboard").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("geocoding", "success").Inc()
	UpstreamDuration.WithLabelValues("air_quality", "server_error").Observe(0.2)
	UpstreamErrorsTotal.WithLabelValues("weather", "timeout").Inc()
	AdvisoriesTotal.WithLabelValues("good").Inc()
	TrendStrategyTotal.WithLabelValues("historical_aligned").Inc()
	ReverseGeocodeFallbackTotal.Inc()
	SupersededRequestsTotal.Inc()
}

func TestSetCircuitBreakerState(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"unknown", 0},
	}
	for _, tt := range tests {
		SetCircuitBreakerState("geocoding", tt.state)
		if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("geocoding")); got != tt.want {
			t.Errorf("SetCircuitBreakerState(%q) gauge = %v, want %v", tt.state, got, tt.want)
		}
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies MetricsHandler serves the text exposition format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
