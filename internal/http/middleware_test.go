package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/air-quality-advisor/internal/observability"
	"github.com/kjstillabower/air-quality-advisor/internal/traffic"
)

func TestMiddleware_CorrelationIDGenerated(t *testing.T) {
	h := newTestHandler(&mockResolver{loc: paris}, &mockFetcher{})
	w := serve(h, "GET", "/locations?q=Paris", nil)
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		if got := observability.CorrelationID(r.Context()); got != "client-provided-id" {
			t.Errorf("CorrelationID(ctx) = %q", got)
		}
		observability.LoggerFromContext(r.Context()).Info("inside")
	})

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	entries := logs.FilterMessage("inside").All()
	if len(entries) != 1 || entries[0].ContextMap()["correlation_id"] != "client-provided-id" {
		t.Errorf("request logger should carry correlation_id; got %v", entries)
	}
}

func TestMiddleware_MetricsUseRouteTemplate(t *testing.T) {
	h := newTestHandler(&mockResolver{loc: paris}, &mockFetcher{})
	counter := observability.HTTPRequestsTotal.WithLabelValues("GET", "/locations", "2xx")
	before := testutil.ToFloat64(counter)

	serve(h, "GET", "/locations?q=Lyon", nil)
	serve(h, "GET", "/locations?q=Nice", nil)

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests counted under /locations = %v, want 2", got)
	}
}

func TestRateLimitMiddleware_Denies(t *testing.T) {
	tracker := traffic.NewTracker(0)
	h := newTestHandler(&mockResolver{loc: paris}, &mockFetcher{})
	router := NewRouter(h, RouterOptions{Limiter: rate.NewLimiter(rate.Limit(0.001), 1), Tracker: tracker})
	before := testutil.ToFloat64(observability.RateLimitDeniedTotal)

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/locations?q=Paris", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429 429]", codes)
	}
	if n := tracker.DenialCount(time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
	if n := tracker.AdmittedCount(time.Minute); n != 1 {
		t.Errorf("AdmittedCount() = %d, want 1", n)
	}
	if got := testutil.ToFloat64(observability.RateLimitDeniedTotal) - before; got != 2 {
		t.Errorf("RateLimitDeniedTotal delta = %v, want 2", got)
	}

	// /health is not rate limited
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code == http.StatusTooManyRequests {
		t.Error("/health must bypass the rate limiter")
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if !ok || time.Until(deadline) > 50*time.Millisecond {
		t.Errorf("deadline = %v (set %v), want within 50ms", deadline, ok)
	}
}

func TestInFlightMiddleware_Counts(t *testing.T) {
	tracker := NewInFlightTracker()
	var during int64
	handler := InFlightMiddleware(tracker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = tracker.Count()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if during != 1 || tracker.Count() != 0 {
		t.Errorf("during = %d, after = %d; want 1, 0", during, tracker.Count())
	}
}

func TestStatusCodeString(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 404: "4xx", 503: "5xx"} {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}
