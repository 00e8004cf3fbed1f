package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-advisor/internal/lifecycle"
	"github.com/kjstillabower/air-quality-advisor/internal/models"
	"github.com/kjstillabower/air-quality-advisor/internal/observability"
	"github.com/kjstillabower/air-quality-advisor/internal/overload"
	"github.com/kjstillabower/air-quality-advisor/internal/service"
	"github.com/kjstillabower/air-quality-advisor/internal/traffic"
	"github.com/kjstillabower/air-quality-advisor/internal/validation"
)

// SessionHeader carries the caller's session for last-request-wins sequencing on /dashboard.
const SessionHeader = "X-Session-ID"

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	Window           time.Duration
	DegradedErrorPct int
	// OverloadThresholdPct is the share of rate-limited requests that reports overloaded; 0 disables.
	OverloadThresholdPct int
	// Upstreams are always reported, even before any traffic.
	Upstreams []string
}

// Deps holds everything the handlers need. Tracker and State may be nil in tests.
type Deps struct {
	Resolver       service.LocationResolver
	Conditions     service.ConditionsFetcher
	Dashboard      *service.Dashboard
	Tracker        *traffic.Tracker
	State          *lifecycle.State
	Health         HealthConfig
	QueryMinLength int
	QueryMaxLength int
	Logger         *zap.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	deps             Deps
	logger           *zap.Logger
	overload         *overload.Detector
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.State == nil {
		deps.State = lifecycle.New()
		deps.State.SetReady(true)
	}
	h := &Handler{deps: deps, logger: logger}
	if deps.Tracker != nil {
		h.overload = overload.New(deps.Tracker, deps.Health.Window, deps.Health.OverloadThresholdPct)
	}
	return h
}

// GetLocation handles GET /locations?q=.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ValidateQuery(r.URL.Query().Get("q"), h.deps.QueryMinLength, h.deps.QueryMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}
	loc, err := h.deps.Resolver.ResolveByName(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// GetReverseLocation handles GET /locations/reverse?lat=&lon=. It never fails once input is valid.
func (h *Handler) GetReverseLocation(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := validation.ValidateCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Resolver.ResolveByCoordinates(r.Context(), lat, lon))
}

// GetConditions handles GET /conditions?lat=&lon=[&city=&country=].
func (h *Handler) GetConditions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, err := validation.ValidateCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}
	loc := models.Location{
		Latitude:    lat,
		Longitude:   lon,
		CityName:    models.CurrentLocationName,
		CountryCode: strings.ToUpper(strings.TrimSpace(q.Get("country"))),
	}
	if city := q.Get("city"); strings.TrimSpace(city) != "" {
		name, err := validation.ValidateQuery(city, h.deps.QueryMinLength, h.deps.QueryMaxLength)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
			return
		}
		loc.CityName = name
	}
	loc.DisplayName = loc.CityName

	conditions, err := h.deps.Conditions.FetchConditions(r.Context(), loc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conditions)
}

// GetDashboard handles GET /dashboard?q= or ?lat=&lon=. Coordinates win when both are given.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.DashboardRequest{SessionID: strings.TrimSpace(r.Header.Get(SessionHeader))}

	if q.Get("lat") != "" || q.Get("lon") != "" {
		lat, lon, err := validation.ValidateCoordinates(q.Get("lat"), q.Get("lon"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
			return
		}
		req.Coordinates = &service.Coordinates{Lat: lat, Lon: lon}
	} else {
		query, err := validation.ValidateQuery(q.Get("q"), h.deps.QueryMinLength, h.deps.QueryMaxLength)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
			return
		}
		req.Query = query
	}

	report, err := h.deps.Dashboard.Build(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "air-quality-advisor",
		"version":   "dev",
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > overloaded > degraded (any upstream at or over the error threshold) > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	checks := h.upstreamChecks()

	if h.deps.State.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}
	if !h.deps.State.IsReady() {
		return healthResult{"starting", http.StatusServiceUnavailable, "not_ready", checks}
	}
	if h.overload.Check().Overloaded {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "rate_limit_denials", checks}
	}
	for name, check := range checks {
		if check == "degraded" {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach:" + name, checks}
		}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

// upstreamChecks marks each upstream healthy or degraded from the traffic window.
func (h *Handler) upstreamChecks() map[string]string {
	checks := make(map[string]string, len(h.deps.Health.Upstreams))
	for _, name := range h.deps.Health.Upstreams {
		checks[name] = "healthy"
	}
	if h.deps.Tracker == nil || h.deps.Health.Window <= 0 || h.deps.Health.DegradedErrorPct <= 0 {
		return checks
	}
	for name, stats := range h.deps.Tracker.Snapshot(h.deps.Health.Window) {
		if stats.Total > 0 && stats.ErrorPct() >= float64(h.deps.Health.DegradedErrorPct) {
			checks[name] = "degraded"
		} else {
			checks[name] = "healthy"
		}
	}
	return checks
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// errorKind maps a domain error to its HTTP status, code and user-facing message.
// Order matters: ErrNoMonitoringCoverage also matches ErrAirQualityUnavailable.
func errorKind(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrSuperseded):
		return http.StatusConflict, "SUPERSEDED", service.ErrSuperseded.Error()
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "LOCATION_NOT_FOUND", models.ErrNotFound.Error()
	case errors.Is(err, models.ErrNoMonitoringCoverage):
		return http.StatusNotFound, "NO_COVERAGE", models.ErrNoMonitoringCoverage.Error()
	case errors.Is(err, models.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "GEOCODER_UNAVAILABLE", models.ErrServiceUnavailable.Error()
	case errors.Is(err, models.ErrWeatherUnavailable):
		return http.StatusServiceUnavailable, "WEATHER_UNAVAILABLE", models.ErrWeatherUnavailable.Error()
	case errors.Is(err, models.ErrAirQualityUnavailable):
		return http.StatusServiceUnavailable, "AIR_QUALITY_UNAVAILABLE", models.ErrAirQualityUnavailable.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", "request timed out"
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}

// writeServiceError writes the mapped error response for err.
// Logs the underlying error at DEBUG level with the request-scoped logger.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := errorKind(err)
	observability.LoggerFromContext(r.Context()).Debug("request failed",
		zap.String("code", code),
		zap.Error(err))
	writeError(w, r, status, code, message)
}
