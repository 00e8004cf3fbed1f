package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/air-quality-advisor/internal/observability"
	"github.com/kjstillabower/air-quality-advisor/internal/traffic"
)

// RouterOptions configures NewRouter. Limiter and InFlight may be nil.
type RouterOptions struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter
	Tracker        *traffic.Tracker
	RequestTimeout time.Duration
	InFlight       *InFlightTracker
}

// NewRouter wires every route. Upstream-backed routes are rate limited and carry the request timeout;
// /health and /metrics are not.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	if opts.InFlight != nil {
		router.Use(InFlightMiddleware(opts.InFlight))
	}
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	api := router.NewRoute().Subrouter()
	api.Use(RateLimitMiddleware(opts.Limiter, opts.Tracker))
	if opts.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	api.HandleFunc("/locations", h.GetLocation).Methods("GET")
	api.HandleFunc("/locations/reverse", h.GetReverseLocation).Methods("GET")
	api.HandleFunc("/conditions", h.GetConditions).Methods("GET")
	api.HandleFunc("/dashboard", h.GetDashboard).Methods("GET")
	return router
}
