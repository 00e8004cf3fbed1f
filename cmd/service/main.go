package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/air-quality-advisor/internal/app"
	"github.com/kjstillabower/air-quality-advisor/internal/config"
	httphandler "github.com/kjstillabower/air-quality-advisor/internal/http"
	"github.com/kjstillabower/air-quality-advisor/internal/lifecycle"
	"github.com/kjstillabower/air-quality-advisor/internal/observability"
	"github.com/kjstillabower/air-quality-advisor/internal/traffic"
)

const serviceName = "air-quality-advisor"

func main() {
	logger, err := observability.NewLogger(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger, nil); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}

// server is one wired instance of the service, not yet listening.
type server struct {
	cfg      *config.Config
	logger   *zap.Logger
	http     *http.Server
	state    *lifecycle.State
	inFlight *httphandler.InFlightTracker
	tracing  *sdktrace.TracerProvider
}

// newServer wires the pipeline, handlers and middleware. Exported spans go to traceOut.
func newServer(cfg *config.Config, logger *zap.Logger, traceOut io.Writer) (*server, error) {
	tp, err := observability.NewTracerProvider(serviceName, cfg.TracingExporter, cfg.TracingSampleRatio, traceOut)
	if err != nil {
		return nil, err
	}

	tracker := traffic.NewTracker(traffic.DefaultRetention)
	pipeline, err := app.New(cfg, logger, tracker, tp)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	logger.Info("circuit breakers configured",
		zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
		zap.Duration("open_timeout", cfg.BreakerOpenTimeout))

	state := lifecycle.New()
	handler := httphandler.NewHandler(httphandler.Deps{
		Resolver:   pipeline.Resolver,
		Conditions: pipeline.Aggregator,
		Dashboard:  pipeline.Dashboard,
		Tracker:    tracker,
		State:      state,
		Health: httphandler.HealthConfig{
			Window:               cfg.HealthWindow,
			DegradedErrorPct:     cfg.DegradedErrorPct,
			OverloadThresholdPct: cfg.OverloadThresholdPct,
			Upstreams:            app.Upstreams,
		},
		QueryMinLength: cfg.QueryMinLength,
		QueryMaxLength: cfg.QueryMaxLength,
		Logger:         logger,
	})

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	inFlight := httphandler.NewInFlightTracker()
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Logger:         logger,
		Limiter:        limiter,
		Tracker:        tracker,
		RequestTimeout: cfg.RequestTimeout,
		InFlight:       inFlight,
	})

	return &server{
		cfg:    cfg,
		logger: logger,
		http: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		},
		state:    state,
		inFlight: inFlight,
		tracing:  tp,
	}, nil
}

// serve marks the server ready and accepts connections on ln until shutdown.
func (s *server) serve(ln net.Listener) error {
	s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))
	s.state.SetReady(true)
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdown reports shutting-down on /health, stops accepting connections, waits for
// in-flight requests, then flushes traces and logs.
func (s *server) shutdown() {
	s.state.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown", zap.Error(err))
	}

	s.logger.Info("waiting for in-flight requests", zap.Int64("count", s.inFlight.Count()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), s.cfg.InFlightTimeout)
	defer waitCancel()
	if err := s.inFlight.WaitForZero(waitCtx, s.cfg.InFlightCheckInterval); err != nil {
		s.logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", s.inFlight.Count()))
	}

	if err := observability.ShutdownTracing(shutdownCtx, s.tracing); err != nil {
		s.logger.Error("trace flush", zap.Error(err))
	}
	if err := observability.FlushTelemetry(context.Background(), s.logger); err != nil {
		s.logger.Error("telemetry flush", zap.Error(err))
	}
	s.logger.Info("shutdown complete")
}

// run serves until ctx is done, then drains. A nil ln listens on cfg.ServerPort.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, ln net.Listener) error {
	s, err := newServer(cfg, logger, os.Stdout)
	if err != nil {
		return err
	}
	if ln == nil {
		if ln, err = net.Listen("tcp", s.http.Addr); err != nil {
			_ = observability.ShutdownTracing(context.Background(), s.tracing)
			return fmt.Errorf("listen: %w", err)
		}
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.serve(ln) }()

	select {
	case err := <-serveErr:
		_ = observability.ShutdownTracing(context.Background(), s.tracing)
		return err
	case <-ctx.Done():
	}
	logger.Info("graceful shutdown triggered")
	s.shutdown()
	return <-serveErr
}
