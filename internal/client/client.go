package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/air-quality-advisor/internal/observability"
)

// Upstream names a provider; used as breaker name and metric label.
type Upstream string

const (
	UpstreamGeocoding  Upstream = "geocoding"
	UpstreamWeather    Upstream = "weather"
	UpstreamAirQuality Upstream = "air_quality"
)

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// OutcomeRecorder receives one outcome per upstream call. Implemented by traffic.Tracker.
type OutcomeRecorder interface {
	RecordSuccess(upstream string)
	RecordError(upstream string)
}

// BreakerSettings configures the per-upstream circuit breaker.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before allowing a trial request.
	OpenTimeout time.Duration
}

// Options holds settings shared by every upstream client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Breaker    BreakerSettings
	Recorder   OutcomeRecorder
	// OnStateChange, when set, is called on breaker transitions (after metrics are updated).
	OnStateChange func(upstream Upstream, from, to string)
}

// requester performs single-shot JSON GETs against one upstream behind a circuit breaker.
// Failures are not retried.
type requester struct {
	upstream  Upstream
	timeout   time.Duration
	userAgent string
	client    *http.Client
	breaker   *gobreaker.TwoStepCircuitBreaker
	recorder  OutcomeRecorder
}

func newRequester(upstream Upstream, opts Options) *requester {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	threshold := opts.Breaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := opts.Breaker.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	onStateChange := opts.OnStateChange

	breaker := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        string(upstream),
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.SetCircuitBreakerState(name, to.String())
			if onStateChange != nil {
				onStateChange(Upstream(name), from.String(), to.String())
			}
		},
	})
	observability.SetCircuitBreakerState(string(upstream), gobreaker.StateClosed.String())

	return &requester{
		upstream:  upstream,
		timeout:   timeout,
		userAgent: opts.UserAgent,
		client:    httpClient,
		breaker:   breaker,
		recorder:  opts.Recorder,
	}
}

// getJSON issues GET rawURL and decodes a 2xx body into target.
// A caller-side cancellation is neither a success nor a failure for the breaker,
// except that an abandoned half-open trial call reopens it.
func (r *requester) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	start := time.Now()

	var (
		err    error
		status int
	)
	done, brErr := r.breaker.Allow()
	if brErr != nil {
		err = fmt.Errorf("%w: %s: %v", ErrCircuitOpen, r.upstream, brErr)
	} else {
		halfOpen := r.breaker.State() == gobreaker.StateHalfOpen
		status, err = r.call(ctx, rawURL, target)
		switch {
		case err == nil:
			done(true)
		case ctx.Err() == nil, halfOpen:
			done(false)
		}
	}

	label := statusLabel(status, err)
	observability.UpstreamCallsTotal.WithLabelValues(string(r.upstream), label).Inc()
	observability.UpstreamDuration.WithLabelValues(string(r.upstream), label).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(string(r.upstream), string(CategorizeError(err))).Inc()
		if r.recorder != nil && ctx.Err() == nil {
			r.recorder.RecordError(string(r.upstream))
		}
		return err
	}
	if r.recorder != nil {
		r.recorder.RecordSuccess(string(r.upstream))
	}
	return nil
}

func (r *requester) call(ctx context.Context, rawURL string, target interface{}) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, fmt.Errorf("request timeout: %w", err)
		}
		return 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := handleErrorResponse(resp); err != nil {
		return resp.StatusCode, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return resp.StatusCode, fmt.Errorf("parse response: %w", err)
	}
	return resp.StatusCode, nil
}

func handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP %d", ErrRateLimited, resp.StatusCode)
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if msg := strings.TrimSpace(string(snippet)); msg != "" {
		return fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamFailure, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
}

func statusLabel(statusCode int, err error) string {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case statusCode >= 200 && statusCode < 300 && err == nil:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
