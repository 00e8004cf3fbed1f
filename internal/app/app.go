// Package app builds the resolve, fetch and analyze pipeline from configuration.
package app

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-advisor/internal/client"
	"github.com/kjstillabower/air-quality-advisor/internal/config"
	"github.com/kjstillabower/air-quality-advisor/internal/resolver"
	"github.com/kjstillabower/air-quality-advisor/internal/service"
)

// Pipeline holds the core components. Each process builds its own; nothing is shared globally.
type Pipeline struct {
	Resolver   *resolver.Resolver
	Aggregator *service.Aggregator
	Dashboard  *service.Dashboard
}

// Upstreams lists the provider names reported by /health.
var Upstreams = []string{
	string(client.UpstreamGeocoding),
	string(client.UpstreamWeather),
	string(client.UpstreamAirQuality),
}

// New wires clients with one circuit breaker per upstream. recorder may be nil, and a nil tp
// leaves spans on the global tracer provider.
func New(cfg *config.Config, logger *zap.Logger, recorder client.OutcomeRecorder, tp trace.TracerProvider, aggOpts ...service.AggregatorOption) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := client.BreakerSettings{
		FailureThreshold: uint32(cfg.BreakerFailureThreshold),
		OpenTimeout:      cfg.BreakerOpenTimeout,
	}
	onStateChange := func(upstream client.Upstream, from, to string) {
		logger.Warn("circuit breaker state change",
			zap.String("upstream", string(upstream)),
			zap.String("from", from),
			zap.String("to", to))
	}
	options := func(url string, timeout time.Duration) client.Options {
		return client.Options{
			BaseURL:       url,
			Timeout:       timeout,
			UserAgent:     cfg.GeocodingUserAgent,
			Breaker:       breaker,
			Recorder:      recorder,
			OnStateChange: onStateChange,
		}
	}

	geo, err := client.NewNominatimClient(options(cfg.GeocodingURL, cfg.GeocodingTimeout))
	if err != nil {
		return nil, fmt.Errorf("geocoding client: %w", err)
	}
	weather, err := client.NewOpenMeteoWeatherClient(options(cfg.WeatherAPIURL, cfg.WeatherAPITimeout))
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	air, err := client.NewOpenMeteoAirQualityClient(options(cfg.AirQualityAPIURL, cfg.AirQualityAPITimeout),
		cfg.AirQualityPastDays, cfg.AirQualityForecastDays)
	if err != nil {
		return nil, fmt.Errorf("air quality client: %w", err)
	}

	var resOpts []resolver.Option
	if tp != nil {
		resOpts = append(resOpts, resolver.WithTracerProvider(tp))
		aggOpts = append(aggOpts, service.WithTracerProvider(tp))
	}
	res := resolver.New(geo, resOpts...)
	agg := service.NewAggregator(weather, air, aggOpts...)
	return &Pipeline{
		Resolver:   res,
		Aggregator: agg,
		Dashboard:  service.NewDashboard(res, agg, service.NewSequencer()),
	}, nil
}
