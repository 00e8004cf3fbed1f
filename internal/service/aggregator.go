// Package service joins the upstream clients, the trend builders and the advisor into
// the conditions and dashboard operations.
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/air-quality-advisor/internal/client"
	"github.com/kjstillabower/air-quality-advisor/internal/forecast"
	"github.com/kjstillabower/air-quality-advisor/internal/models"
	"github.com/kjstillabower/air-quality-advisor/internal/observability"
)

// msToKph converts meters per second to kilometers per hour.
const msToKph = 3.6

// TrendSelector chooses the trend construction for one fetch.
type TrendSelector interface {
	Select(in forecast.Input) forecast.Builder
}

// Aggregator fetches weather and air quality for a Location and merges them into Conditions.
type Aggregator struct {
	weather    client.WeatherClient
	airQuality client.AirQualityClient
	trends     TrendSelector
	now        func() time.Time
	tracer     trace.Tracer
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithTrendSelector replaces the default forecast.Preferred selector.
func WithTrendSelector(s TrendSelector) AggregatorOption {
	return func(a *Aggregator) { a.trends = s }
}

// WithClock sets the time source used to align the hourly series.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) AggregatorOption {
	return func(a *Aggregator) { a.tracer = tp.Tracer(aggregatorTracerName) }
}

const aggregatorTracerName = "ConditionsAggregator"

// NewAggregator creates an Aggregator over the given clients.
func NewAggregator(weather client.WeatherClient, airQuality client.AirQualityClient, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		weather:    weather,
		airQuality: airQuality,
		trends:     forecast.NewPreferred(),
		now:        time.Now,
		tracer:     otel.Tracer(aggregatorTracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchConditions retrieves current weather and air quality concurrently and joins them.
// The trend is aligned to the start of the current UTC hour, so at 10:30 the 10:00 reading
// is "Now" and 11:00 is the forecast point. Humidity is clamped to [0, 100] and wind
// speed and AQI to non-negative values.
// Errors wrap models.ErrWeatherUnavailable, models.ErrAirQualityUnavailable, or
// models.ErrNoMonitoringCoverage when the provider has no current AQI for the location.
func (a *Aggregator) FetchConditions(ctx context.Context, loc models.Location) (models.Conditions, error) {
	ctx, span := a.tracer.Start(ctx, "FetchConditions")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("location.lat", loc.Latitude),
		attribute.Float64("location.lon", loc.Longitude),
	)

	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	var (
		weather models.CurrentWeather
		air     models.AirQuality
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := a.weather.CurrentWeather(gctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrWeatherUnavailable, err)
		}
		weather = w
		return nil
	})
	g.Go(func() error {
		aq, err := a.airQuality.AirQuality(gctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrAirQualityUnavailable, err)
		}
		if aq.AQI == nil {
			return models.ErrNoMonitoringCoverage
		}
		air = aq
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Debug("conditions fetch failed",
			zap.String("city", loc.CityName),
			zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return models.Conditions{}, err
	}

	aqi := roundNonNegative(*air.AQI)
	in := forecast.Input{
		CurrentAQI: aqi,
		Hourly:     air.Hourly,
		Now:        a.now().UTC().Truncate(time.Hour),
	}
	builder := a.trends.Select(in)
	observability.TrendStrategyTotal.WithLabelValues(string(builder.Strategy())).Inc()
	if builder.Strategy() == forecast.StrategySyntheticWalk {
		logger.Warn("no hourly air quality series, trend synthesized",
			zap.String("city", loc.CityName),
			zap.Int("aqi", aqi))
	}

	conditions := models.Conditions{
		City:         loc.CityName,
		Country:      loc.CountryCode,
		AQI:          aqi,
		TemperatureC: int(math.Round(weather.TemperatureC)),
		HumidityPct:  clampPercent(roundNonNegative(weather.HumidityPct)),
		WindKph:      roundNonNegative(weather.WindSpeedMS * msToKph),
		PM25:         air.PM25,
		PM10:         air.PM10,
		Ozone:        air.Ozone,
		WeatherLabel: WeatherLabel(weather.WeatherCode),
		Forecast:     builder.Build(in),
	}

	span.SetAttributes(attribute.Int("conditions.aqi", aqi), attribute.String("trend.strategy", string(builder.Strategy())))
	span.SetStatus(codes.Ok, "fetched")
	logger.Debug("conditions fetched",
		zap.String("city", loc.CityName),
		zap.Int("aqi", aqi),
		zap.String("trend", string(builder.Strategy())),
		zap.Duration("duration", time.Since(start)))
	return conditions, nil
}

func clampPercent(v int) int {
	if v > 100 {
		return 100
	}
	return v
}

func roundNonNegative(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	return r
}
