// Package resolver turns free text or coordinates into a Location.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-advisor/internal/client"
	"github.com/kjstillabower/air-quality-advisor/internal/models"
	"github.com/kjstillabower/air-quality-advisor/internal/observability"
)

// Resolver resolves locations through a geocoding provider. It keeps no state between calls.
type Resolver struct {
	geocoder client.GeocodingClient
	tracer   trace.Tracer
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Resolver) { r.tracer = tp.Tracer(tracerName) }
}

const tracerName = "LocationResolver"

// New returns a Resolver backed by geocoder.
func New(geocoder client.GeocodingClient, opts ...Option) *Resolver {
	r := &Resolver{geocoder: geocoder, tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveByName looks up the best match for query.
// Returns models.ErrNotFound for blank input or zero matches and models.ErrServiceUnavailable
// when the provider cannot be reached or answers with a failure status.
func (r *Resolver) ResolveByName(ctx context.Context, query string) (models.Location, error) {
	ctx, span := r.tracer.Start(ctx, "ResolveByName")
	defer span.End()

	logger := observability.LoggerFromContext(ctx)
	q := strings.TrimSpace(query)
	if q == "" {
		span.SetStatus(codes.Error, "empty query")
		return models.Location{}, fmt.Errorf("%w: empty query", models.ErrNotFound)
	}
	span.SetAttributes(attribute.String("location.query", q))

	places, err := r.geocoder.Search(ctx, q, 1)
	if err != nil {
		logger.Debug("geocoding search failed", zap.String("query", q), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
		return models.Location{}, fmt.Errorf("%w: %w", models.ErrServiceUnavailable, err)
	}
	if len(places) == 0 {
		span.SetStatus(codes.Error, "no match")
		return models.Location{}, fmt.Errorf("%w: %q", models.ErrNotFound, q)
	}

	loc := locationFromPlace(places[0], q)
	logger.Debug("location resolved",
		zap.String("query", q),
		zap.String("city", loc.CityName),
		zap.String("country", loc.CountryCode))
	span.SetAttributes(attribute.String("location.city", loc.CityName))
	span.SetStatus(codes.Ok, "resolved")
	return loc, nil
}

// ResolveByCoordinates names the place at (lat, lon). It never fails: when the reverse lookup
// errors or finds no address, the result is named models.CurrentLocationName with an empty
// country. The input coordinates are always kept verbatim.
func (r *Resolver) ResolveByCoordinates(ctx context.Context, lat, lon float64) models.Location {
	ctx, span := r.tracer.Start(ctx, "ResolveByCoordinates")
	defer span.End()
	span.SetAttributes(attribute.Float64("location.lat", lat), attribute.Float64("location.lon", lon))

	place, found, err := r.geocoder.Reverse(ctx, lat, lon)
	if err != nil || !found {
		fields := []zap.Field{zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Bool("found", found)}
		if err != nil {
			fields = append(fields, zap.Error(err))
			span.RecordError(err)
		}
		// An abandoned request is not a provider fallback.
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "cancelled")
			observability.LoggerFromContext(ctx).Debug("reverse geocoding abandoned by caller", fields...)
		} else {
			span.SetAttributes(attribute.Bool("location.fallback", true))
			observability.ReverseGeocodeFallbackTotal.Inc()
			observability.LoggerFromContext(ctx).Warn("reverse geocoding fell back to current location", fields...)
		}
		return models.Location{
			Latitude:    lat,
			Longitude:   lon,
			CityName:    models.CurrentLocationName,
			DisplayName: models.CurrentLocationName,
		}
	}

	loc := locationFromPlace(place, models.CurrentLocationName)
	loc.Latitude = lat
	loc.Longitude = lon
	span.SetAttributes(attribute.String("location.city", loc.CityName))
	return loc
}

// locationFromPlace picks the city name by city, town, village, municipality, then fallback.
func locationFromPlace(p client.Place, fallback string) models.Location {
	city := firstNonEmpty(p.Address.City, p.Address.Town, p.Address.Village, p.Address.Municipality, fallback)
	country := strings.ToUpper(strings.TrimSpace(p.Address.CountryCode))

	display := strings.TrimSpace(p.DisplayName)
	if display == "" {
		display = city
		if country != "" {
			display += ", " + country
		}
	}
	return models.Location{
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		CityName:    city,
		CountryCode: country,
		DisplayName: display,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
