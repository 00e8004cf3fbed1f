package service

import (
	"context"
	"sync"

	"github.com/kjstillabower/air-quality-advisor/internal/models"
)

type mockWeatherClient struct {
	weather models.CurrentWeather
	err     error
	block   bool
}

func (m *mockWeatherClient) CurrentWeather(ctx context.Context, lat, lon float64) (models.CurrentWeather, error) {
	if m.block {
		<-ctx.Done()
		return models.CurrentWeather{}, ctx.Err()
	}
	return m.weather, m.err
}

type mockAirQualityClient struct {
	air models.AirQuality
	err error
}

func (m *mockAirQualityClient) AirQuality(ctx context.Context, lat, lon float64) (models.AirQuality, error) {
	return m.air, m.err
}

type mockResolver struct {
	byName    models.Location
	nameErr   error
	byCoords  models.Location
	nameCalls int
	mu        sync.Mutex
}

func (m *mockResolver) ResolveByName(ctx context.Context, query string) (models.Location, error) {
	m.mu.Lock()
	m.nameCalls++
	m.mu.Unlock()
	return m.byName, m.nameErr
}

func (m *mockResolver) ResolveByCoordinates(ctx context.Context, lat, lon float64) models.Location {
	loc := m.byCoords
	loc.Latitude, loc.Longitude = lat, lon
	return loc
}

// fetchFunc adapts a function to ConditionsFetcher.
type fetchFunc func(ctx context.Context, loc models.Location) (models.Conditions, error)

func (f fetchFunc) FetchConditions(ctx context.Context, loc models.Location) (models.Conditions, error) {
	return f(ctx, loc)
}

func float(v float64) *float64 { return &v }
