package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means user input did not resolve to any place.
	ErrNotFound = errors.New("location not found, please check spelling")
	// ErrServiceUnavailable means the geocoding provider could not be reached or answered with a failure.
	ErrServiceUnavailable = errors.New("location service unavailable")
	// ErrWeatherUnavailable means current weather could not be retrieved.
	ErrWeatherUnavailable = errors.New("weather data unavailable")
	// ErrAirQualityUnavailable means air-quality data could not be retrieved.
	ErrAirQualityUnavailable = errors.New("air quality data unavailable")
	// ErrNoMonitoringCoverage is the air-quality case where the provider answered but has no AQI for the location.
	ErrNoMonitoringCoverage = fmt.Errorf("%w: no air quality monitoring for this location, try a different city", ErrAirQualityUnavailable)
)
