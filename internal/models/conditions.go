package models

import "time"

// TrendLength is the number of points in a Trend: four past hours, now, and one forecast hour.
const TrendLength = 6

// TrendLabels are the display labels for each Trend position.
var TrendLabels = [TrendLength]string{"4h ago", "3h ago", "2h ago", "1h ago", "Now", "Forecast"}

// Trend is an ordered AQI sequence from four hours ago to one hour ahead.
type Trend [TrendLength]int

// Conditions is the merged weather and air-quality picture for one Location.
type Conditions struct {
	City         string  `json:"city"`
	Country      string  `json:"country"`
	AQI          int     `json:"aqi"`
	TemperatureC int     `json:"temperatureC"`
	HumidityPct  int     `json:"humidityPct"`
	WindKph      int     `json:"windKph"`
	PM25         float64 `json:"pm25"`
	PM10         float64 `json:"pm10"`
	Ozone        float64 `json:"ozone"`
	WeatherLabel string  `json:"weatherLabel"`
	Forecast     Trend   `json:"forecast"`
}

// HourlySeries is an hourly AQI time series. Missing readings are NaN.
type HourlySeries struct {
	Times  []time.Time
	Values []float64
}

// Len returns the number of usable (time, value) pairs.
func (h HourlySeries) Len() int {
	if len(h.Times) < len(h.Values) {
		return len(h.Times)
	}
	return len(h.Values)
}

// CurrentWeather is a normalized weather reading in metric units as delivered upstream.
type CurrentWeather struct {
	TemperatureC float64
	HumidityPct  float64
	WindSpeedMS  float64
	WeatherCode  int
}

// AirQuality is a normalized air-quality reading. AQI is nil when the provider has no value
// for the location; pollutant fields are zero when absent.
type AirQuality struct {
	AQI    *float64
	PM25   float64
	PM10   float64
	Ozone  float64
	Hourly HourlySeries
}
