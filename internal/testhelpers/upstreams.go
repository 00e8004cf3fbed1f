// Package testhelpers runs fake geocoding and Open-Meteo servers for end-to-end tests.
package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Canned place returned by the fake geocoder.
const (
	PlaceCity    = "Paris"
	PlaceCountry = "fr"
	PlaceLat     = 48.8566
	PlaceLon     = 2.3522
)

// UpstreamConfig controls what the fake servers answer.
// A non-zero *Status makes that server fail with the status.
type UpstreamConfig struct {
	Now time.Time
	// AQI is the current us_aqi; nil answers null.
	AQI *float64
	// Hourly values from four hours before Now, one per hour.
	Hourly []float64

	TemperatureC float64
	HumidityPct  float64
	WindMS       float64
	WeatherCode  int

	NoMatches bool

	GeocodingStatus  int
	WeatherStatus    int
	AirQualityStatus int
}

// DefaultUpstreamConfig answers a moderate day in Paris aligned to now.
func DefaultUpstreamConfig(now time.Time) UpstreamConfig {
	aqi := 72.0
	return UpstreamConfig{
		Now:          now,
		AQI:          &aqi,
		Hourly:       []float64{60, 64, 66, 70, 72, 80, 85},
		TemperatureC: 18.4,
		HumidityPct:  61,
		WindMS:       5,
		WeatherCode:  61,
	}
}

// Upstreams holds the three fake servers and per-server request counts.
type Upstreams struct {
	Geocoding  *httptest.Server
	Weather    *httptest.Server
	AirQuality *httptest.Server

	mu     sync.Mutex
	cfg    UpstreamConfig
	calls  map[string]int
	agents []string
}

// NewUpstreams starts the fake servers. They are closed when the test ends.
func NewUpstreams(t *testing.T, cfg UpstreamConfig) *Upstreams {
	t.Helper()
	u := &Upstreams{cfg: cfg, calls: make(map[string]int)}
	u.Geocoding = httptest.NewServer(http.HandlerFunc(u.serveGeocoding))
	u.Weather = httptest.NewServer(http.HandlerFunc(u.serveWeather))
	u.AirQuality = httptest.NewServer(http.HandlerFunc(u.serveAirQuality))
	t.Cleanup(func() {
		u.Geocoding.Close()
		u.Weather.Close()
		u.AirQuality.Close()
	})
	return u
}

// Update changes the answers for subsequent requests.
func (u *Upstreams) Update(fn func(*UpstreamConfig)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(&u.cfg)
}

// Calls returns how many requests reached the named server ("geocoding", "weather", "air_quality").
func (u *Upstreams) Calls(name string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[name]
}

// UserAgents returns the User-Agent headers seen by the geocoder.
func (u *Upstreams) UserAgents() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.agents...)
}

func (u *Upstreams) begin(name string) UpstreamConfig {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls[name]++
	return u.cfg
}

func (u *Upstreams) serveGeocoding(w http.ResponseWriter, r *http.Request) {
	cfg := u.begin("geocoding")
	u.mu.Lock()
	u.agents = append(u.agents, r.Header.Get("User-Agent"))
	u.mu.Unlock()
	if cfg.GeocodingStatus != 0 {
		http.Error(w, "geocoder down", cfg.GeocodingStatus)
		return
	}
	place := map[string]interface{}{
		"lat":          fmt.Sprintf("%.4f", PlaceLat),
		"lon":          fmt.Sprintf("%.4f", PlaceLon),
		"display_name": "Paris, Île-de-France, France",
		"address":      map[string]string{"city": PlaceCity, "country_code": PlaceCountry},
	}
	switch r.URL.Path {
	case "/search":
		if cfg.NoMatches {
			writeBody(w, []interface{}{})
			return
		}
		writeBody(w, []interface{}{place})
	case "/reverse":
		if cfg.NoMatches {
			writeBody(w, map[string]string{"error": "Unable to geocode"})
			return
		}
		writeBody(w, place)
	default:
		http.NotFound(w, r)
	}
}

func (u *Upstreams) serveWeather(w http.ResponseWriter, r *http.Request) {
	cfg := u.begin("weather")
	if cfg.WeatherStatus != 0 {
		http.Error(w, "weather down", cfg.WeatherStatus)
		return
	}
	writeBody(w, map[string]interface{}{
		"current": map[string]interface{}{
			"temperature_2m":       cfg.TemperatureC,
			"relative_humidity_2m": cfg.HumidityPct,
			"wind_speed_10m":       cfg.WindMS,
			"weather_code":         cfg.WeatherCode,
		},
	})
}

func (u *Upstreams) serveAirQuality(w http.ResponseWriter, r *http.Request) {
	cfg := u.begin("air_quality")
	if cfg.AirQualityStatus != 0 {
		http.Error(w, "air quality down", cfg.AirQualityStatus)
		return
	}
	base := cfg.Now.UTC().Truncate(time.Hour)
	times := make([]string, len(cfg.Hourly))
	for i := range cfg.Hourly {
		times[i] = base.Add(time.Duration(i-4) * time.Hour).Format("2006-01-02T15:04")
	}
	writeBody(w, map[string]interface{}{
		"current": map[string]interface{}{
			"us_aqi": cfg.AQI,
			"pm2_5":  12.5,
			"pm10":   20.1,
			"ozone":  48,
		},
		"hourly": map[string]interface{}{
			"time":   times,
			"us_aqi": cfg.Hourly,
		},
	})
}

func writeBody(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
