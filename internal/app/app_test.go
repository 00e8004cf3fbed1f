package app

import (
	"context"
	"sort"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kjstillabower/air-quality-advisor/internal/config"
	"github.com/kjstillabower/air-quality-advisor/internal/service"
	"github.com/kjstillabower/air-quality-advisor/internal/testhelpers"
	"github.com/kjstillabower/air-quality-advisor/internal/traffic"
)

func TestNew_WiresPipeline(t *testing.T) {
	now := time.Now()
	up := testhelpers.NewUpstreams(t, testhelpers.DefaultUpstreamConfig(now))

	cfg := config.Defaults()
	cfg.GeocodingURL = up.Geocoding.URL
	cfg.WeatherAPIURL = up.Weather.URL
	cfg.AirQualityAPIURL = up.AirQuality.URL
	cfg.GeocodingUserAgent = "app-test/1.0"

	tracker := traffic.NewTracker(0)
	p, err := New(cfg, nil, tracker, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	report, err := p.Dashboard.Build(context.Background(), service.DashboardRequest{Query: "Paris"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if report.Location.CityName != testhelpers.PlaceCity || report.Conditions.AQI != 72 {
		t.Errorf("report = %+v", report)
	}
	if got := tracker.Upstreams(); len(got) != 3 {
		t.Errorf("recorded upstreams = %v, want all three", got)
	}
	if ua := up.UserAgents(); len(ua) == 0 || ua[0] != "app-test/1.0" {
		t.Errorf("user agents = %v", ua)
	}
}

func TestNew_RejectsMissingURL(t *testing.T) {
	cfg := config.Defaults()
	cfg.WeatherAPIURL = ""
	if _, err := New(cfg, nil, nil, nil); err == nil {
		t.Error("New() with empty weather URL should fail")
	}
}

func TestNew_TracesOnGivenProvider(t *testing.T) {
	up := testhelpers.NewUpstreams(t, testhelpers.DefaultUpstreamConfig(time.Now()))
	cfg := config.Defaults()
	cfg.GeocodingURL = up.Geocoding.URL
	cfg.WeatherAPIURL = up.Weather.URL
	cfg.AirQualityAPIURL = up.AirQuality.URL

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	p, err := New(cfg, nil, nil, tp)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := p.Dashboard.Build(context.Background(), service.DashboardRequest{Query: "Paris"}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "FetchConditions" || names[1] != "ResolveByName" {
		t.Errorf("spans = %v, want FetchConditions and ResolveByName", names)
	}
}
