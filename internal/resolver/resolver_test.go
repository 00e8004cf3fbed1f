package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/air-quality-advisor/internal/client"
	"github.com/kjstillabower/air-quality-advisor/internal/models"
	"github.com/kjstillabower/air-quality-advisor/internal/observability"
)

type mockGeocoder struct {
	places     []client.Place
	searchErr  error
	reverse    client.Place
	found      bool
	reverseErr error

	searchCalls int
	lastQuery   string
}

func (m *mockGeocoder) Search(ctx context.Context, query string, limit int) ([]client.Place, error) {
	m.searchCalls++
	m.lastQuery = query
	return m.places, m.searchErr
}

func (m *mockGeocoder) Reverse(ctx context.Context, lat, lon float64) (client.Place, bool, error) {
	return m.reverse, m.found, m.reverseErr
}

func TestResolveByName_AddressPriority(t *testing.T) {
	tests := []struct {
		name     string
		address  client.Address
		wantCity string
	}{
		{"city wins", client.Address{City: "Lyon", Town: "T", Village: "V", Municipality: "M"}, "Lyon"},
		{"town when no city", client.Address{Town: "Hebden Bridge", Village: "V", Municipality: "M"}, "Hebden Bridge"},
		{"village when no town", client.Address{Village: "Grindelwald", Municipality: "M"}, "Grindelwald"},
		{"municipality last", client.Address{Municipality: "Sotkamo"}, "Sotkamo"},
		{"query as fallback", client.Address{}, "Somewhere"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geo := &mockGeocoder{places: []client.Place{{Latitude: 1.5, Longitude: 2.5, DisplayName: "Display", Address: tt.address}}}
			loc, err := New(geo).ResolveByName(context.Background(), "  Somewhere ")
			if err != nil {
				t.Fatalf("ResolveByName() error = %v", err)
			}
			if loc.CityName != tt.wantCity {
				t.Errorf("CityName = %q, want %q", loc.CityName, tt.wantCity)
			}
			if loc.Latitude != 1.5 || loc.Longitude != 2.5 {
				t.Errorf("coords = (%v, %v), want (1.5, 2.5)", loc.Latitude, loc.Longitude)
			}
			if geo.lastQuery != "Somewhere" {
				t.Errorf("query sent = %q, want trimmed %q", geo.lastQuery, "Somewhere")
			}
		})
	}
}

func TestResolveByName_CountryCode(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"fr", "FR"},
		{"US", "US"},
		{"", ""},
	}
	for _, tt := range tests {
		geo := &mockGeocoder{places: []client.Place{{Address: client.Address{City: "X", CountryCode: tt.code}}}}
		loc, err := New(geo).ResolveByName(context.Background(), "X")
		if err != nil {
			t.Fatalf("ResolveByName() error = %v", err)
		}
		if loc.CountryCode != tt.want {
			t.Errorf("CountryCode(%q) = %q, want %q", tt.code, loc.CountryCode, tt.want)
		}
		if tt.want != "" && loc.DisplayName != "X, "+tt.want {
			t.Errorf("DisplayName = %q, want built from city and country", loc.DisplayName)
		}
	}
}

func TestResolveByName_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   "} {
		geo := &mockGeocoder{}
		_, err := New(geo).ResolveByName(context.Background(), q)
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("ResolveByName(%q) error = %v, want ErrNotFound", q, err)
		}
		if geo.searchCalls != 0 {
			t.Errorf("ResolveByName(%q) called geocoder %d times, want 0", q, geo.searchCalls)
		}
	}
}

func TestResolveByName_NoMatches(t *testing.T) {
	_, err := New(&mockGeocoder{}).ResolveByName(context.Background(), "Qwertyuiop")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "check spelling") {
		t.Errorf("error %q should tell the user to check spelling", err)
	}
}

func TestResolveByName_ServiceUnavailable(t *testing.T) {
	geo := &mockGeocoder{searchErr: client.ErrUpstreamFailure}
	_, err := New(geo).ResolveByName(context.Background(), "Paris")
	if !errors.Is(err, models.ErrServiceUnavailable) {
		t.Errorf("error = %v, want ErrServiceUnavailable", err)
	}
	if errors.Is(err, models.ErrNotFound) {
		t.Errorf("error = %v must be distinct from ErrNotFound", err)
	}
	if !errors.Is(err, client.ErrUpstreamFailure) {
		t.Errorf("error = %v should keep the upstream cause", err)
	}
}

func TestResolveByCoordinates_Success(t *testing.T) {
	geo := &mockGeocoder{
		found:   true,
		reverse: client.Place{Latitude: 51.501, Longitude: -0.141, DisplayName: "Westminster, London", Address: client.Address{Town: "Westminster", CountryCode: "gb"}},
	}
	loc := New(geo).ResolveByCoordinates(context.Background(), 51.5, -0.14)
	if loc.CityName != "Westminster" || loc.CountryCode != "GB" {
		t.Errorf("loc = %+v, want Westminster/GB", loc)
	}
	if loc.Latitude != 51.5 || loc.Longitude != -0.14 {
		t.Errorf("coords = (%v, %v), want input coordinates", loc.Latitude, loc.Longitude)
	}
}

func TestResolveByCoordinates_NeverFails(t *testing.T) {
	tests := []struct {
		name string
		geo  *mockGeocoder
	}{
		{"provider error", &mockGeocoder{reverseErr: client.ErrUpstreamFailure}},
		{"circuit open", &mockGeocoder{reverseErr: client.ErrCircuitOpen}},
		{"no address", &mockGeocoder{found: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			ctx := observability.WithLogger(context.Background(), zap.New(core))

			loc := New(tt.geo).ResolveByCoordinates(ctx, -33.87, 151.21)
			want := models.Location{Latitude: -33.87, Longitude: 151.21, CityName: "Current Location", DisplayName: "Current Location"}
			if loc != want {
				t.Errorf("loc = %+v, want %+v", loc, want)
			}
			if logs.FilterMessage("reverse geocoding fell back to current location").Len() != 1 {
				t.Error("expected one fallback warning")
			}
		})
	}
}

func TestResolveByCoordinates_CallerCancelledIsNotFallback(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctx, cancel := context.WithCancel(observability.WithLogger(context.Background(), zap.New(core)))
	cancel()
	before := testutil.ToFloat64(observability.ReverseGeocodeFallbackTotal)

	loc := New(&mockGeocoder{reverseErr: context.Canceled}).ResolveByCoordinates(ctx, 10, 20)
	if loc.CityName != models.CurrentLocationName || loc.Latitude != 10 || loc.Longitude != 20 {
		t.Errorf("loc = %+v, want current location at input coordinates", loc)
	}
	if got := testutil.ToFloat64(observability.ReverseGeocodeFallbackTotal) - before; got != 0 {
		t.Errorf("fallback counter delta = %v, want 0", got)
	}
	if logs.Len() != 0 {
		t.Errorf("warnings logged = %d, want 0", logs.Len())
	}
}

func newSpanRecorder() (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)), sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestResolveByName_Spans(t *testing.T) {
	tests := []struct {
		name       string
		geo        *mockGeocoder
		query      string
		wantStatus codes.Code
		wantCity   string
	}{
		{"resolved", &mockGeocoder{places: []client.Place{{Address: client.Address{City: "Lyon"}}}}, "Lyon", codes.Ok, "Lyon"},
		{"no match", &mockGeocoder{}, "Atlantis", codes.Error, ""},
		{"provider down", &mockGeocoder{searchErr: client.ErrUpstreamFailure}, "Lyon", codes.Error, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, sr := newSpanRecorder()
			_, _ = New(tt.geo, WithTracerProvider(tp)).ResolveByName(context.Background(), tt.query)

			spans := sr.Ended()
			if len(spans) != 1 || spans[0].Name() != "ResolveByName" {
				t.Fatalf("spans = %d, want one ResolveByName span", len(spans))
			}
			if got := spans[0].Status().Code; got != tt.wantStatus {
				t.Errorf("status = %v, want %v", got, tt.wantStatus)
			}
			if v, ok := spanAttr(spans[0], "location.query"); !ok || v.AsString() != tt.query {
				t.Errorf("location.query = %v, want %q", v.AsString(), tt.query)
			}
			v, ok := spanAttr(spans[0], "location.city")
			if tt.wantCity == "" && ok {
				t.Errorf("location.city set to %q on failure", v.AsString())
			}
			if tt.wantCity != "" && v.AsString() != tt.wantCity {
				t.Errorf("location.city = %q, want %q", v.AsString(), tt.wantCity)
			}
		})
	}
}

func TestResolveByCoordinates_SpanMarksFallback(t *testing.T) {
	tp, sr := newSpanRecorder()
	New(&mockGeocoder{reverseErr: client.ErrUpstreamFailure}, WithTracerProvider(tp)).ResolveByCoordinates(context.Background(), 1, 2)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if v, ok := spanAttr(spans[0], "location.fallback"); !ok || !v.AsBool() {
		t.Error("location.fallback attribute missing")
	}
	if v, _ := spanAttr(spans[0], "location.lat"); v.AsFloat64() != 1 {
		t.Errorf("location.lat = %v, want 1", v.AsFloat64())
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the provider error recorded as a span event")
	}
}
