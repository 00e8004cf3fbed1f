package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestNominatim(t *testing.T, handler http.HandlerFunc) *NominatimClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewNominatimClient(Options{BaseURL: server.URL, UserAgent: "aqa-test/1.0", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewNominatimClient() error = %v", err)
	}
	return c
}

func TestNewNominatimClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"missing URL", Options{UserAgent: "ua"}, true},
		{"missing user agent", Options{BaseURL: "https://nominatim.test"}, true},
		{"valid", Options{BaseURL: "https://nominatim.test", UserAgent: "ua"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewNominatimClient(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewNominatimClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && c == nil {
				t.Fatal("NewNominatimClient() returned nil client")
			}
		})
	}
}

func TestNominatimClient_Search(t *testing.T) {
	c := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "Paris" || q.Get("limit") != "1" || q.Get("addressdetails") != "1" || q.Get("format") != "json" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"lat":"48.8588897","lon":"2.3200410","display_name":"Paris, France",
			"address":{"city":"Paris","country_code":"fr"}}]`))
	})

	places, err := c.Search(context.Background(), "Paris", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(places) != 1 {
		t.Fatalf("len(places) = %d, want 1", len(places))
	}
	p := places[0]
	if p.Latitude != 48.8588897 || p.Longitude != 2.3200410 {
		t.Errorf("coords = (%v, %v), want (48.8588897, 2.3200410)", p.Latitude, p.Longitude)
	}
	if p.Address.City != "Paris" || p.Address.CountryCode != "fr" {
		t.Errorf("Address = %+v", p.Address)
	}
	if p.DisplayName != "Paris, France" {
		t.Errorf("DisplayName = %q", p.DisplayName)
	}
}

func TestNominatimClient_Search_NoMatches(t *testing.T) {
	c := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	places, err := c.Search(context.Background(), "Xyzzyville", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(places) != 0 {
		t.Errorf("len(places) = %d, want 0", len(places))
	}
}

func TestNominatimClient_Search_BadCoordinates(t *testing.T) {
	c := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"north","lon":"2.0"}]`))
	})
	if _, err := c.Search(context.Background(), "Paris", 1); err == nil {
		t.Fatal("Search() expected parse error, got nil")
	}
}

func TestNominatimClient_Search_UpstreamFailure(t *testing.T) {
	c := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Search(context.Background(), "Paris", 1)
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("Search() error = %v, want ErrUpstreamFailure", err)
	}
}

func TestNominatimClient_Reverse(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantFound bool
		wantTown  string
	}{
		{
			name:      "address found",
			body:      `{"lat":"51.5","lon":"-0.12","display_name":"Westminster, London","address":{"town":"Westminster","country_code":"gb"}}`,
			wantFound: true,
			wantTown:  "Westminster",
		},
		{
			name:      "unable to geocode",
			body:      `{"error":"Unable to geocode"}`,
			wantFound: false,
		},
		{
			name:      "no address block",
			body:      `{"lat":"0","lon":"0","display_name":"Ocean"}`,
			wantFound: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/reverse" {
					t.Errorf("path = %q, want /reverse", r.URL.Path)
				}
				if r.URL.Query().Get("lat") != "51.5" || r.URL.Query().Get("lon") != "-0.12" {
					t.Errorf("unexpected query %q", r.URL.RawQuery)
				}
				_, _ = w.Write([]byte(tt.body))
			})
			p, found, err := c.Reverse(context.Background(), 51.5, -0.12)
			if err != nil {
				t.Fatalf("Reverse() error = %v", err)
			}
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if found && p.Address.Town != tt.wantTown {
				t.Errorf("Town = %q, want %q", p.Address.Town, tt.wantTown)
			}
		})
	}
}
