package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// GeocodingClient looks places up by name and by coordinates.
type GeocodingClient interface {
	// Search returns at most limit ranked matches for query. An empty slice means no match.
	Search(ctx context.Context, query string, limit int) ([]Place, error)
	// Reverse returns the nearest addressed place. found is false when the provider has no address there.
	Reverse(ctx context.Context, lat, lon float64) (place Place, found bool, err error)
}

// Place is one geocoding match.
type Place struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Address     Address
}

// Address holds the address components used to name a place.
type Address struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	CountryCode  string `json:"country_code"`
}

// NominatimClient talks to an OpenStreetMap Nominatim-compatible geocoder.
// Nominatim requires an identifying User-Agent and no key.
type NominatimClient struct {
	baseURL string
	req     *requester
}

// NewNominatimClient returns a client for the geocoder at opts.BaseURL.
func NewNominatimClient(opts Options) (*NominatimClient, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("geocoding: base URL is required")
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		return nil, fmt.Errorf("geocoding: user agent is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("geocoding: invalid base URL: %w", err)
	}
	return &NominatimClient{
		baseURL: opts.BaseURL,
		req:     newRequester(UpstreamGeocoding, opts),
	}, nil
}

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
	Error       string  `json:"error"`
}

// Search implements GeocodingClient.
func (c *NominatimClient) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	if limit <= 0 {
		limit = 1
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	var raw []nominatimPlace
	if err := c.req.getJSON(ctx, joinURL(c.baseURL, "/search")+"?"+params.Encode(), &raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		p, err := r.toPlace()
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, nil
}

// Reverse implements GeocodingClient.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (Place, bool, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	var raw nominatimPlace
	if err := c.req.getJSON(ctx, joinURL(c.baseURL, "/reverse")+"?"+params.Encode(), &raw); err != nil {
		return Place{}, false, err
	}
	if raw.Error != "" || raw.Address == (Address{}) {
		return Place{}, false, nil
	}
	p, err := raw.toPlace()
	if err != nil {
		return Place{}, false, err
	}
	return p, true, nil
}

func (r nominatimPlace) toPlace() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse response: latitude %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse response: longitude %q: %w", r.Lon, err)
	}
	return Place{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: r.DisplayName,
		Address:     r.Address,
	}, nil
}
