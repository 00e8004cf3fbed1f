package models

// Location is a resolved place. Latitude is within [-90,90] and Longitude within [-180,180].
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CityName    string  `json:"cityName"`
	CountryCode string  `json:"countryCode"` // ISO 3166-1 alpha-2, upper-case; empty when unknown
	DisplayName string  `json:"displayName"`
}

// CurrentLocationName is the city name used when reverse geocoding cannot name a place.
const CurrentLocationName = "Current Location"
