package models

// Band is an AQI health-advisory severity band.
type Band string

const (
	BandGood      Band = "good"
	BandModerate  Band = "moderate"
	BandUnhealthy Band = "unhealthy"
	BandHazardous Band = "hazardous"
)

// Advisory is human-readable guidance for a Conditions value.
type Advisory struct {
	Band Band   `json:"band"`
	Text string `json:"text"`
}
