// Package advisor turns current conditions into a health advisory.
package advisor

import (
	"fmt"

	"github.com/kjstillabower/air-quality-advisor/internal/models"
)

// Upper bounds (inclusive) of each band. Anything above UnhealthyMax is hazardous.
const (
	GoodMax      = 50
	ModerateMax  = 100
	UnhealthyMax = 200
)

// Classify maps an AQI value to its band. Negative values are treated as good.
func Classify(aqi int) models.Band {
	switch {
	case aqi <= GoodMax:
		return models.BandGood
	case aqi <= ModerateMax:
		return models.BandModerate
	case aqi <= UnhealthyMax:
		return models.BandUnhealthy
	default:
		return models.BandHazardous
	}
}

// Analyze returns the advisory for c. It never fails.
func Analyze(c models.Conditions) models.Advisory {
	band := Classify(c.AQI)
	return models.Advisory{Band: band, Text: text(band, c)}
}

func text(band models.Band, c models.Conditions) string {
	switch band {
	case models.BandGood:
		return fmt.Sprintf("Air quality is good. It's a great day to be active outside, with temperatures around %d°C.", c.TemperatureC)
	case models.BandModerate:
		return fmt.Sprintf("Air quality is acceptable. Unusually sensitive people should consider reducing prolonged or heavy outdoor exertion. Current weather: %s.", weatherLabel(c))
	case models.BandUnhealthy:
		return "Air quality is unhealthy. Everyone may begin to experience health effects, and sensitive groups may experience more serious effects. " +
			"Avoid prolonged outdoor exertion and consider wearing a mask outdoors."
	default:
		return fmt.Sprintf("Health alert: air quality is hazardous. Everyone should stay indoors with windows and doors closed and avoid all outdoor activity. Current weather: %s.", weatherLabel(c))
	}
}

func weatherLabel(c models.Conditions) string {
	if c.WeatherLabel == "" {
		return "Clear"
	}
	return c.WeatherLabel
}
