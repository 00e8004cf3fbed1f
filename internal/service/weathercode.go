package service

// DefaultWeatherLabel is used for any code missing from the table.
const DefaultWeatherLabel = "Clear"

var weatherLabels = map[int]string{
	0:  "Clear",
	1:  "Mainly Clear",
	2:  "Partly Cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing Rime Fog",
	51: "Light Drizzle",
	53: "Drizzle",
	55: "Dense Drizzle",
	56: "Light Freezing Drizzle",
	57: "Dense Freezing Drizzle",
	61: "Slight Rain",
	63: "Rain",
	65: "Heavy Rain",
	66: "Light Freezing Rain",
	67: "Heavy Freezing Rain",
	71: "Slight Snow",
	73: "Snow",
	75: "Heavy Snow",
	77: "Snow Grains",
	80: "Slight Rain Showers",
	81: "Rain Showers",
	82: "Violent Rain Showers",
	85: "Slight Snow Showers",
	86: "Heavy Snow Showers",
	95: "Thunderstorm",
	96: "Thunderstorm With Slight Hail",
	99: "Thunderstorm With Heavy Hail",
}

// WeatherLabel maps a WMO weather code to a short English label.
func WeatherLabel(code int) string {
	if label, ok := weatherLabels[code]; ok {
		return label
	}
	return DefaultWeatherLabel
}
