package service

import "testing"

func TestWeatherLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "Clear"},
		{3, "Overcast"},
		{45, "Fog"},
		{55, "Dense Drizzle"},
		{63, "Rain"},
		{75, "Heavy Snow"},
		{81, "Rain Showers"},
		{99, "Thunderstorm With Heavy Hail"},
		{9999, "Clear"},
		{-1, "Clear"},
	}
	for _, tt := range tests {
		if got := WeatherLabel(tt.code); got != tt.want {
			t.Errorf("WeatherLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
