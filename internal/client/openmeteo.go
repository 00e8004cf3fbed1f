package client

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/air-quality-advisor/internal/models"
)

// WeatherClient fetches current weather for coordinates.
type WeatherClient interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (models.CurrentWeather, error)
}

// AirQualityClient fetches current air quality and the hourly AQI series for coordinates.
type AirQualityClient interface {
	AirQuality(ctx context.Context, lat, lon float64) (models.AirQuality, error)
}

// hourlyTimeLayout is Open-Meteo's hourly timestamp format; with timezone=GMT the times are UTC.
const hourlyTimeLayout = "2006-01-02T15:04"

// OpenMeteoWeatherClient reads the Open-Meteo forecast endpoint. Wind speed is requested in m/s.
type OpenMeteoWeatherClient struct {
	baseURL string
	req     *requester
}

// NewOpenMeteoWeatherClient returns a weather client for the forecast endpoint at opts.BaseURL.
func NewOpenMeteoWeatherClient(opts Options) (*OpenMeteoWeatherClient, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("weather: base URL is required")
	}
	return &OpenMeteoWeatherClient{
		baseURL: opts.BaseURL,
		req:     newRequester(UpstreamWeather, opts),
	}, nil
}

type openMeteoWeatherResponse struct {
	Current *struct {
		Temperature *float64 `json:"temperature_2m"`
		Humidity    *float64 `json:"relative_humidity_2m"`
		WindSpeed   *float64 `json:"wind_speed_10m"`
		WeatherCode *int     `json:"weather_code"`
	} `json:"current"`
}

// CurrentWeather implements WeatherClient.
func (c *OpenMeteoWeatherClient) CurrentWeather(ctx context.Context, lat, lon float64) (models.CurrentWeather, error) {
	params := coordParams(lat, lon)
	params.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")
	params.Set("wind_speed_unit", "ms")
	params.Set("timezone", "GMT")

	var resp openMeteoWeatherResponse
	if err := c.req.getJSON(ctx, c.baseURL+"?"+params.Encode(), &resp); err != nil {
		return models.CurrentWeather{}, err
	}
	cur := resp.Current
	if cur == nil || cur.Temperature == nil || cur.Humidity == nil || cur.WindSpeed == nil {
		return models.CurrentWeather{}, fmt.Errorf("parse response: current weather block incomplete")
	}

	w := models.CurrentWeather{
		TemperatureC: *cur.Temperature,
		HumidityPct:  *cur.Humidity,
		WindSpeedMS:  *cur.WindSpeed,
	}
	if cur.WeatherCode != nil {
		w.WeatherCode = *cur.WeatherCode
	}
	return w, nil
}

// OpenMeteoAirQualityClient reads the Open-Meteo air-quality endpoint (US AQI scale).
type OpenMeteoAirQualityClient struct {
	baseURL      string
	pastDays     int
	forecastDays int
	req          *requester
}

// NewOpenMeteoAirQualityClient returns an air-quality client. pastDays and forecastDays bound
// the hourly series; zero values default to one day back and two days ahead.
func NewOpenMeteoAirQualityClient(opts Options, pastDays, forecastDays int) (*OpenMeteoAirQualityClient, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("air quality: base URL is required")
	}
	if pastDays <= 0 {
		pastDays = 1
	}
	if forecastDays <= 0 {
		forecastDays = 2
	}
	return &OpenMeteoAirQualityClient{
		baseURL:      opts.BaseURL,
		pastDays:     pastDays,
		forecastDays: forecastDays,
		req:          newRequester(UpstreamAirQuality, opts),
	}, nil
}

type openMeteoAirQualityResponse struct {
	Current *struct {
		USAQI *float64 `json:"us_aqi"`
		PM25  *float64 `json:"pm2_5"`
		PM10  *float64 `json:"pm10"`
		Ozone *float64 `json:"ozone"`
	} `json:"current"`
	Hourly *struct {
		Time  []string   `json:"time"`
		USAQI []*float64 `json:"us_aqi"`
	} `json:"hourly"`
}

// AirQuality implements AirQualityClient. A missing current AQI is reported as a nil AQI,
// not as an error; the caller decides what that means.
func (c *OpenMeteoAirQualityClient) AirQuality(ctx context.Context, lat, lon float64) (models.AirQuality, error) {
	params := coordParams(lat, lon)
	params.Set("current", "us_aqi,pm2_5,pm10,ozone")
	params.Set("hourly", "us_aqi")
	params.Set("past_days", strconv.Itoa(c.pastDays))
	params.Set("forecast_days", strconv.Itoa(c.forecastDays))
	params.Set("timezone", "GMT")

	var resp openMeteoAirQualityResponse
	if err := c.req.getJSON(ctx, c.baseURL+"?"+params.Encode(), &resp); err != nil {
		return models.AirQuality{}, err
	}

	var aq models.AirQuality
	if cur := resp.Current; cur != nil {
		aq.AQI = cur.USAQI
		aq.PM25 = valueOrZero(cur.PM25)
		aq.PM10 = valueOrZero(cur.PM10)
		aq.Ozone = valueOrZero(cur.Ozone)
	}
	if h := resp.Hourly; h != nil {
		aq.Hourly = parseHourly(h.Time, h.USAQI)
	}
	return aq, nil
}

// parseHourly pairs timestamps with values. Unparseable timestamps drop their pair;
// null values become NaN.
func parseHourly(times []string, values []*float64) models.HourlySeries {
	n := len(times)
	if len(values) < n {
		n = len(values)
	}
	series := models.HourlySeries{
		Times:  make([]time.Time, 0, n),
		Values: make([]float64, 0, n),
	}
	for i := 0; i < n; i++ {
		ts, err := time.ParseInLocation(hourlyTimeLayout, times[i], time.UTC)
		if err != nil {
			continue
		}
		v := math.NaN()
		if values[i] != nil {
			v = *values[i]
		}
		series.Times = append(series.Times, ts)
		series.Values = append(series.Values, v)
	}
	return series
}

func coordParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	return params
}

func valueOrZero(v *float64) float64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}
