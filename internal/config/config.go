package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	GeocodingURL       string
	GeocodingUserAgent string
	GeocodingTimeout   time.Duration

	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	AirQualityAPIURL       string
	AirQualityAPITimeout   time.Duration
	AirQualityPastDays     int
	AirQualityForecastDays int

	RequestTimeout time.Duration

	RateLimitRPS            int
	RateLimitBurst          int
	BreakerFailureThreshold int
	BreakerOpenTimeout      time.Duration

	QueryMinLength int
	QueryMaxLength int

	HealthWindow         time.Duration
	DegradedErrorPct     int
	OverloadThresholdPct int

	ShutdownTimeout       time.Duration
	InFlightTimeout       time.Duration
	InFlightCheckInterval time.Duration

	TracingExporter    string
	TracingSampleRatio float64
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Geocoding struct {
		URL       string `yaml:"url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"geocoding"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	AirQualityAPI struct {
		URL          string `yaml:"url"`
		Timeout      string `yaml:"timeout"`
		PastDays     int    `yaml:"past_days"`
		ForecastDays int    `yaml:"forecast_days"`
	} `yaml:"air_quality_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS            int    `yaml:"rate_limit_rps"`
		RateLimitBurst          int    `yaml:"rate_limit_burst"`
		BreakerFailureThreshold int    `yaml:"breaker_failure_threshold"`
		BreakerOpenTimeout      string `yaml:"breaker_open_timeout"`
	} `yaml:"reliability"`

	Query struct {
		MinLength int `yaml:"min_length"`
		MaxLength int `yaml:"max_length"`
	} `yaml:"query"`

	Health struct {
		Window               string `yaml:"window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Tracing struct {
		Exporter    string  `yaml:"exporter"`
		SampleRatio *float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`
}

// Defaults returns a usable configuration pointing at the public Nominatim and Open-Meteo endpoints.
// GEOCODING_USER_AGENT still overrides the user agent.
func Defaults() *Config {
	cfg := &Config{
		ServerPort: "8080",

		GeocodingURL:       "https://nominatim.openstreetmap.org",
		GeocodingUserAgent: "air-quality-advisor/1.0",
		GeocodingTimeout:   5 * time.Second,

		WeatherAPIURL:     "https://api.open-meteo.com/v1/forecast",
		WeatherAPITimeout: 5 * time.Second,

		AirQualityAPIURL:       "https://air-quality-api.open-meteo.com/v1/air-quality",
		AirQualityAPITimeout:   5 * time.Second,
		AirQualityPastDays:     1,
		AirQualityForecastDays: 2,

		RequestTimeout: 15 * time.Second,

		RateLimitRPS:            20,
		RateLimitBurst:          40,
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      30 * time.Second,

		QueryMinLength: 1,
		QueryMaxLength: 100,

		HealthWindow:         60 * time.Second,
		DegradedErrorPct:     20,
		OverloadThresholdPct: 50,

		ShutdownTimeout:       30 * time.Second,
		InFlightTimeout:       20 * time.Second,
		InFlightCheckInterval: 100 * time.Millisecond,

		TracingExporter:    "none",
		TracingSampleRatio: 1,
	}
	applyEnv(cfg)
	return cfg
}

// Load reads an optional .env file, then config/{ENV_NAME}.yaml (default dev) over Defaults.
// Environment variables override file values. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Defaults()
	applyFile(cfg, &fc)
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile copies every set file value onto cfg.
func applyFile(cfg *Config, fc *fileConfig) {
	setString(&cfg.ServerPort, fc.Server.Port)

	setString(&cfg.GeocodingURL, fc.Geocoding.URL)
	setString(&cfg.GeocodingUserAgent, fc.Geocoding.UserAgent)
	cfg.GeocodingTimeout = parseDurationOrZero(fc.Geocoding.Timeout, cfg.GeocodingTimeout)

	setString(&cfg.WeatherAPIURL, fc.WeatherAPI.URL)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, cfg.WeatherAPITimeout)

	setString(&cfg.AirQualityAPIURL, fc.AirQualityAPI.URL)
	cfg.AirQualityAPITimeout = parseDurationOrZero(fc.AirQualityAPI.Timeout, cfg.AirQualityAPITimeout)
	setInt(&cfg.AirQualityPastDays, fc.AirQualityAPI.PastDays)
	setInt(&cfg.AirQualityForecastDays, fc.AirQualityAPI.ForecastDays)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, cfg.RequestTimeout)

	setInt(&cfg.RateLimitRPS, fc.Reliability.RateLimitRPS)
	setInt(&cfg.RateLimitBurst, fc.Reliability.RateLimitBurst)
	setInt(&cfg.BreakerFailureThreshold, fc.Reliability.BreakerFailureThreshold)
	cfg.BreakerOpenTimeout = parseDuration(fc.Reliability.BreakerOpenTimeout, cfg.BreakerOpenTimeout)

	setInt(&cfg.QueryMinLength, fc.Query.MinLength)
	setInt(&cfg.QueryMaxLength, fc.Query.MaxLength)

	cfg.HealthWindow = parseDuration(fc.Health.Window, cfg.HealthWindow)
	setInt(&cfg.DegradedErrorPct, fc.Health.DegradedErrorPct)
	setInt(&cfg.OverloadThresholdPct, fc.Health.OverloadThresholdPct)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, cfg.ShutdownTimeout)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, cfg.InFlightTimeout)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, cfg.InFlightCheckInterval)

	setString(&cfg.TracingExporter, fc.Tracing.Exporter)
	if fc.Tracing.SampleRatio != nil {
		cfg.TracingSampleRatio = *fc.Tracing.SampleRatio
	}
}

// applyEnv applies environment overrides.
func applyEnv(cfg *Config) {
	setString(&cfg.ServerPort, os.Getenv("SERVER_PORT"))
	setString(&cfg.GeocodingURL, os.Getenv("GEOCODING_URL"))
	setString(&cfg.GeocodingUserAgent, os.Getenv("GEOCODING_USER_AGENT"))
	setString(&cfg.WeatherAPIURL, os.Getenv("WEATHER_API_URL"))
	setString(&cfg.AirQualityAPIURL, os.Getenv("AIR_QUALITY_API_URL"))
	setString(&cfg.TracingExporter, os.Getenv("TRACING_EXPORTER"))
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
// Used for parsing duration fields from YAML config with safe fallback to defaults.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// Upstream timeouts must be positive and the user agent set. RequestTimeout is raised
// above the slowest upstream when needed.
func validate(cfg *Config) error {
	if cfg.GeocodingTimeout <= 0 {
		return fmt.Errorf("geocoding.timeout must be positive")
	}
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.AirQualityAPITimeout <= 0 {
		return fmt.Errorf("air_quality_api.timeout must be positive")
	}
	if strings.TrimSpace(cfg.GeocodingUserAgent) == "" {
		return fmt.Errorf("GEOCODING_USER_AGENT required (set env or geocoding.user_agent)")
	}
	if cfg.QueryMaxLength < cfg.QueryMinLength {
		return fmt.Errorf("query.max_length %d is below query.min_length %d", cfg.QueryMaxLength, cfg.QueryMinLength)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	switch cfg.TracingExporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("tracing.exporter must be none or stdout, got %q", cfg.TracingExporter)
	}
	if cfg.TracingSampleRatio < 0 || cfg.TracingSampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %v", cfg.TracingSampleRatio)
	}
	if cfg.OverloadThresholdPct > 100 {
		return fmt.Errorf("health.overload_threshold_pct must be at most 100, got %d", cfg.OverloadThresholdPct)
	}

	// Geocoding runs before the concurrent weather and air-quality calls.
	slowest := cfg.GeocodingTimeout + max(cfg.WeatherAPITimeout, cfg.AirQualityAPITimeout)
	if cfg.RequestTimeout <= slowest {
		cfg.RequestTimeout = slowest + time.Second
	}
	return nil
}
