// Command aqi prints the air-quality dashboard for a city or a coordinate pair.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kjstillabower/air-quality-advisor/internal/app"
	"github.com/kjstillabower/air-quality-advisor/internal/config"
	"github.com/kjstillabower/air-quality-advisor/internal/service"
	"github.com/kjstillabower/air-quality-advisor/internal/validation"
)

var errUsage = errors.New("usage: aqi -city <name> | -lat <lat> -lon <lon>")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, config.Defaults()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run parses args, builds the pipeline from cfg and writes one report to out.
func run(ctx context.Context, args []string, out io.Writer, cfg *config.Config) error {
	fs := flag.NewFlagSet("aqi", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	city := fs.String("city", "", "city name to look up")
	lat := fs.String("lat", "", "latitude in decimal degrees")
	lon := fs.String("lon", "", "longitude in decimal degrees")
	debug := fs.Bool("debug", false, "log upstream activity to stderr")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	req, err := buildRequest(*city, *lat, *lon, cfg)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if *debug {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	pipeline, err := app.New(cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	report, err := pipeline.Dashboard.Build(ctx, req)
	if err != nil {
		return err
	}
	render(out, report)
	return nil
}

func buildRequest(city, lat, lon string, cfg *config.Config) (service.DashboardRequest, error) {
	if lat != "" || lon != "" {
		la, lo, err := validation.ValidateCoordinates(lat, lon)
		if err != nil {
			return service.DashboardRequest{}, err
		}
		return service.DashboardRequest{Coordinates: &service.Coordinates{Lat: la, Lon: lo}}, nil
	}
	if strings.TrimSpace(city) == "" {
		return service.DashboardRequest{}, errUsage
	}
	q, err := validation.ValidateQuery(city, cfg.QueryMinLength, cfg.QueryMaxLength)
	if err != nil {
		return service.DashboardRequest{}, err
	}
	return service.DashboardRequest{Query: q}, nil
}

func render(w io.Writer, r service.Report) {
	title := cases.Title(language.English)
	c := r.Conditions

	header := fmt.Sprintf("Air Quality for %s:", r.Location.DisplayName)
	fmt.Fprintf(w, "%s\n", header)
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(header)))
	fmt.Fprintf(w, "Coordinates: %.4f, %.4f\n", r.Location.Latitude, r.Location.Longitude)
	fmt.Fprintf(w, "AQI:         %d (%s)\n", c.AQI, title.String(string(r.Advisory.Band)))
	fmt.Fprintf(w, "PM2.5:       %.1f µg/m³\n", c.PM25)
	fmt.Fprintf(w, "PM10:        %.1f µg/m³\n", c.PM10)
	fmt.Fprintf(w, "Ozone:       %.1f µg/m³\n", c.Ozone)
	fmt.Fprintf(w, "Conditions:  %s\n", title.String(c.WeatherLabel))
	fmt.Fprintf(w, "Temperature: %d°C\n", c.TemperatureC)
	fmt.Fprintf(w, "Humidity:    %d%%\n", c.HumidityPct)
	fmt.Fprintf(w, "Wind Speed:  %d km/h\n", c.WindKph)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "AQI Trend:\n")
	for i, label := range r.TrendLabels {
		fmt.Fprintf(w, "  %-9s %3d\n", label+":", c.Forecast[i])
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Advisory: %s\n", r.Advisory.Text)
}
