package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-advisor/internal/advisor"
	"github.com/kjstillabower/air-quality-advisor/internal/models"
	"github.com/kjstillabower/air-quality-advisor/internal/observability"
)

// LocationResolver resolves free text or coordinates into a Location.
type LocationResolver interface {
	ResolveByName(ctx context.Context, query string) (models.Location, error)
	ResolveByCoordinates(ctx context.Context, lat, lon float64) models.Location
}

// ConditionsFetcher returns the current Conditions for a Location.
type ConditionsFetcher interface {
	FetchConditions(ctx context.Context, loc models.Location) (models.Conditions, error)
}

// Coordinates is a validated latitude/longitude pair.
type Coordinates struct {
	Lat float64
	Lon float64
}

// DashboardRequest selects a location by Query or by Coordinates (Coordinates wins when set).
// SessionID groups requests so only the latest one per session delivers a result.
type DashboardRequest struct {
	Query       string
	Coordinates *Coordinates
	SessionID   string
}

// Report is everything a dashboard view renders for one location.
type Report struct {
	Location    models.Location            `json:"location"`
	Conditions  models.Conditions          `json:"conditions"`
	Advisory    models.Advisory            `json:"advisory"`
	TrendLabels [models.TrendLength]string `json:"trendLabels"`
}

// Dashboard runs resolve, fetch and analyze as one sequenced pipeline.
type Dashboard struct {
	resolver   LocationResolver
	conditions ConditionsFetcher
	sequencer  *Sequencer
}

// NewDashboard creates a Dashboard. A nil sequencer gets a fresh one.
func NewDashboard(resolver LocationResolver, conditions ConditionsFetcher, sequencer *Sequencer) *Dashboard {
	if sequencer == nil {
		sequencer = NewSequencer()
	}
	return &Dashboard{resolver: resolver, conditions: conditions, sequencer: sequencer}
}

// Build produces a Report for req. Resolver and aggregator errors pass through unchanged;
// a request replaced by a newer one in the same session returns ErrSuperseded.
func (d *Dashboard) Build(ctx context.Context, req DashboardRequest) (Report, error) {
	var report Report
	err := d.sequencer.Run(ctx, req.SessionID, func(ctx context.Context) error {
		loc, err := d.locate(ctx, req)
		if err != nil {
			return err
		}
		conditions, err := d.conditions.FetchConditions(ctx, loc)
		if err != nil {
			return err
		}
		advisory := advisor.Analyze(conditions)
		report = Report{
			Location:    loc,
			Conditions:  conditions,
			Advisory:    advisory,
			TrendLabels: models.TrendLabels,
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	observability.AdvisoriesTotal.WithLabelValues(string(report.Advisory.Band)).Inc()
	observability.LoggerFromContext(ctx).Debug("dashboard built",
		zap.String("city", report.Location.CityName),
		zap.Int("aqi", report.Conditions.AQI),
		zap.String("band", string(report.Advisory.Band)))
	return report, nil
}

func (d *Dashboard) locate(ctx context.Context, req DashboardRequest) (models.Location, error) {
	if req.Coordinates != nil {
		return d.resolver.ResolveByCoordinates(ctx, req.Coordinates.Lat, req.Coordinates.Lon), nil
	}
	return d.resolver.ResolveByName(ctx, req.Query)
}
