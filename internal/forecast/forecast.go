// Package forecast builds the six-point AQI trend shown next to current conditions:
// four past hours, the current hour, and one forecast hour.
package forecast

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/kjstillabower/air-quality-advisor/internal/models"
)

// NeutralAQI is the Moderate-band midpoint used when no reading is usable.
const NeutralAQI = 50

// Strategy names a trend construction, used as a metric label.
type Strategy string

const (
	StrategyHistoricalAligned Strategy = "historical_aligned"
	StrategySyntheticWalk     Strategy = "synthetic_walk"
)

// Input is what a Builder needs to produce a Trend.
type Input struct {
	CurrentAQI int
	Hourly     models.HourlySeries
	Now        time.Time
}

// Builder produces a Trend from the data available for one location.
type Builder interface {
	Build(in Input) models.Trend
	Strategy() Strategy
}

// HistoricalAligned samples the hourly series around the current hour.
type HistoricalAligned struct{}

// Build implements Builder.
func (HistoricalAligned) Build(in Input) models.Trend {
	return BuildSeries(in.Hourly, in.Now)
}

// Strategy implements Builder.
func (HistoricalAligned) Strategy() Strategy { return StrategyHistoricalAligned }

// BuildSeries aligns the hourly series to nowUTC and samples it.
// The current-hour index is the first timestamp at or after nowUTC; with none, every point is NeutralAQI.
// Past points missing from the series take the current-hour value, and a missing forecast point
// repeats the last past-or-current point.
func BuildSeries(hourly models.HourlySeries, nowUTC time.Time) models.Trend {
	var trend models.Trend
	n := hourly.Len()

	current := -1
	for i := 0; i < n; i++ {
		if !hourly.Times[i].Before(nowUTC) {
			current = i
			break
		}
	}
	if current < 0 {
		for i := range trend {
			trend[i] = NeutralAQI
		}
		return trend
	}

	currentValue, ok := sample(hourly, current)
	if !ok {
		currentValue = NeutralAQI
	}

	for offset := 4; offset >= 0; offset-- {
		v, ok := sample(hourly, current-offset)
		if !ok {
			v = currentValue
		}
		trend[4-offset] = v
	}

	next, ok := sample(hourly, current+1)
	if !ok {
		next = trend[4]
	}
	trend[5] = next
	return trend
}

// sample returns the value at i as a non-negative integer AQI. ok is false when i is
// out of range or the reading is missing.
func sample(hourly models.HourlySeries, i int) (int, bool) {
	if i < 0 || i >= hourly.Len() {
		return 0, false
	}
	v := hourly.Values[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return clampAQI(int(math.Round(v))), true
}

// SyntheticWalk perturbs the current AQI with bounded noise. It carries no forecasting meaning
// and exists so a location without hourly data still gets a trend.
type SyntheticWalk struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticWalk returns a SyntheticWalk drawing from rng; a nil rng uses a time-seeded source.
func NewSyntheticWalk(rng *rand.Rand) *SyntheticWalk {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SyntheticWalk{rng: rng}
}

// Build implements Builder.
func (s *SyntheticWalk) Build(in Input) models.Trend {
	return s.SynthesizeSeries(in.CurrentAQI)
}

// Strategy implements Builder.
func (s *SyntheticWalk) Strategy() Strategy { return StrategySyntheticWalk }

// MaxJitter bounds each synthetic point's deviation from the current AQI.
const MaxJitter = 10

// SynthesizeSeries returns six points, each currentAQI plus independent noise in [-MaxJitter, +MaxJitter], clamped at 0.
func (s *SyntheticWalk) SynthesizeSeries(currentAQI int) models.Trend {
	s.mu.Lock()
	defer s.mu.Unlock()
	var trend models.Trend
	for i := range trend {
		trend[i] = clampAQI(currentAQI + s.rng.Intn(2*MaxJitter+1) - MaxJitter)
	}
	return trend
}

// Preferred picks HistoricalAligned whenever the hourly series has any points and
// falls back to the synthetic walk only when it is empty.
type Preferred struct {
	Historical Builder
	Fallback   Builder
}

// NewPreferred returns the default selector: HistoricalAligned over a time-seeded SyntheticWalk.
func NewPreferred() *Preferred {
	return &Preferred{Historical: HistoricalAligned{}, Fallback: NewSyntheticWalk(nil)}
}

// Select returns the builder to use for in.
func (p *Preferred) Select(in Input) Builder {
	if in.Hourly.Len() > 0 {
		return p.Historical
	}
	return p.Fallback
}

func clampAQI(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
