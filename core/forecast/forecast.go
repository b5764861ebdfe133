// Package forecast predicts crowd surges per zone from density samples. The
// output feeds the policy decision context; a zone with a rising density
// trend that is projected to cross the surge threshold within the horizon is
// flagged.
package forecast

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/eventrescue/core/model"
)

// Config holds the forecaster tunables.
type Config struct {
	// Window is the number of samples kept per zone.
	Window int `json:"window"`
	// SurgeDensity is the crowd density regarded as a surge.
	SurgeDensity float64 `json:"surge_density"`
	// HorizonMinutes bounds how far ahead projections are trusted.
	HorizonMinutes int `json:"horizon_minutes"`
	// MinSamples is the minimum history before any forecast is produced.
	MinSamples int `json:"min_samples"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Window <= 0 {
		c.Window = 32
	}
	if c.SurgeDensity <= 0 {
		c.SurgeDensity = 4.0
	}
	if c.HorizonMinutes <= 0 {
		c.HorizonMinutes = 20
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 4
	}
}

type sample struct {
	at      time.Time
	density float64
}

// Tracker accumulates density samples and projects the short-term trend with
// a least-squares fit.
type Tracker struct {
	mu    sync.Mutex
	cfg   Config
	zones map[string][]sample
}

// NewTracker creates a Tracker with the given configuration.
func NewTracker(cfg Config) *Tracker {
	cfg.SetDefaults()
	return &Tracker{cfg: cfg, zones: make(map[string][]sample)}
}

// Observe records one density measurement for the zone.
func (t *Tracker) Observe(zone string, density float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	samples := append(t.zones[zone], sample{at: at, density: density})
	if len(samples) > t.cfg.Window {
		samples = samples[len(samples)-t.cfg.Window:]
	}
	t.zones[zone] = samples
}

// Forecast projects the zone's density trend from now. It returns nil when
// there is not enough history or no surge is expected within the horizon.
func (t *Tracker) Forecast(zone string, now time.Time) *model.Forecast {
	t.mu.Lock()
	samples := append([]sample(nil), t.zones[zone]...)
	t.mu.Unlock()
	if len(samples) < t.cfg.MinSamples {
		return nil
	}

	origin := samples[0].at
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.at.Sub(origin).Minutes()
		ys[i] = s.density
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	// identical timestamps make the fit degenerate (NaN slope)
	if math.IsNaN(beta) || beta <= 0 {
		return nil
	}

	horizon := float64(t.cfg.HorizonMinutes)
	nowMin := now.Sub(origin).Minutes()
	projected := alpha + beta*(nowMin+horizon)
	if projected < t.cfg.SurgeDensity {
		return nil
	}

	// minutes until the fitted line crosses the surge threshold
	crossing := (t.cfg.SurgeDensity-alpha)/beta - nowMin
	if crossing < 0 {
		crossing = 0
	}

	r := stat.Correlation(xs, ys, nil)
	conf := r * r
	if conf > 1 {
		conf = 1
	}
	return &model.Forecast{
		WillSurge:  true,
		In:         time.Duration(crossing * float64(time.Minute)),
		Confidence: conf,
	}
}
