// Package quality evaluates the per-day validity flags of a device.
//
// Deployment, censorship and snow flags come from registry metadata. The
// uptime flag compares the samples observed between sunrise and sunset with
// the count a fully-up logger would record at the nominal interval. The
// insolation flag is informational and never gates a day.
package quality

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"pact/internal/ephemeris"
	"pact/internal/logging"
	"pact/internal/pv"
)

// Options are the thresholds of the flag engine.
type Options struct {
	MinUpFraction  float64
	MinInsolation  float64
	SampleInterval time.Duration
	Location       *time.Location
}

// Assessment is the flag verdict and supporting measurements of one day.
type Assessment struct {
	Date            pv.Date
	Samples         int
	DaytimeSamples  int
	ExpectedSamples float64
	UpFraction      float64
	Insolation      float64
	Flags           pv.QualityFlags
}

// Engine evaluates quality flags.
type Engine struct {
	opts      Options
	ephemeris ephemeris.Ephemeris
	logger    *slog.Logger
}

// NewEngine returns an Engine using eph for sunrise and sunset times.
func NewEngine(opts Options, eph ephemeris.Ephemeris, logger *slog.Logger) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Engine{
		opts:      opts,
		ephemeris: eph,
		logger:    logging.NewComponentLogger(logger, "quality"),
	}
}

// Assess returns one Assessment per entry of days. byDay holds the device's
// time-sorted samples bucketed by site date.
func (e *Engine) Assess(device pv.Device, days []pv.Date, byDay map[pv.Date][]pv.PointSample, module pv.ModuleMetadata, site pv.SiteMetadata) ([]Assessment, error) {
	snow := site.SnowSet()
	out := make([]Assessment, len(days))
	for i, day := range days {
		samples := byDay[day]
		a := Assessment{
			Date:       day,
			Samples:    len(samples),
			Insolation: Insolation(samples, e.opts.SampleInterval),
		}

		expected, daytime, err := e.uptime(day, samples)
		if err != nil {
			return nil, pv.NewInputError(device.ID, pv.InputEphemeris, err)
		}
		a.ExpectedSamples = expected
		a.DaytimeSamples = daytime
		if expected > 0 {
			a.UpFraction = float64(daytime) / expected
		}

		a.Flags = pv.QualityFlags{
			Deployed:      !anyContains(module.Indoors, day),
			Uncensored:    !anyContains(module.Censored, day) && !anyContains(site.Censored, day),
			SnowFree:      !inSet(snow, day),
			MinUpFraction: len(samples) > 0 && expected > 0 && a.UpFraction >= e.opts.MinUpFraction,
			MinInsolation: a.Insolation >= e.opts.MinInsolation,
		}
		out[i] = a
	}

	e.logger.Debug("quality flags evaluated",
		logging.DeviceID(device.ID),
		logging.Int("days", len(days)),
	)
	return out, nil
}

func (e *Engine) uptime(day pv.Date, samples []pv.PointSample) (float64, int, error) {
	rise, set, err := e.ephemeris.SunTimes(day)
	if err != nil {
		if errors.Is(err, ephemeris.ErrNoDaylight) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("sun times for %s: %w", day, err)
	}
	daytime := 0
	for _, s := range samples {
		if !s.Time.Before(rise) && !s.Time.After(set) {
			daytime++
		}
	}
	return ephemeris.ExpectedSamples(rise, set, e.opts.SampleInterval), daytime, nil
}

// Insolation integrates plane-of-array irradiance over a time-sorted day in
// Wh/m². NaN readings and negative night offsets contribute nothing.
func Insolation(samples []pv.PointSample, interval time.Duration) float64 {
	durations := pv.SampleDurations(samples, interval)
	total := 0.0
	for i, s := range samples {
		if math.IsNaN(s.Irradiance) || s.Irradiance <= 0 {
			continue
		}
		total += s.Irradiance * durations[i].Hours()
	}
	return total
}

func anyContains(ranges []pv.DateRange, day pv.Date) bool {
	for _, r := range ranges {
		if r.Contains(day) {
			return true
		}
	}
	return false
}

func inSet(set map[pv.Date]struct{}, day pv.Date) bool {
	_, ok := set[day]
	return ok
}
