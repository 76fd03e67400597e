// Package daily reduces a device's point samples to one efficiency value per
// calendar day and overlays the quality flags.
package daily

import (
	"log/slog"
	"math"
	"time"

	"pact/internal/logging"
	"pact/internal/pv"
	"pact/internal/quality"
)

// Options are the reduction parameters.
type Options struct {
	MinIrradiance  float64
	SampleInterval time.Duration
	Location       *time.Location
}

// Aggregator builds daily series.
type Aggregator struct {
	opts    Options
	quality *quality.Engine
	logger  *slog.Logger
}

// NewAggregator returns an Aggregator that flags days with engine.
func NewAggregator(opts Options, engine *quality.Engine, logger *slog.Logger) *Aggregator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Aggregator{
		opts:    opts,
		quality: engine,
		logger:  logging.NewComponentLogger(logger, "daily"),
	}
}

// Series returns one record per calendar day from the device's deployment
// start through its retirement date, or through the last sampled day for an
// active device. samples must be time-sorted.
func (a *Aggregator) Series(device pv.Device, samples []pv.PointSample, module pv.ModuleMetadata, site pv.SiteMetadata) ([]pv.DailyRecord, error) {
	days := a.Days(device, samples)
	if len(days) == 0 {
		return nil, nil
	}

	byDay := pv.GroupByDate(samples, a.opts.Location)
	assessments, err := a.quality.Assess(device, days, byDay, module, site)
	if err != nil {
		return nil, err
	}

	start := days[0]
	if !device.Start.IsZero() {
		start = device.Start
	}

	records := make([]pv.DailyRecord, len(days))
	valid := 0
	for i, day := range days {
		as := assessments[i]
		eff := math.NaN()
		if as.Flags.Valid() {
			eff = Efficiency(byDay[day], device, a.opts.MinIrradiance, a.opts.SampleInterval)
		}
		if !math.IsNaN(eff) {
			valid++
		}
		records[i] = pv.DailyRecord{
			Date:            day,
			DaysDeployed:    day.DaysSince(start),
			Efficiency:      eff,
			UpFraction:      as.UpFraction,
			Insolation:      as.Insolation,
			Samples:         as.Samples,
			ExpectedSamples: as.ExpectedSamples,
			Flags:           as.Flags,
		}
	}

	a.logger.Debug("daily series built",
		logging.DeviceID(device.ID),
		logging.Int("days", len(records)),
		logging.Int("valid_days", valid),
	)
	return records, nil
}

// Days returns the gap-free calendar span of the device. A device without a
// recorded start begins on its first sampled day; one without a retirement
// date ends on its last sampled day, so an active device with no samples has
// no span.
func (a *Aggregator) Days(device pv.Device, samples []pv.PointSample) []pv.Date {
	var first, last pv.Date
	if len(samples) > 0 {
		first = pv.DateOf(samples[0].Time, a.opts.Location)
		last = pv.DateOf(samples[len(samples)-1].Time, a.opts.Location)
	}

	start := device.Start
	if start.IsZero() {
		start = first
	}
	end := device.End
	if end.IsZero() {
		end = last
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}

	n := end.DaysSince(start) + 1
	days := make([]pv.Date, n)
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}

// Efficiency is the time-weighted mean of per-sample efficiency over samples
// at or above minIrradiance. It is NaN when no sample qualifies.
func Efficiency(samples []pv.PointSample, device pv.Device, minIrradiance float64, interval time.Duration) float64 {
	durations := pv.SampleDurations(samples, interval)
	var weighted, total float64
	for i, s := range samples {
		if math.IsNaN(s.Irradiance) || s.Irradiance < minIrradiance {
			continue
		}
		eff := s.Efficiency(device.Area, device.RatedPower)
		if math.IsNaN(eff) {
			continue
		}
		w := durations[i].Seconds()
		weighted += eff * w
		total += w
	}
	if total == 0 {
		return math.NaN()
	}
	return weighted / total
}
