package pv

import (
	"encoding/json"
	"math"
	"time"
)

// PointSample is one raw observation. For a metadevice it is synthesized
// from time-aligned junction rows: power summed, environment averaged, and
// the per-junction operating point left as NaN.
type PointSample struct {
	Time              time.Time `json:"date_time"`
	Power             float64   `json:"power"`
	Irradiance        float64   `json:"poa_global"`
	TemperatureAir    float64   `json:"temperature_air"`
	TemperatureModule float64   `json:"temperature_module"`
	Vmp               float64   `json:"vmp"`
	Imp               float64   `json:"imp"`
}

// Efficiency returns the sample's conversion efficiency relative to the
// device's area, or to its rated power when no area is recorded. It is NaN
// when neither reference is usable or the irradiance is not positive.
func (s PointSample) Efficiency(area, ratedPower float64) float64 {
	if math.IsNaN(s.Power) || math.IsNaN(s.Irradiance) || s.Irradiance <= 0 {
		return math.NaN()
	}
	switch {
	case area > 0:
		return s.Power / (s.Irradiance * area)
	case ratedPower > 0:
		return s.Power * StandardIrradiance / (s.Irradiance * ratedPower)
	default:
		return math.NaN()
	}
}

// StandardIrradiance is the STC plane-of-array irradiance in W/m².
const StandardIrradiance = 1000.0

// MarshalJSON encodes NaN channels as null.
func (s PointSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time              time.Time `json:"date_time"`
		Power             *float64  `json:"power"`
		Irradiance        *float64  `json:"poa_global"`
		TemperatureAir    *float64  `json:"temperature_air"`
		TemperatureModule *float64  `json:"temperature_module"`
		Vmp               *float64  `json:"vmp"`
		Imp               *float64  `json:"imp"`
	}{
		Time:              s.Time,
		Power:             Nullable(s.Power),
		Irradiance:        Nullable(s.Irradiance),
		TemperatureAir:    Nullable(s.TemperatureAir),
		TemperatureModule: Nullable(s.TemperatureModule),
		Vmp:               Nullable(s.Vmp),
		Imp:               Nullable(s.Imp),
	})
}

// Nullable returns nil for NaN or infinite values and a pointer to v otherwise.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// GroupByDate buckets time-sorted samples by site calendar day, keeping the
// order within each day.
func GroupByDate(samples []PointSample, loc *time.Location) map[Date][]PointSample {
	out := make(map[Date][]PointSample)
	for _, s := range samples {
		d := DateOf(s.Time, loc)
		out[d] = append(out[d], s)
	}
	return out
}

// SampleDurations returns the time each sample of a time-sorted day stands
// for: the gap to the next sample, capped at the nominal interval. The last
// sample stands for one interval.
func SampleDurations(samples []PointSample, interval time.Duration) []time.Duration {
	out := make([]time.Duration, len(samples))
	for i := range samples {
		dt := interval
		if i+1 < len(samples) {
			if gap := samples[i+1].Time.Sub(samples[i].Time); gap < dt {
				dt = gap
			}
		}
		if dt < 0 {
			dt = 0
		}
		out[i] = dt
	}
	return out
}
