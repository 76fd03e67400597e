package testsupport

import (
	"time"

	"pact/internal/pv"
)

// DayProfile describes a synthetic logging day: constant irradiance and
// power from From to To (offsets from local midnight) at Interval.
type DayProfile struct {
	From       time.Duration
	To         time.Duration
	Interval   time.Duration
	Irradiance float64
	Power      float64
}

// FullDay logs every minute from 06:00 to 18:00.
func FullDay(irradiance, power float64) DayProfile {
	return DayProfile{From: 6 * time.Hour, To: 18 * time.Hour, Interval: time.Minute, Irradiance: irradiance, Power: power}
}

// Day returns the samples of one synthetic day. To is exclusive.
func Day(day pv.Date, loc *time.Location, p DayProfile) []pv.PointSample {
	if p.Interval <= 0 {
		p.Interval = time.Minute
	}
	midnight := day.Start(loc)
	var out []pv.PointSample
	for off := p.From; off < p.To; off += p.Interval {
		out = append(out, pv.PointSample{
			Time:              midnight.Add(off),
			Power:             p.Power,
			Irradiance:        p.Irradiance,
			TemperatureAir:    20,
			TemperatureModule: 40,
			Vmp:               p.Power / 8,
			Imp:               8,
		})
	}
	return out
}

// Days concatenates synthetic days starting at start, one profile per day.
// A zero profile leaves that day without samples.
func Days(start pv.Date, loc *time.Location, profiles ...DayProfile) []pv.PointSample {
	var out []pv.PointSample
	for i, p := range profiles {
		if p.To <= p.From {
			continue
		}
		out = append(out, Day(start.AddDays(i), loc, p)...)
	}
	return out
}
