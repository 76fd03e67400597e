// Package ephemeris supplies sunrise and sunset times for the test site.
package ephemeris

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"pact/internal/pv"
)

// ErrNoDaylight is returned for dates without a sunrise/sunset pair, such as
// polar day or night.
var ErrNoDaylight = errors.New("no sunrise/sunset pair")

// Ephemeris returns the sunlit interval of a site calendar day.
type Ephemeris interface {
	SunTimes(day pv.Date) (sunrise, sunset time.Time, err error)
}

// Solar computes sun times astronomically for a fixed location and memoizes
// them per date.
type Solar struct {
	latitude  float64
	longitude float64

	mu    sync.Mutex
	cache map[pv.Date][2]time.Time
}

// NewSolar returns an Ephemeris for the given coordinates.
func NewSolar(latitude, longitude float64) *Solar {
	return &Solar{latitude: latitude, longitude: longitude, cache: make(map[pv.Date][2]time.Time)}
}

// SunTimes implements Ephemeris.
func (s *Solar) SunTimes(day pv.Date) (time.Time, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pair, ok := s.cache[day]; ok {
		return pair[0], pair[1], nil
	}
	rise, set := sunrise.SunriseSunset(s.latitude, s.longitude, day.Year, day.Month, day.Day)
	if rise.IsZero() || set.IsZero() || !set.After(rise) {
		return time.Time{}, time.Time{}, fmt.Errorf("%s at %.4f,%.4f: %w", day, s.latitude, s.longitude, ErrNoDaylight)
	}
	s.cache[day] = [2]time.Time{rise, set}
	return rise, set, nil
}

// Fixed returns the same local sunrise and sunset offsets for every day.
type Fixed struct {
	Location *time.Location
	Sunrise  time.Duration
	Sunset   time.Duration
}

// SunTimes implements Ephemeris.
func (f Fixed) SunTimes(day pv.Date) (time.Time, time.Time, error) {
	if f.Sunset <= f.Sunrise {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: %w", day, ErrNoDaylight)
	}
	midnight := day.Start(f.Location)
	return midnight.Add(f.Sunrise), midnight.Add(f.Sunset), nil
}

// ExpectedSamples returns how many samples a fully-up logger records between
// sunrise and sunset at the given interval.
func ExpectedSamples(sunrise, sunset time.Time, interval time.Duration) float64 {
	if interval <= 0 || !sunset.After(sunrise) {
		return 0
	}
	return float64(sunset.Sub(sunrise)) / float64(interval)
}
