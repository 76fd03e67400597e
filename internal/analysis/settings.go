package analysis

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"pact/internal/config"
	"pact/internal/pv"
	"pact/internal/t80"
)

// Settings is the immutable analysis configuration of a session.
type Settings struct {
	Latitude       float64
	Longitude      float64
	UTCOffsetHours float64
	SampleInterval time.Duration
	MinIrradiance  float64
	MinInsolation  float64
	MinUpFraction  float64
	T80            t80.Options
}

// DefaultSettings mirrors config.Default.
func DefaultSettings() Settings {
	cfg := config.Default()
	s, err := SettingsFromConfig(&cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// SettingsFromConfig extracts the analysis settings from cfg.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	if cfg == nil {
		return Settings{}, fmt.Errorf("%w: config is nil", pv.ErrInvalidConfig)
	}
	s := Settings{
		Latitude:       cfg.Site.Latitude,
		Longitude:      cfg.Site.Longitude,
		UTCOffsetHours: cfg.Site.UTCOffsetHours,
		SampleInterval: cfg.SampleInterval(),
		MinIrradiance:  cfg.Analysis.MinIrradiance,
		MinInsolation:  cfg.Analysis.MinInsolation,
		MinUpFraction:  cfg.Analysis.MinUpFraction,
		T80: t80.Options{
			Policy:    t80.Policy(cfg.Analysis.T80Reference),
			Threshold: cfg.Analysis.T80Threshold,
			RunLength: cfg.Analysis.T80RunLength,
			Window:    cfg.Analysis.RollingWindow,
			Alignment: t80.Alignment(cfg.Analysis.RollingAlignment),
		},
	}
	return s, s.Validate()
}

// Validate rejects settings the pipeline cannot apply.
func (s Settings) Validate() error {
	if s.SampleInterval <= 0 {
		return fmt.Errorf("%w: sample interval must be positive", pv.ErrInvalidConfig)
	}
	if s.MinUpFraction < 0 || s.MinUpFraction > 1 {
		return fmt.Errorf("%w: min up fraction %v outside [0,1]", pv.ErrInvalidConfig, s.MinUpFraction)
	}
	if s.MinIrradiance < 0 || s.MinInsolation < 0 {
		return fmt.Errorf("%w: irradiance and insolation thresholds must be non-negative", pv.ErrInvalidConfig)
	}
	return s.T80.Validate()
}

// Location returns the site's fixed-offset zone.
func (s Settings) Location() *time.Location {
	return pv.FixedZone(s.UTCOffsetHours)
}

// Fingerprint identifies the settings in cache keys. Any field change
// yields a different fingerprint.
func (s Settings) Fingerprint() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	parts := []string{
		f(s.Latitude), f(s.Longitude), f(s.UTCOffsetHours),
		strconv.FormatInt(int64(s.SampleInterval), 10),
		f(s.MinIrradiance), f(s.MinInsolation), f(s.MinUpFraction),
		string(s.T80.Policy), f(s.T80.Threshold),
		strconv.Itoa(s.T80.RunLength), strconv.Itoa(s.T80.Window), string(s.T80.Alignment),
	}
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.WriteString("|")
	}
	return hex.EncodeToString(d.Sum(nil))
}
