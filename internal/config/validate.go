package config

import (
	"errors"
	"fmt"
	"math"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSite(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSite() error {
	if c.Site.Latitude < -90 || c.Site.Latitude > 90 {
		return errors.New("site.latitude must be between -90 and 90")
	}
	if c.Site.Longitude < -180 || c.Site.Longitude > 180 {
		return errors.New("site.longitude must be between -180 and 180")
	}
	if c.Site.UTCOffsetHours < -14 || c.Site.UTCOffsetHours > 14 {
		return errors.New("site.utc_offset_hours must be between -14 and 14")
	}
	if c.Site.SampleIntervalSeconds <= 0 {
		return errors.New("site.sample_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if a.MinIrradiance < 0 || math.IsNaN(a.MinIrradiance) {
		return errors.New("analysis.min_irradiance must be non-negative")
	}
	if a.MinInsolation < 0 || math.IsNaN(a.MinInsolation) {
		return errors.New("analysis.min_insolation must be non-negative")
	}
	if a.MinUpFraction < 0 || a.MinUpFraction > 1 {
		return errors.New("analysis.min_up_fraction must be between 0 and 1")
	}
	switch a.T80Reference {
	case ReferencePeak, ReferenceInitial:
	default:
		return fmt.Errorf("analysis.t80_reference: unsupported value %q (want %q or %q)", a.T80Reference, ReferencePeak, ReferenceInitial)
	}
	if a.T80Threshold <= 0 || a.T80Threshold >= 1 {
		return errors.New("analysis.t80_threshold must be between 0 and 1 exclusive")
	}
	if a.T80RunLength < 1 {
		return errors.New("analysis.t80_run_length must be at least 1")
	}
	if a.RollingWindow < 1 {
		return errors.New("analysis.rolling_window must be at least 1")
	}
	switch a.RollingAlignment {
	case AlignTrailing, AlignCentered:
	default:
		return fmt.Errorf("analysis.rolling_alignment: unsupported value %q (want %q or %q)", a.RollingAlignment, AlignTrailing, AlignCentered)
	}
	return nil
}

func (c *Config) validateSources() error {
	switch c.Sources.Registry {
	case RegistryJSON, RegistrySQLite:
	default:
		return fmt.Errorf("sources.registry: unsupported value %q", c.Sources.Registry)
	}
	switch c.Sources.Points {
	case PointsCSV, PointsBadger:
	default:
		return fmt.Errorf("sources.points: unsupported value %q", c.Sources.Points)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
