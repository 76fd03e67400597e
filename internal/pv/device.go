package pv

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CanonicalID trims and upper-cases a device identifier so that "p-0042-01"
// and "P-0042-01" resolve to the same device. A Caser must not be shared
// between goroutines, so each call builds its own.
func CanonicalID(id string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(id))
}

// Batch returns the batch prefix of a device identifier (the first six
// characters, e.g. "P-0042").
func Batch(id string) string {
	id = CanonicalID(id)
	if len(id) <= 6 {
		return id
	}
	return id[:6]
}

// Device is a resolvable logical device. A simple module has no junctions
// and reads its own raw source; a metadevice lists the junction sources
// whose outputs are fused into one stream.
type Device struct {
	ID         string   `json:"device_id"`
	Junctions  []string `json:"junctions,omitempty"`
	Type       string   `json:"type,omitempty"`
	Area       float64  `json:"area_m2"`
	RatedPower float64  `json:"rated_power_w,omitempty"`
	Start      Date     `json:"start_date"`
	End        Date     `json:"end_date,omitzero"`
	Active     bool     `json:"active"`
}

// IsMetadevice reports whether d fuses more than its own raw source.
func (d Device) IsMetadevice() bool {
	return len(d.Junctions) > 0
}

// SourceIDs returns the raw source identifiers backing d.
func (d Device) SourceIDs() []string {
	if len(d.Junctions) == 0 {
		return []string{d.ID}
	}
	out := make([]string, len(d.Junctions))
	copy(out, d.Junctions)
	return out
}

// Retired reports whether d has a recorded retirement date.
func (d Device) Retired() bool {
	return !d.End.IsZero()
}

// Span returns the deployment window of d. An active device's window is
// closed at last, the latest date with raw data.
func (d Device) Span(last Date) DateRange {
	end := d.End
	if end.IsZero() {
		end = last
	}
	if end.Before(d.Start) {
		end = d.Start
	}
	return DateRange{Start: d.Start, End: end}
}

// Location describes the test site.
type Location struct {
	Label          string  `json:"label"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Elevation      float64 `json:"elevation"`
	SurfaceTilt    float64 `json:"surface_tilt"`
	SurfaceAzimuth float64 `json:"surface_azimuth"`
}

// ModuleMetadata is the per-device reference data consumed by the quality
// flag engine.
type ModuleMetadata struct {
	DeviceID string      `json:"device_id"`
	Indoors  []DateRange `json:"days_indoors"`
	Censored []DateRange `json:"days_censored"`
}

// SiteMetadata is the site-wide reference data.
type SiteMetadata struct {
	Location Location    `json:"location"`
	SnowDays []Date      `json:"snow_days"`
	Censored []DateRange `json:"site_censored"`
}

// SnowSet indexes the snow days for lookup.
func (s SiteMetadata) SnowSet() map[Date]struct{} {
	set := make(map[Date]struct{}, len(s.SnowDays))
	for _, d := range s.SnowDays {
		set[d] = struct{}{}
	}
	return set
}
