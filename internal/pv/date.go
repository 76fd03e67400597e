package pv

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day at the site, independent of any time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

var dateLayouts = []string{"2006-01-02", "1/2/06", "1/2/2006", "2006/01/02"}

// NewDate normalizes year, month and day into a Date.
func NewDate(year int, month time.Month, day int) Date {
	return dateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return dateOf(t)
}

func dateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate accepts ISO dates as well as the M/D/YY form used by setup sheets.
func ParseDate(value string) (Date, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Date{}, fmt.Errorf("parse date: empty value")
	}
	if len(trimmed) > 10 && trimmed[4] == '-' {
		trimmed = trimmed[:10]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return dateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("parse date %q: unrecognized format", value)
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Start returns midnight of d in loc.
func (d Date) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n calendar days after d.
func (d Date) AddDays(n int) Date {
	return dateOf(d.utc().AddDate(0, 0, n))
}

// DaysSince returns the number of calendar days from other to d.
func (d Date) DaysSince(other Date) int {
	return int(d.utc().Sub(other.utc()).Hours() / 24)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.utc().Before(other.utc())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.utc().After(other.utc())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes d as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes any layout accepted by ParseDate.
func (d *Date) UnmarshalText(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start   Date   `json:"start"`
	End     Date   `json:"end"`
	Comment string `json:"comment,omitempty"`
}

// Contains reports whether d falls within the range. A zero End leaves the
// range open.
func (r DateRange) Contains(d Date) bool {
	if d.Before(r.Start) {
		return false
	}
	if r.End.IsZero() {
		return true
	}
	return !d.After(r.End)
}

// Overlaps reports whether the two inclusive ranges share at least one day.
func (r DateRange) Overlaps(other DateRange) bool {
	if !r.End.IsZero() && other.Start.After(r.End) {
		return false
	}
	if !other.End.IsZero() && r.Start.After(other.End) {
		return false
	}
	return true
}

// FixedZone builds the site's fixed-offset location from an hour offset such
// as -7 for MST.
func FixedZone(offsetHours float64) *time.Location {
	seconds := int(offsetHours * 3600)
	sign := "+"
	if seconds < 0 {
		sign = "-"
	}
	abs := seconds
	if abs < 0 {
		abs = -abs
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, abs/3600, (abs%3600)/60)
	return time.FixedZone(name, seconds)
}
