package pv

import (
	"encoding/json"
	"math"
)

// QualityFlags are the per-day validity predicates. The first four gate the
// day's efficiency; MinInsolation is informational.
type QualityFlags struct {
	Deployed      bool `json:"flag_deployed"`
	Uncensored    bool `json:"flag_uncensored"`
	SnowFree      bool `json:"flag_snow_free"`
	MinUpFraction bool `json:"flag_min_up_fraction"`
	MinInsolation bool `json:"flag_min_insolation"`
}

// Valid reports whether every gating flag holds.
func (f QualityFlags) Valid() bool {
	return f.Deployed && f.Uncensored && f.SnowFree && f.MinUpFraction
}

// DailyRecord is one calendar day of one device.
type DailyRecord struct {
	Date            Date
	DaysDeployed    int
	Efficiency      float64
	UpFraction      float64
	Insolation      float64
	Samples         int
	ExpectedSamples float64
	Flags           QualityFlags
}

// Valid reports whether the record carries a usable efficiency.
func (r DailyRecord) Valid() bool {
	return !math.IsNaN(r.Efficiency)
}

// MarshalJSON flattens the flags and encodes NaN values as null.
func (r DailyRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date            Date     `json:"date"`
		DaysDeployed    int      `json:"days_deployed"`
		Efficiency      *float64 `json:"efficiency"`
		UpFraction      *float64 `json:"up_fraction"`
		Insolation      *float64 `json:"insolation_wh_m2"`
		Samples         int      `json:"samples"`
		ExpectedSamples *float64 `json:"expected_samples"`
		QualityFlags
	}{
		Date:            r.Date,
		DaysDeployed:    r.DaysDeployed,
		Efficiency:      Nullable(r.Efficiency),
		UpFraction:      Nullable(r.UpFraction),
		Insolation:      Nullable(r.Insolation),
		Samples:         r.Samples,
		ExpectedSamples: Nullable(r.ExpectedSamples),
		QualityFlags:    r.Flags,
	})
}

// Efficiencies extracts the efficiency column of a daily series.
func Efficiencies(records []DailyRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Efficiency
	}
	return out
}

// T80Result is the outcome of degradation detection. Declared is false when
// no qualifying run exists, which is distinct from a declaration on day 0.
type T80Result struct {
	Declared  bool    `json:"declared"`
	Forced    bool    `json:"forced,omitempty"`
	Index     int     `json:"index"`
	Date      Date    `json:"date,omitzero"`
	Days      int     `json:"days"`
	Reference float64 `json:"reference"`
}

// SummaryInfo is the device-level rollup. Pointer fields are nil when the
// device has no valid days or T80 is undeclared.
type SummaryInfo struct {
	DeviceID       string   `json:"device_id"`
	Start          Date     `json:"start_date"`
	End            Date     `json:"end_date,omitzero"`
	PeakEfficiency *float64 `json:"peak_efficiency"`
	T80Days        *int     `json:"days_to_t80"`
	T80Date        *Date    `json:"t80_date"`
	T80Forced      bool     `json:"t80_forced,omitempty"`
	FirstValid     *Date    `json:"first_valid"`
	LastValid      *Date    `json:"last_valid"`
	ValidDays      int      `json:"valid_days"`
	TotalDays      int      `json:"total_days"`
	Excluded       bool     `json:"excluded,omitempty"`
}

// HasData reports whether the summary was built from at least one valid day.
func (s SummaryInfo) HasData() bool {
	return s.ValidDays > 0
}
