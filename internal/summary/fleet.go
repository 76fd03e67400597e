package summary

import (
	"sort"
	"strings"

	"pact/internal/pv"
)

// Entry pairs a device with its summary.
type Entry struct {
	Device  pv.Device
	Summary pv.SummaryInfo
}

// Filter narrows the fleet table.
type Filter struct {
	ActiveOnly      bool
	Batch           string
	IncludeExcluded bool
}

// Row is one line of the fleet table. Efficiency is in percent.
type Row struct {
	DeviceID         string   `json:"device_id"`
	Batch            string   `json:"batch"`
	Type             string   `json:"type,omitempty"`
	Start            pv.Date  `json:"start_date"`
	End              pv.Date  `json:"end_date,omitzero"`
	DaysToT80        *int     `json:"days_to_t80"`
	T80Date          *pv.Date `json:"t80_date"`
	T80Forced        bool     `json:"t80_forced,omitempty"`
	MaxEfficiencyPct *float64 `json:"max_efficiency_pct"`
	FirstValid       *pv.Date `json:"first_valid"`
	LastValid        *pv.Date `json:"last_valid"`
	ValidDays        int      `json:"valid_days"`
	Active           bool     `json:"active"`
	Excluded         bool     `json:"excluded,omitempty"`
}

// Fleet is the filtered table plus aggregates over the non-excluded rows.
type Fleet struct {
	Rows          []Row    `json:"rows"`
	Devices       int      `json:"devices"`
	Declared      int      `json:"t80_declared"`
	Excluded      int      `json:"excluded"`
	MedianT80Days *float64 `json:"median_days_to_t80"`
	MeanPeakPct   *float64 `json:"mean_max_efficiency_pct"`
}

// BuildFleet applies filter, sorts rows by device id, and computes the
// aggregates. Excluded devices never contribute to the aggregates and are
// listed only when IncludeExcluded is set.
func BuildFleet(entries []Entry, filter Filter) Fleet {
	batch := pv.Batch(filter.Batch)
	var fleet Fleet
	var t80Days []float64
	var peaks []float64

	for _, e := range entries {
		if filter.ActiveOnly && !e.Device.Active {
			continue
		}
		if batch != "" && !strings.HasPrefix(pv.CanonicalID(e.Device.ID), batch) {
			continue
		}
		row := newRow(e)
		if row.Excluded {
			fleet.Excluded++
			if filter.IncludeExcluded {
				fleet.Rows = append(fleet.Rows, row)
			}
			continue
		}
		fleet.Rows = append(fleet.Rows, row)
		fleet.Devices++
		if row.DaysToT80 != nil {
			fleet.Declared++
			t80Days = append(t80Days, float64(*row.DaysToT80))
		}
		if row.MaxEfficiencyPct != nil {
			peaks = append(peaks, *row.MaxEfficiencyPct)
		}
	}

	sort.Slice(fleet.Rows, func(i, j int) bool {
		return fleet.Rows[i].DeviceID < fleet.Rows[j].DeviceID
	})
	if len(t80Days) > 0 {
		m := medianOf(t80Days)
		fleet.MedianT80Days = &m
	}
	if len(peaks) > 0 {
		total := 0.0
		for _, p := range peaks {
			total += p
		}
		mean := total / float64(len(peaks))
		fleet.MeanPeakPct = &mean
	}
	return fleet
}

func newRow(e Entry) Row {
	s := e.Summary
	row := Row{
		DeviceID:   e.Device.ID,
		Batch:      pv.Batch(e.Device.ID),
		Type:       e.Device.Type,
		Start:      s.Start,
		End:        s.End,
		DaysToT80:  s.T80Days,
		T80Date:    s.T80Date,
		T80Forced:  s.T80Forced,
		FirstValid: s.FirstValid,
		LastValid:  s.LastValid,
		ValidDays:  s.ValidDays,
		Active:     e.Device.Active,
		Excluded:   s.Excluded,
	}
	if s.PeakEfficiency != nil {
		pct := *s.PeakEfficiency * 100
		row.MaxEfficiencyPct = &pct
	}
	return row
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
