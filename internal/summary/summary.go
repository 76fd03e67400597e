// Package summary derives device-level scalars from a daily series and its
// T80 result, and rolls devices up into the fleet table.
package summary

import (
	"math"

	"pact/internal/pv"
)

// Compute summarizes one device. A device without a valid day yields a
// summary with every derived field absent together with a NoValidDataError.
func Compute(device pv.Device, records []pv.DailyRecord, result pv.T80Result) (pv.SummaryInfo, error) {
	info := pv.SummaryInfo{
		DeviceID:  device.ID,
		Start:     device.Start,
		End:       device.End,
		TotalDays: len(records),
	}
	if info.Start.IsZero() && len(records) > 0 {
		info.Start = records[0].Date
	}

	peak := math.Inf(-1)
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		info.ValidDays++
		if r.Efficiency > peak {
			peak = r.Efficiency
		}
		date := r.Date
		if info.FirstValid == nil {
			info.FirstValid = &date
		}
		info.LastValid = &date
	}

	if result.Declared {
		days := result.Days
		date := result.Date
		info.T80Days = &days
		info.T80Date = &date
		info.T80Forced = result.Forced
	}

	if info.ValidDays == 0 {
		return info, &pv.NoValidDataError{DeviceID: device.ID}
	}
	info.PeakEfficiency = &peak
	return info, nil
}
