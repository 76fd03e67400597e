package pointdata

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"pact/internal/logging"
	"pact/internal/pv"
)

// Aggregator builds device point streams from a Source.
type Aggregator struct {
	source   Source
	location *time.Location
	logger   *slog.Logger
}

// NewAggregator returns an Aggregator reading from source. Dates are judged
// in loc, the site's fixed zone.
func NewAggregator(source Source, loc *time.Location, logger *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		source:   source,
		location: loc,
		logger:   logging.NewComponentLogger(logger, "pointdata"),
	}
}

// Resolve checks that every junction source of device exists. A metadevice
// with missing junctions yields an IncompleteMetadeviceError.
func (a *Aggregator) Resolve(device pv.Device) error {
	var missing []string
	for _, id := range device.SourceIDs() {
		ok, err := a.source.Has(id)
		if err != nil {
			return pv.NewInputError(device.ID, pv.InputRawData, fmt.Errorf("lookup source %s: %w", id, err))
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if device.IsMetadevice() {
		return &pv.IncompleteMetadeviceError{DeviceID: device.ID, Missing: missing}
	}
	return pv.NewInputError(device.ID, pv.InputRawData, nil)
}

// Points returns the device's sample stream sorted by timestamp and clipped
// to its deployment window.
func (a *Aggregator) Points(device pv.Device) ([]pv.PointSample, error) {
	if err := a.Resolve(device); err != nil {
		return nil, err
	}

	ids := device.SourceIDs()
	streams := make([][]pv.PointSample, 0, len(ids))
	for _, id := range ids {
		rows, err := a.source.Rows(id)
		if err != nil {
			return nil, pv.NewInputError(device.ID, pv.InputRawData, fmt.Errorf("read source %s: %w", id, err))
		}
		streams = append(streams, Normalize(rows))
	}

	var samples []pv.PointSample
	if device.IsMetadevice() {
		var dropped int
		samples, dropped = Fuse(streams)
		if dropped > 0 {
			logging.WarnWithContext(a.logger, "dropped unmatched junction timestamps", "junction_misaligned",
				logging.DeviceID(device.ID),
				logging.Int("dropped", dropped),
				logging.Int("fused", len(samples)),
				logging.String(logging.FieldErrorHint, "check junction logger clocks"),
				logging.String(logging.FieldImpact, "uptime for affected days is reduced"),
			)
		}
	} else {
		samples = streams[0]
	}

	clipped := a.clip(device, samples)
	a.logger.Debug("points loaded",
		logging.DeviceID(device.ID),
		logging.Int("junctions", len(ids)),
		logging.Int("samples", len(clipped)),
	)
	return clipped, nil
}

func (a *Aggregator) clip(device pv.Device, samples []pv.PointSample) []pv.PointSample {
	out := make([]pv.PointSample, 0, len(samples))
	for _, s := range samples {
		day := pv.DateOf(s.Time, a.location)
		if day.Before(device.Start) {
			continue
		}
		if device.Retired() && day.After(device.End) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Normalize sorts rows by timestamp and keeps the latest-ingested row among
// duplicates. rows must be in ingestion order.
func Normalize(rows []pv.PointSample) []pv.PointSample {
	sorted := make([]pv.PointSample, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := sorted[:0]
	for i, row := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Time.Equal(row.Time) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Fuse inner-joins normalized junction streams on timestamp. Power is summed,
// irradiance and temperatures are averaged, and the per-junction operating
// point is NaN. It returns the fused stream and the number of timestamps
// dropped for lack of a match in every junction.
func Fuse(streams [][]pv.PointSample) ([]pv.PointSample, int) {
	if len(streams) == 0 {
		return nil, 0
	}
	if len(streams) == 1 {
		return streams[0], 0
	}

	lookups := make([]map[int64]pv.PointSample, len(streams)-1)
	for i, stream := range streams[1:] {
		idx := make(map[int64]pv.PointSample, len(stream))
		for _, s := range stream {
			idx[s.Time.UnixNano()] = s
		}
		lookups[i] = idx
	}

	n := float64(len(streams))
	fused := make([]pv.PointSample, 0, len(streams[0]))
	matched := 0
	for _, base := range streams[0] {
		key := base.Time.UnixNano()
		acc := base
		ok := true
		for _, idx := range lookups {
			other, found := idx[key]
			if !found {
				ok = false
				break
			}
			acc.Power += other.Power
			acc.Irradiance += other.Irradiance
			acc.TemperatureAir += other.TemperatureAir
			acc.TemperatureModule += other.TemperatureModule
		}
		if !ok {
			continue
		}
		matched++
		fused = append(fused, pv.PointSample{
			Time:              base.Time,
			Power:             acc.Power,
			Irradiance:        acc.Irradiance / n,
			TemperatureAir:    acc.TemperatureAir / n,
			TemperatureModule: acc.TemperatureModule / n,
			Vmp:               math.NaN(),
			Imp:               math.NaN(),
		})
	}

	total := 0
	for _, stream := range streams {
		total += len(stream)
	}
	return fused, total - matched*len(streams)
}
