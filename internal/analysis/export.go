package analysis

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"pact/internal/pv"
)

// ExportOptions select the devices of an efficiency export.
type ExportOptions struct {
	DeviceIDs []string
	// TruncateAtT80 blanks each device's efficiencies after its T80 date.
	TruncateAtT80 bool
}

// ExportResult reports what an export wrote.
type ExportResult struct {
	Devices []string
	Dates   int
	T80     map[string]*pv.Date
}

// Export writes the wide efficiency table (one row per date, one column per
// device, efficiency in percent) to table and the T80 sidecar
// {device: "YYYY-MM-DD" | null} to sidecar. sidecar may be nil.
func (s *Session) Export(ctx context.Context, table, sidecar io.Writer, opts ExportOptions) (ExportResult, error) {
	ids := opts.DeviceIDs
	if len(ids) == 0 {
		devices, err := s.Devices(ctx)
		if err != nil {
			return ExportResult{}, err
		}
		for _, d := range devices {
			ids = append(ids, d.ID)
		}
	}

	result := ExportResult{T80: make(map[string]*pv.Date, len(ids))}
	columns := make(map[string]map[pv.Date]float64, len(ids))
	dateSet := make(map[pv.Date]struct{})
	for _, id := range ids {
		verdict, err := s.T80(ctx, id)
		if err != nil {
			return ExportResult{}, err
		}
		series := verdict.Series
		deviceID := series.Device.ID
		result.Devices = append(result.Devices, deviceID)

		var cutoff *pv.Date
		if verdict.Result.Declared {
			d := verdict.Result.Date
			cutoff = &d
		}
		result.T80[deviceID] = cutoff

		col := make(map[pv.Date]float64, len(series.Records))
		for _, r := range series.Records {
			dateSet[r.Date] = struct{}{}
			if opts.TruncateAtT80 && cutoff != nil && r.Date.After(*cutoff) {
				continue
			}
			col[r.Date] = r.Efficiency
		}
		columns[deviceID] = col
	}

	dates := make([]pv.Date, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	result.Dates = len(dates)

	w := csv.NewWriter(table)
	header := append([]string{"date"}, result.Devices...)
	if err := w.Write(header); err != nil {
		return ExportResult{}, fmt.Errorf("write export header: %w", err)
	}
	for _, d := range dates {
		row := make([]string, 0, len(header))
		row = append(row, d.String())
		for _, id := range result.Devices {
			row = append(row, formatPercent(columns[id], d))
		}
		if err := w.Write(row); err != nil {
			return ExportResult{}, fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return ExportResult{}, fmt.Errorf("flush export: %w", err)
	}

	if sidecar != nil {
		enc := json.NewEncoder(sidecar)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.T80); err != nil {
			return ExportResult{}, fmt.Errorf("write t80 sidecar: %w", err)
		}
	}
	return result, nil
}

func formatPercent(col map[pv.Date]float64, d pv.Date) string {
	v, ok := col[d]
	if !ok || math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v*100, 'f', 4, 64)
}
