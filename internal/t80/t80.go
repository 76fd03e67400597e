// Package t80 detects the day a device's efficiency durably falls below a
// fraction of its reference level.
//
// The reference is derived from a rolling median of the valid daily
// efficiencies. Under the peak policy it is the running maximum of that
// median; under the initial policy it is the first rolling value after
// deployment. T80 is the first day that starts a run of consecutive days
// whose rolling median is below threshold × reference; a NaN day breaks the
// run.
package t80

import (
	"fmt"
	"math"
	"sort"

	"pact/internal/pv"
)

// Policy selects the reference level.
type Policy string

const (
	Peak    Policy = "peak"
	Initial Policy = "initial"
)

// Alignment selects how the rolling window sits around a day.
type Alignment string

const (
	Trailing Alignment = "trailing"
	Centered Alignment = "centered"
)

// Options configure the detector.
type Options struct {
	Policy    Policy
	Threshold float64
	RunLength int
	Window    int
	Alignment Alignment
}

// DefaultOptions returns the peak policy with a trailing 5-day window and a
// 3-day run below 80%.
func DefaultOptions() Options {
	return Options{Policy: Peak, Threshold: 0.8, RunLength: 3, Window: 5, Alignment: Trailing}
}

// Validate rejects options the detector cannot apply.
func (o Options) Validate() error {
	switch o.Policy {
	case Peak, Initial:
	default:
		return fmt.Errorf("%w: unknown t80 policy %q", pv.ErrInvalidConfig, o.Policy)
	}
	switch o.Alignment {
	case Trailing, Centered:
	default:
		return fmt.Errorf("%w: unknown rolling alignment %q", pv.ErrInvalidConfig, o.Alignment)
	}
	if o.Threshold <= 0 || o.Threshold >= 1 {
		return fmt.Errorf("%w: t80 threshold %v outside (0,1)", pv.ErrInvalidConfig, o.Threshold)
	}
	if o.RunLength < 1 || o.Window < 1 {
		return fmt.Errorf("%w: run length and window must be positive", pv.ErrInvalidConfig)
	}
	return nil
}

// Detect scans a full daily series, NaN days included.
func Detect(records []pv.DailyRecord, opts Options) pv.T80Result {
	index, ref, ok := DetectSeries(pv.Efficiencies(records), opts)
	if !ok {
		return pv.T80Result{Index: -1}
	}
	return pv.T80Result{
		Declared:  true,
		Index:     index,
		Date:      records[index].Date,
		Days:      records[index].DaysDeployed,
		Reference: ref,
	}
}

// DetectSeries returns the index of the first qualifying day and the
// reference in effect there.
func DetectSeries(efficiency []float64, opts Options) (int, float64, bool) {
	rolling := RollingMedian(efficiency, opts.Window, opts.Alignment)
	reference := Reference(rolling, opts.Policy)
	run := opts.RunLength
	if run < 1 {
		run = 1
	}

	for d := 0; d+run <= len(rolling); d++ {
		ref := reference[d]
		if math.IsNaN(ref) {
			continue
		}
		limit := opts.Threshold * ref
		qualifies := true
		for k := d; k < d+run; k++ {
			if math.IsNaN(rolling[k]) || !(rolling[k] < limit) {
				qualifies = false
				break
			}
		}
		if qualifies {
			return d, ref, true
		}
	}
	return -1, math.NaN(), false
}

// RollingMedian computes a median over the valid (non-NaN) days only. The
// window counts valid days, shrinks at the series edges, and NaN days map to
// NaN.
func RollingMedian(values []float64, window int, align Alignment) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	valid := make([]int, 0, len(values))
	for i, v := range values {
		out[i] = math.NaN()
		if !math.IsNaN(v) {
			valid = append(valid, i)
		}
	}

	buf := make([]float64, 0, window)
	for k, idx := range valid {
		lo, hi := k-window+1, k
		if align == Centered {
			lo = k - window/2
			hi = lo + window - 1
		}
		if lo < 0 {
			lo = 0
		}
		if hi > len(valid)-1 {
			hi = len(valid) - 1
		}
		buf = buf[:0]
		for j := lo; j <= hi; j++ {
			buf = append(buf, values[valid[j]])
		}
		out[idx] = median(buf)
	}
	return out
}

// Reference derives the per-day reference level from the rolling median.
// Days before the first valid rolling value have a NaN reference.
func Reference(rolling []float64, policy Policy) []float64 {
	out := make([]float64, len(rolling))
	current := math.NaN()
	for i, v := range rolling {
		switch policy {
		case Initial:
			if math.IsNaN(current) && !math.IsNaN(v) {
				current = v
			}
		default:
			if !math.IsNaN(v) && (math.IsNaN(current) || v > current) {
				current = v
			}
		}
		out[i] = current
	}
	return out
}

func median(values []float64) float64 {
	switch len(values) {
	case 0:
		return math.NaN()
	case 1:
		return values[0]
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
