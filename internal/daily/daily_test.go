package daily

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pact/internal/ephemeris"
	"pact/internal/pv"
	"pact/internal/quality"
	"pact/internal/testsupport"
)

var mst = pv.FixedZone(-7)

func newAggregator() *Aggregator {
	eph := ephemeris.Fixed{Location: mst, Sunrise: 6 * time.Hour, Sunset: 18 * time.Hour}
	engine := quality.NewEngine(quality.Options{
		MinUpFraction:  0.8,
		MinInsolation:  4000,
		SampleInterval: time.Minute,
		Location:       mst,
	}, eph, nil)
	return NewAggregator(Options{MinIrradiance: 100, SampleInterval: time.Minute, Location: mst}, engine, nil)
}

func TestSeriesHasNoDateGaps(t *testing.T) {
	start := pv.MustParseDate("2021-06-01")
	samples := testsupport.Days(start, mst,
		testsupport.FullDay(1000, 150),
		testsupport.DayProfile{},
		testsupport.DayProfile{},
		testsupport.FullDay(1000, 120),
	)
	device := pv.Device{ID: "P-0001", Area: 1, Start: start}

	records, err := newAggregator().Series(device, samples, pv.ModuleMetadata{}, pv.SiteMetadata{})
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, r := range records {
		assert.Equal(t, start.AddDays(i), r.Date)
		assert.Equal(t, i, r.DaysDeployed)
	}
	assert.InDelta(t, 0.15, records[0].Efficiency, 1e-9)
	assert.True(t, math.IsNaN(records[1].Efficiency))
	assert.False(t, records[1].Flags.MinUpFraction)
	assert.InDelta(t, 0.12, records[3].Efficiency, 1e-9)
}

func TestSeriesRunsToRetirementDate(t *testing.T) {
	start := pv.MustParseDate("2021-06-01")
	samples := testsupport.Days(start, mst, testsupport.FullDay(1000, 150))
	device := pv.Device{ID: "P-0001", Area: 1, Start: start, End: start.AddDays(9)}

	records, err := newAggregator().Series(device, samples, pv.ModuleMetadata{}, pv.SiteMetadata{})
	require.NoError(t, err)
	require.Len(t, records, 10)
	assert.Equal(t, start.AddDays(9), records[9].Date)
	assert.True(t, math.IsNaN(records[9].Efficiency))
}

func TestEmptySourceSpan(t *testing.T) {
	start := pv.MustParseDate("2021-06-01")
	agg := newAggregator()

	active := pv.Device{ID: "P-0001", Area: 1, Start: start, Active: true}
	records, err := agg.Series(active, nil, pv.ModuleMetadata{}, pv.SiteMetadata{})
	require.NoError(t, err)
	assert.Empty(t, records, "an active device without samples has no known end date")

	retired := pv.Device{ID: "P-0002", Area: 1, Start: start, End: start.AddDays(2)}
	records, err = agg.Series(retired, nil, pv.ModuleMetadata{}, pv.SiteMetadata{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.True(t, math.IsNaN(r.Efficiency))
	}
}

func TestInvalidFlagsForceNaN(t *testing.T) {
	start := pv.MustParseDate("2021-06-01")
	samples := testsupport.Days(start, mst,
		testsupport.FullDay(1000, 150),
		testsupport.FullDay(1000, 150),
		testsupport.FullDay(1000, 150),
		testsupport.FullDay(200, 30),
	)
	device := pv.Device{ID: "P-0001", Area: 1, Start: start}
	module := pv.ModuleMetadata{Censored: []pv.DateRange{{Start: start.AddDays(1), End: start.AddDays(1)}}}
	site := pv.SiteMetadata{SnowDays: []pv.Date{start.AddDays(2)}}

	agg := newAggregator()
	for run := 0; run < 2; run++ {
		records, err := agg.Series(device, samples, module, site)
		require.NoError(t, err)
		for _, r := range records {
			if !r.Flags.Valid() {
				assert.True(t, math.IsNaN(r.Efficiency), "day %s has invalid flags but efficiency %v", r.Date, r.Efficiency)
			}
		}
		assert.False(t, math.IsNaN(records[3].Efficiency), "low insolation is informational only")
		assert.False(t, records[3].Flags.MinInsolation)
	}
}

func TestEfficiencyExcludesLowIrradiance(t *testing.T) {
	day := pv.MustParseDate("2021-06-01")
	base := day.Start(mst).Add(12 * time.Hour)
	samples := []pv.PointSample{
		{Time: base, Irradiance: 50, Power: 1},
		{Time: base.Add(time.Minute), Irradiance: 1000, Power: 200},
		{Time: base.Add(2 * time.Minute), Irradiance: 500, Power: 50},
	}
	device := pv.Device{Area: 1}
	assert.InDelta(t, 0.15, Efficiency(samples, device, 100, time.Minute), 1e-9)
	assert.True(t, math.IsNaN(Efficiency(samples[:1], device, 100, time.Minute)))
}

func TestEfficiencyIsTimeWeighted(t *testing.T) {
	base := time.Date(2021, time.June, 1, 12, 0, 0, 0, mst)
	samples := []pv.PointSample{
		{Time: base, Irradiance: 1000, Power: 200},
		{Time: base.Add(20 * time.Second), Irradiance: 1000, Power: 100},
	}
	// 20 s at 0.2 and a full 60 s interval at 0.1.
	want := (0.2*20 + 0.1*60) / 80
	assert.InDelta(t, want, Efficiency(samples, pv.Device{Area: 1}, 100, time.Minute), 1e-12)
}

func TestEfficiencyFallsBackToRatedPower(t *testing.T) {
	base := time.Date(2021, time.June, 1, 12, 0, 0, 0, mst)
	samples := []pv.PointSample{{Time: base, Irradiance: 800, Power: 120}}
	assert.InDelta(t, 1.0, Efficiency(samples, pv.Device{RatedPower: 150}, 100, time.Minute), 1e-12)
	assert.True(t, math.IsNaN(Efficiency(samples, pv.Device{}, 100, time.Minute)))
}

func TestDaysWithoutStartUseFirstSample(t *testing.T) {
	start := pv.MustParseDate("2021-06-03")
	samples := testsupport.Days(start, mst, testsupport.FullDay(1000, 150), testsupport.FullDay(1000, 150))
	days := newAggregator().Days(pv.Device{ID: "P-0001"}, samples)
	require.Len(t, days, 2)
	assert.Equal(t, start, days[0])

	assert.Empty(t, newAggregator().Days(pv.Device{ID: "P-0002", Start: start}, nil))
}
