package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pact/internal/ephemeris"
	"pact/internal/pv"
	"pact/internal/testsupport"
)

var mst = pv.FixedZone(-7)

func newEngine() *Engine {
	eph := ephemeris.Fixed{Location: mst, Sunrise: 6 * time.Hour, Sunset: 18 * time.Hour}
	return NewEngine(Options{
		MinUpFraction:  0.8,
		MinInsolation:  4000,
		SampleInterval: time.Minute,
		Location:       mst,
	}, eph, nil)
}

func TestAssessFlags(t *testing.T) {
	start := pv.MustParseDate("2021-06-01")
	days := []pv.Date{start, start.AddDays(1), start.AddDays(2), start.AddDays(3), start.AddDays(4), start.AddDays(5), start.AddDays(6)}

	half := testsupport.FullDay(1000, 150)
	half.To = 12 * time.Hour
	dim := testsupport.FullDay(200, 30)

	samples := testsupport.Days(start, mst,
		testsupport.FullDay(1000, 150), // clean
		testsupport.FullDay(1000, 150), // indoors
		testsupport.FullDay(1000, 150), // module censored
		testsupport.FullDay(1000, 150), // snow
		half,                           // uptime 0.5
		dim,                            // 2400 Wh/m²
		testsupport.DayProfile{},       // no samples
	)

	device := pv.Device{ID: "P-0001", Start: start}
	module := pv.ModuleMetadata{
		DeviceID: "P-0001",
		Indoors:  []pv.DateRange{{Start: start.AddDays(1), End: start.AddDays(1)}},
		Censored: []pv.DateRange{{Start: start.AddDays(2), End: start.AddDays(2)}},
	}
	site := pv.SiteMetadata{SnowDays: []pv.Date{start.AddDays(3)}}

	got, err := newEngine().Assess(device, days, pv.GroupByDate(samples, mst), module, site)
	require.NoError(t, err)
	require.Len(t, got, len(days))

	assert.True(t, got[0].Flags.Valid())
	assert.True(t, got[0].Flags.MinInsolation)
	assert.InDelta(t, 1.0, got[0].UpFraction, 1e-9)
	assert.InDelta(t, 12000, got[0].Insolation, 1e-6)
	assert.Equal(t, 720.0, got[0].ExpectedSamples)

	assert.False(t, got[1].Flags.Deployed)
	assert.True(t, got[1].Flags.Uncensored)
	assert.False(t, got[2].Flags.Uncensored)
	assert.False(t, got[3].Flags.SnowFree)

	assert.False(t, got[4].Flags.MinUpFraction)
	assert.InDelta(t, 0.5, got[4].UpFraction, 1e-9)

	assert.True(t, got[5].Flags.Valid(), "insolation flag never gates")
	assert.False(t, got[5].Flags.MinInsolation)

	assert.Equal(t, 0, got[6].Samples)
	assert.False(t, got[6].Flags.MinUpFraction)
}

func TestSiteCensorWindowClearsUncensored(t *testing.T) {
	day := pv.MustParseDate("2021-06-01")
	samples := testsupport.Day(day, mst, testsupport.FullDay(1000, 150))
	site := pv.SiteMetadata{Censored: []pv.DateRange{{Start: day, End: day, Comment: "logger swap"}}}

	got, err := newEngine().Assess(pv.Device{ID: "P-0001", Start: day}, []pv.Date{day}, pv.GroupByDate(samples, mst), pv.ModuleMetadata{}, site)
	require.NoError(t, err)
	assert.False(t, got[0].Flags.Uncensored)
}

func TestNightSamplesDoNotCountTowardUptime(t *testing.T) {
	day := pv.MustParseDate("2021-06-01")
	night := testsupport.DayProfile{From: 0, To: 6 * time.Hour, Interval: time.Minute}
	samples := testsupport.Day(day, mst, night)

	got, err := newEngine().Assess(pv.Device{ID: "P-0001", Start: day}, []pv.Date{day}, pv.GroupByDate(samples, mst), pv.ModuleMetadata{}, pv.SiteMetadata{})
	require.NoError(t, err)
	assert.Equal(t, 360, got[0].Samples)
	assert.Equal(t, 0, got[0].DaytimeSamples)
	assert.False(t, got[0].Flags.MinUpFraction)
	assert.Equal(t, 0.0, got[0].Insolation)
}

func TestEphemerisFailureIsTypedInputError(t *testing.T) {
	day := pv.MustParseDate("2021-06-01")
	engine := NewEngine(Options{MinUpFraction: 0.8, SampleInterval: time.Minute, Location: mst}, failingEphemeris{}, nil)

	_, err := engine.Assess(pv.Device{ID: "P-0009"}, []pv.Date{day}, nil, pv.ModuleMetadata{}, pv.SiteMetadata{})
	var input *pv.InputError
	require.ErrorAs(t, err, &input)
	assert.Equal(t, pv.InputEphemeris, input.Category)
}

func TestPolarDayHasNoExpectedSamples(t *testing.T) {
	day := pv.MustParseDate("2021-06-01")
	engine := NewEngine(Options{MinUpFraction: 0.8, SampleInterval: time.Minute, Location: mst}, ephemeris.Fixed{Location: mst}, nil)
	samples := testsupport.Day(day, mst, testsupport.FullDay(500, 50))

	got, err := engine.Assess(pv.Device{ID: "P-0001"}, []pv.Date{day}, pv.GroupByDate(samples, mst), pv.ModuleMetadata{}, pv.SiteMetadata{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got[0].ExpectedSamples)
	assert.False(t, got[0].Flags.MinUpFraction)
}

type failingEphemeris struct{}

func (failingEphemeris) SunTimes(pv.Date) (time.Time, time.Time, error) {
	return time.Time{}, time.Time{}, assert.AnError
}
