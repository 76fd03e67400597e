package pv

import (
	"encoding/json"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseDateLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want Date
	}{
		{"2021-03-15", NewDate(2021, time.March, 15)},
		{"3/15/21", NewDate(2021, time.March, 15)},
		{"12/1/2020", NewDate(2020, time.December, 1)},
		{"2021-03-15T10:00:00-07:00", NewDate(2021, time.March, 15)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseDate("yesterday"); err == nil {
		t.Fatal("expected error for unrecognized date")
	}
}

func TestDateArithmetic(t *testing.T) {
	start := MustParseDate("2020-02-27")
	if got := start.AddDays(3); got != MustParseDate("2020-03-01") {
		t.Fatalf("AddDays across leap day = %v", got)
	}
	if got := MustParseDate("2021-02-27").DaysSince(start); got != 366 {
		t.Fatalf("DaysSince = %d, want 366", got)
	}
	if !start.Before(start.AddDays(1)) || start.After(start) {
		t.Fatal("unexpected ordering")
	}
}

func TestDateOfUsesSiteZone(t *testing.T) {
	mst := FixedZone(-7)
	instant := time.Date(2021, time.June, 2, 3, 0, 0, 0, time.UTC)
	if got := DateOf(instant, mst); got != NewDate(2021, time.June, 1) {
		t.Fatalf("DateOf = %v, want 2021-06-01", got)
	}
	if mst.String() != "UTC-07:00" {
		t.Fatalf("unexpected zone name %q", mst.String())
	}
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{Start: MustParseDate("2021-01-10"), End: MustParseDate("2021-01-12")}
	for _, d := range []string{"2021-01-10", "2021-01-11", "2021-01-12"} {
		if !r.Contains(MustParseDate(d)) {
			t.Fatalf("expected %s inside range", d)
		}
	}
	if r.Contains(MustParseDate("2021-01-13")) || r.Contains(MustParseDate("2021-01-09")) {
		t.Fatal("expected bounds to be inclusive only")
	}
	open := DateRange{Start: MustParseDate("2021-01-10")}
	if !open.Contains(MustParseDate("2030-01-01")) {
		t.Fatal("expected open range to contain later dates")
	}
}

func TestDailyRecordJSONEncodesNaNAsNull(t *testing.T) {
	rec := DailyRecord{
		Date:       MustParseDate("2021-05-01"),
		Efficiency: math.NaN(),
		UpFraction: 0.5,
		Flags:      QualityFlags{Deployed: true},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"efficiency":null`) {
		t.Fatalf("expected null efficiency, got %s", text)
	}
	if !strings.Contains(text, `"date":"2021-05-01"`) || !strings.Contains(text, `"flag_deployed":true`) {
		t.Fatalf("unexpected encoding: %s", text)
	}
}

func TestCanonicalIDAndBatch(t *testing.T) {
	if got := CanonicalID("  p-0042-01 "); got != "P-0042-01" {
		t.Fatalf("CanonicalID = %q", got)
	}
	if got := Batch("p-0042-01"); got != "P-0042" {
		t.Fatalf("Batch = %q", got)
	}
}

func TestCanonicalIDConcurrentCallers(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := CanonicalID("p-0107-md"); got != "P-0107-MD" {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("CanonicalID = %q under concurrent use", got)
	}
}

func TestSampleDurationsCapAtInterval(t *testing.T) {
	base := time.Date(2021, time.June, 1, 12, 0, 0, 0, time.UTC)
	samples := []PointSample{
		{Time: base},
		{Time: base.Add(30 * time.Second)},
		{Time: base.Add(10 * time.Minute)},
	}
	got := SampleDurations(samples, time.Minute)
	want := []time.Duration{30 * time.Second, time.Minute, time.Minute}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("duration[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGroupByDateUsesSiteZone(t *testing.T) {
	mst := FixedZone(-7)
	samples := []PointSample{
		{Time: time.Date(2021, time.June, 2, 5, 0, 0, 0, time.UTC)},
		{Time: time.Date(2021, time.June, 2, 8, 0, 0, 0, time.UTC)},
	}
	groups := GroupByDate(samples, mst)
	if len(groups[MustParseDate("2021-06-01")]) != 1 || len(groups[MustParseDate("2021-06-02")]) != 1 {
		t.Fatalf("unexpected grouping: %v", groups)
	}
}
