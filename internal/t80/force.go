package t80

import "pact/internal/pv"

// Force applies an administrative force-T80 directive. An explicit date wins
// over the detector. Without a date an already-declared result is kept, and an
// undeclared one is declared on the last day of the series. A date before
// the deployment start is moved to the start.
func Force(result pv.T80Result, records []pv.DailyRecord, start pv.Date, date *pv.Date) pv.T80Result {
	if date == nil && result.Declared {
		return result
	}

	var when pv.Date
	switch {
	case date != nil && !start.IsZero() && date.Before(start):
		when = start
	case date != nil:
		when = *date
	case len(records) > 0:
		when = records[len(records)-1].Date
	default:
		when = start
	}

	forced := pv.T80Result{Declared: true, Forced: true, Index: -1, Date: when}
	if !start.IsZero() {
		forced.Days = when.DaysSince(start)
	}
	for i, r := range records {
		if r.Date == when {
			forced.Index = i
			forced.Days = r.DaysDeployed
			break
		}
	}
	return forced
}
