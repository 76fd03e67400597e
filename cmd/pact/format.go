package main

import (
	"math"
	"strconv"
	"strings"

	"pact/internal/pv"
)

const absent = "-"

func formatPercent(v float64) string {
	if math.IsNaN(v) {
		return absent
	}
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}

func formatPercentPtr(v *float64) string {
	if v == nil {
		return absent
	}
	return formatPercent(*v)
}

func formatPercentValue(v *float64) string {
	if v == nil {
		return absent
	}
	return strconv.FormatFloat(*v, 'f', 2, 64) + "%"
}

func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return absent
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatDate(d pv.Date) string {
	if d.IsZero() {
		return absent
	}
	return d.String()
}

func formatDatePtr(d *pv.Date) string {
	if d == nil {
		return absent
	}
	return formatDate(*d)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return absent
	}
	return strconv.Itoa(*v)
}

func formatFlags(f pv.QualityFlags) string {
	var failed []string
	if !f.Deployed {
		failed = append(failed, "deployed")
	}
	if !f.Uncensored {
		failed = append(failed, "censored")
	}
	if !f.SnowFree {
		failed = append(failed, "snow")
	}
	if !f.MinUpFraction {
		failed = append(failed, "uptime")
	}
	if !f.MinInsolation {
		failed = append(failed, "low-insolation")
	}
	if len(failed) == 0 {
		return "ok"
	}
	return strings.Join(failed, ",")
}
