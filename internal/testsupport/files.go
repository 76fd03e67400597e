package testsupport

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"pact/internal/pv"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WritePointCSV writes samples as a point-data export file for sourceID under
// dataDir and returns its path. Times are written with their offset.
func WritePointCSV(t testing.TB, dataDir, sourceID, month string, samples []pv.PointSample) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("date_time,poa_global,temperature_air,temperature_module,vmp,imp,power\n")
	for _, s := range samples {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s,%s\n",
			s.Time.Format("2006-01-02 15:04:05-07:00"),
			formatFloat(s.Irradiance),
			formatFloat(s.TemperatureAir),
			formatFloat(s.TemperatureModule),
			formatFloat(s.Vmp),
			formatFloat(s.Imp),
			formatFloat(s.Power),
		)
	}
	path := filepath.Join(dataDir, month, "point-data", fmt.Sprintf("point-data_%s_%s.csv", sourceID, month))
	WriteFile(t, path, b.String())
	return path
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
