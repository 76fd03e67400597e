package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pact/internal/pv"
	"pact/internal/testsupport"
)

const setupSheet = `Start_date,End_date,PACT_id,PSEL_id,Area,Active,Type,Site,Notes
6/1/21,,P-0042-01,101,1.6,Y,MHP,NREL,
6/1/21,6/3/21,P-0042-02,102,1.6,N,MHP,NREL,retired
`

const moduleDoc = `[
    {"module_id": "P-0042-01", "module_area": 1.6, "module_type": "MHP", "days_indoors": [], "days_censored": []},
    {"module_id": "P-0042-02", "module_area": 1.6, "module_type": "MHP", "days_indoors": [], "days_censored": []}
]`

const siteDoc = `{
    "location": {"label": "NREL", "latitude": 39.74, "longitude": -105.18, "elevation": 1795, "surface_tilt": 40, "surface_azimuth": 180},
    "snow_days": []
}`

type cliTestEnv struct {
	baseDir     string
	configPath  string
	dataDir     string
	metadataDir string
}

func setupCLITestEnv(t *testing.T, registry, points string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:     base,
		configPath:  filepath.Join(base, "config.toml"),
		dataDir:     filepath.Join(base, "data"),
		metadataDir: filepath.Join(base, "metadata"),
	}

	testsupport.WriteFile(t, filepath.Join(env.metadataDir, "PACT_NREL_Outdoor_Modules_SETUP.csv"), setupSheet)
	meta := filepath.Join(env.metadataDir, "P-0042-XX", "outdoor", "data", "metadata")
	testsupport.WriteFile(t, filepath.Join(meta, "module-metadata.json"), moduleDoc)
	testsupport.WriteFile(t, filepath.Join(meta, "site-metadata.json"), siteDoc)

	loc := pv.FixedZone(-7)
	start := pv.MustParseDate("2021-06-01")
	day := testsupport.DayProfile{From: 4 * time.Hour, To: 21 * time.Hour, Interval: time.Minute, Irradiance: 1000, Power: 240}
	testsupport.WritePointCSV(t, env.dataDir, "P-0042-01", "2021-06",
		testsupport.Days(start, loc, day, day, day, day, day)...)
	testsupport.WritePointCSV(t, env.dataDir, "P-0042-02", "2021-06",
		testsupport.Days(start, loc, day, day, day)...)

	content := fmt.Sprintf(`[paths]
data_dir = %q
metadata_dir = %q
registry_db = %q
point_store_dir = %q
log_dir = %q

[site]
latitude = 39.74
longitude = -105.18
utc_offset_hours = -7
sample_interval_seconds = 60

[sources]
registry = %q
points = %q

[api]
bind = "127.0.0.1:0"

[logging]
format = "json"
level = "error"
`,
		env.dataDir,
		env.metadataDir,
		filepath.Join(base, "state", "registry.db"),
		filepath.Join(base, "state", "points"),
		filepath.Join(base, "logs"),
		registry,
		points,
	)
	testsupport.WriteFile(t, env.configPath, content)
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q to contain %q", haystack, needle)
	}
}
