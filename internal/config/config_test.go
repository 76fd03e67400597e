package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"pact/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "pact", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "pact", "data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.ExceptionsFile != "" {
		t.Fatalf("expected no exceptions file by default, got %q", cfg.Paths.ExceptionsFile)
	}
	if cfg.Analysis.MinIrradiance != 100 || cfg.Analysis.MinInsolation != 4000 || cfg.Analysis.MinUpFraction != 0.80 {
		t.Fatalf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Analysis.T80Reference != config.ReferencePeak {
		t.Fatalf("expected peak reference by default, got %q", cfg.Analysis.T80Reference)
	}
	if cfg.Site.UTCOffsetHours != -7 {
		t.Fatalf("expected MST site offset, got %v", cfg.Site.UTCOffsetHours)
	}
	if _, offset := cfg.Location().Zone(); offset != -7*3600 {
		t.Fatalf("unexpected location offset: %d", offset)
	}
	if cfg.API.Bind != "127.0.0.1:7480" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
}

func TestLoadFileOverridesAndEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PACT_DATA_DIR", "~/from-env")
	t.Setenv("PACT_LOG_LEVEL", "DEBUG")

	path := filepath.Join(t.TempDir(), "pact.toml")
	content := `
[site]
utc_offset_hours = -5
sample_interval_seconds = 300

[analysis]
t80_reference = " Initial "
rolling_alignment = "CENTERED"
min_up_fraction = 0.5

[sources]
registry = "sqlite"
points = "badger"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Analysis.T80Reference != config.ReferenceInitial {
		t.Fatalf("expected initial reference, got %q", cfg.Analysis.T80Reference)
	}
	if cfg.Analysis.RollingAlignment != config.AlignCentered {
		t.Fatalf("expected centered alignment, got %q", cfg.Analysis.RollingAlignment)
	}
	if cfg.Analysis.MinUpFraction != 0.5 {
		t.Fatalf("expected min_up_fraction override, got %v", cfg.Analysis.MinUpFraction)
	}
	if cfg.SampleInterval().Seconds() != 300 {
		t.Fatalf("unexpected sample interval: %v", cfg.SampleInterval())
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "from-env") {
		t.Fatalf("expected env data dir, got %q", cfg.Paths.DataDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
	if cfg.Sources.Registry != config.RegistrySQLite || cfg.Sources.Points != config.PointsBadger {
		t.Fatalf("unexpected sources: %+v", cfg.Sources)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := []struct {
		name    string
		content string
		wantKey string
	}{
		{"reference", "[analysis]\nt80_reference = \"median\"\n", "analysis.t80_reference"},
		{"alignment", "[analysis]\nrolling_alignment = \"leading\"\n", "analysis.rolling_alignment"},
		{"up fraction", "[analysis]\nmin_up_fraction = 1.5\n", "analysis.min_up_fraction"},
		{"threshold", "[analysis]\nt80_threshold = 1.0\n", "analysis.t80_threshold"},
		{"window", "[analysis]\nrolling_window = 0\n", "analysis.rolling_window"},
		{"offset", "[site]\nutc_offset_hours = 20\n", "site.utc_offset_hours"},
		{"registry", "[sources]\nregistry = \"postgres\"\n", "sources.registry"},
		{"log format", "[logging]\nformat = \"xml\"\n", "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
			if !strings.Contains(err.Error(), tc.wantKey) {
				t.Fatalf("expected error to mention %q, got %v", tc.wantKey, err)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[analysis]\nmin_irradiance_wm2 = 50\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target, config.SampleSite{}); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if decoded.Analysis.T80RunLength != 3 {
		t.Fatalf("expected sample run length 3, got %d", decoded.Analysis.T80RunLength)
	}

	if _, _, exists, err := config.Load(target); err != nil || !exists {
		t.Fatalf("Load(sample) = exists %v, err %v", exists, err)
	}
}

func TestRenderSampleSeedsSite(t *testing.T) {
	lat, lon, offset := 35.05, -106.54, -7.0
	data, err := config.RenderSample(config.SampleSite{
		Label:          "SNL Albuquerque",
		Latitude:       &lat,
		Longitude:      &lon,
		UTCOffsetHours: &offset,
		DataDir:        "/srv/pact/data",
	})
	if err != nil {
		t.Fatalf("RenderSample: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "# Fixed offset of the site clock") {
		t.Fatal("expected sample comments to survive rendering")
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("rendered sample is not valid TOML: %v", err)
	}
	if decoded.Site.Label != "SNL Albuquerque" || decoded.Site.Latitude != lat || decoded.Site.Longitude != lon {
		t.Fatalf("site not seeded: %+v", decoded.Site)
	}
	if decoded.Paths.DataDir != "/srv/pact/data" || decoded.Paths.MetadataDir != "~/pact/metadata" {
		t.Fatalf("unexpected paths: %+v", decoded.Paths)
	}

	bad := 123.0
	if _, err := config.RenderSample(config.SampleSite{Latitude: &bad}); err == nil || !strings.Contains(err.Error(), "site.latitude") {
		t.Fatalf("expected latitude rejection, got %v", err)
	}
}

func TestEnsureDirectoriesCreatesStateDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.PointStoreDir = filepath.Join(base, "points")
	cfg.Paths.RegistryDB = filepath.Join(base, "db", "registry.db")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.PointStoreDir, filepath.Join(base, "db")} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
