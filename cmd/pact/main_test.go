package main

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"pact/internal/pv"
	"pact/internal/summary"
)

func TestDevicesAndDaily(t *testing.T) {
	env := setupCLITestEnv(t, "json", "csv")

	out, _, err := runCLI(t, []string{"devices"}, env.configPath)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	requireContains(t, out, "P-0042-01")
	requireContains(t, out, "P-0042-02")

	out, _, err = runCLI(t, []string{"--json", "daily", "p-0042-01"}, env.configPath)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode daily: %v\n%s", err, out)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 daily records, got %d", len(records))
	}
	if eff, ok := records[0]["efficiency"].(float64); !ok || eff < 0.149 || eff > 0.151 {
		t.Fatalf("unexpected first-day efficiency %v", records[0]["efficiency"])
	}

	out, _, err = runCLI(t, []string{"t80", "P-0042-01"}, env.configPath)
	if err != nil {
		t.Fatalf("t80: %v", err)
	}
	requireContains(t, out, "not reached")
}

func TestUnknownDeviceFails(t *testing.T) {
	env := setupCLITestEnv(t, "json", "csv")
	_, _, err := runCLI(t, []string{"daily", "P-9999-01"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown device error")
	}
	requireContains(t, err.Error(), pv.ErrUnknownDevice.Error())
}

func TestFleetSummary(t *testing.T) {
	env := setupCLITestEnv(t, "json", "csv")

	out, _, err := runCLI(t, []string{"--json", "summary", "--active"}, env.configPath)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var fleet summary.Fleet
	if err := json.Unmarshal([]byte(out), &fleet); err != nil {
		t.Fatalf("decode fleet: %v\n%s", err, out)
	}
	if len(fleet.Rows) != 1 || fleet.Rows[0].DeviceID != "P-0042-01" {
		t.Fatalf("expected only the active device, got %+v", fleet.Rows)
	}

	out, _, err = runCLI(t, []string{"summary"}, env.configPath)
	if err != nil {
		t.Fatalf("summary table: %v", err)
	}
	requireContains(t, out, "2 devices, 0 reached T80")

	out, _, err = runCLI(t, []string{"summary", "--format", "csv"}, env.configPath)
	if err != nil {
		t.Fatalf("summary csv: %v", err)
	}
	requireContains(t, out, "Device,Type,Start,End,Active")
	requireContains(t, out, "P-0042-02,MHP,2021-06-01,2021-06-03,no")

	if _, _, err := runCLI(t, []string{"summary", "--format", "xml"}, env.configPath); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestExportWritesTableAndSidecar(t *testing.T) {
	env := setupCLITestEnv(t, "json", "csv")
	dir := filepath.Join(env.baseDir, "export")

	out, _, err := runCLI(t, []string{"export", dir, "--device", "P-0042-01", "--truncate"}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, "Exported 1 devices over 5 dates")

	table, err := os.ReadFile(filepath.Join(dir, exportTableFile))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(table)), "\n")
	if lines[0] != "date,P-0042-01" || lines[1] != "2021-06-01,15.0000" {
		t.Fatalf("unexpected export table:\n%s", table)
	}

	sidecar, err := os.ReadFile(filepath.Join(dir, exportSidecarFile))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var t80 map[string]*string
	if err := json.Unmarshal(sidecar, &t80); err != nil {
		t.Fatalf("decode sidecar: %v", err)
	}
	if v, ok := t80["P-0042-01"]; !ok || v != nil {
		t.Fatalf("expected null T80 for P-0042-01, got %v", t80)
	}
}

func TestRegistryImportAndPointStore(t *testing.T) {
	env := setupCLITestEnv(t, "sqlite", "badger")

	out, _, err := runCLI(t, []string{"registry", "import"}, env.configPath)
	if err != nil {
		t.Fatalf("registry import: %v", err)
	}
	requireContains(t, out, "Imported revision 1")

	out, _, err = runCLI(t, []string{"ingest"}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "from 2 files")

	out, _, err = runCLI(t, []string{"--json", "summary", "P-0042-01"}, env.configPath)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var info pv.SummaryInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if info.ValidDays != 5 || info.PeakEfficiency == nil {
		t.Fatalf("unexpected summary %+v", info)
	}

	out, _, err = runCLI(t, []string{"registry", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("registry status: %v", err)
	}
	requireContains(t, out, "Devices:  2")
}

func TestOrphanSources(t *testing.T) {
	env := setupCLITestEnv(t, "json", "csv")
	out, _, err := runCLI(t, []string{"devices", "--check"}, env.configPath)
	if err != nil {
		t.Fatalf("devices --check: %v", err)
	}
	requireContains(t, out, "No orphan point-data sources")
}

func TestCacheInvalidateCallsServer(t *testing.T) {
	env := setupCLITestEnv(t, "json", "csv")
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/cache/invalidate" {
			http.NotFound(w, r)
			return
		}
		called = true
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"invalidated":true,"cache":{"entries":0,"hits":3,"misses":2,"generation":4}}`))
	}))
	defer srv.Close()

	out, _, err := runCLI(t, []string{"cache", "invalidate", "--addr", srv.URL}, env.configPath)
	if err != nil {
		t.Fatalf("cache invalidate: %v", err)
	}
	if !called {
		t.Fatal("server was not called")
	}
	requireContains(t, out, "generation 4")
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t, "json", "csv")

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "utc_offset_hours = -7")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	t.Setenv("HOME", t.TempDir())
	seeded := filepath.Join(t.TempDir(), "site.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", seeded,
		"--site", "SNL", "--lat", "35.05", "--lon", "-106.54", "--utc-offset", "-7"}, "")
	if err != nil {
		t.Fatalf("config init with site: %v", err)
	}
	if strings.Contains(out, "were not given") {
		t.Fatalf("unexpected site reminder: %q", out)
	}
	out, _, err = runCLI(t, []string{"config", "show"}, seeded)
	if err != nil {
		t.Fatalf("config show seeded: %v", err)
	}
	requireContains(t, out, "latitude = 35.05")
	requireContains(t, out, "SNL")

	out, _, err = runCLI(t, []string{"config", "init", "--stdout", "--lat", "91"}, "")
	if err == nil {
		t.Fatalf("expected invalid latitude to be rejected, got %q", out)
	}
}

func TestWriteJSON(t *testing.T) {
	cmd := &cobra.Command{Use: "summary"}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := writeJSON(cmd, map[string]string{"batch": "P-0042<A&B>"}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	requireContains(t, out.String(), `"batch": "P-0042<A&B>"`)

	err := writeJSON(cmd, map[string]float64{"efficiency": math.NaN()})
	if err == nil || !strings.Contains(err.Error(), "summary: encode output") {
		t.Fatalf("expected encode error naming the command, got %v", err)
	}
}
