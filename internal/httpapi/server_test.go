package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pact/internal/analysis"
	"pact/internal/ephemeris"
	"pact/internal/httpapi"
	"pact/internal/logging"
	"pact/internal/pointdata"
	"pact/internal/pv"
	"pact/internal/summary"
	"pact/internal/testsupport"
)

var (
	mst   = pv.FixedZone(-7)
	start = pv.MustParseDate("2021-06-01")
)

type stubRegistry struct {
	devices []pv.Device
	indoors map[string][]pv.DateRange
}

func (r *stubRegistry) Devices(context.Context) ([]pv.Device, error) { return r.devices, nil }

func (r *stubRegistry) Device(_ context.Context, id string) (pv.Device, error) {
	for _, d := range r.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return pv.Device{}, fmt.Errorf("%w: %s", pv.ErrUnknownDevice, id)
}

func (r *stubRegistry) ModuleMetadata(_ context.Context, id string) (pv.ModuleMetadata, error) {
	return pv.ModuleMetadata{DeviceID: id, Indoors: r.indoors[id]}, nil
}

func (r *stubRegistry) SiteMetadata(context.Context) (pv.SiteMetadata, error) {
	return pv.SiteMetadata{}, nil
}

func (r *stubRegistry) Version(context.Context) (string, error) { return "v1", nil }

func steady(n int, power float64) []pv.PointSample {
	profiles := make([]testsupport.DayProfile, n)
	for i := range profiles {
		profiles[i] = testsupport.FullDay(1000, power)
	}
	return testsupport.Days(start, mst, profiles...)
}

func newTestServer(t *testing.T) *httpapi.Server {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	settings, err := analysis.SettingsFromConfig(cfg)
	require.NoError(t, err)

	registry := &stubRegistry{
		devices: []pv.Device{
			{ID: "P-0001-01", Area: 1, Start: start, Active: true},
			{ID: "P-0001-02", Area: 1, Start: start, Active: true},
			{ID: "P-0002-MD", Area: 1, Start: start, Active: true, Junctions: []string{"P-0002-J1", "P-0002-J2"}},
			{ID: "P-0003-01", Area: 1, Start: start, Active: true},
		},
		indoors: map[string][]pv.DateRange{
			"P-0001-02": {{Start: start, End: start.AddDays(4)}},
		},
	}
	source := pointdata.NewMemory()
	source.Append("P-0001-01", steady(5, 150)...)
	source.Append("P-0001-02", steady(5, 150)...)
	source.Append("P-0002-J1", steady(5, 100)...)

	session, err := analysis.NewSession(settings, analysis.Deps{
		Registry:  registry,
		Source:    source,
		Ephemeris: ephemeris.Fixed{Location: mst, Sunrise: 6 * time.Hour, Sunset: 18 * time.Hour},
		Logger:    logging.NewNop(),
	})
	require.NoError(t, err)
	return httpapi.New(session, httpapi.OptionsFromConfig(cfg), logging.NewNop())
}

func do(t *testing.T, srv *httpapi.Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&out))
	return out
}

func TestDevicesOmitsIncompleteMetadevices(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/v1/devices")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	body := decode[struct {
		Devices []struct {
			ID string `json:"device_id"`
		} `json:"devices"`
	}](t, rec)
	ids := make([]string, 0, len(body.Devices))
	for _, d := range body.Devices {
		ids = append(ids, d.ID)
	}
	assert.NotContains(t, ids, "P-0002-MD")
	assert.Contains(t, ids, "P-0001-01")
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestDailyAndPointsFilters(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/v1/devices/p-0001-01/daily")
	require.Equal(t, http.StatusOK, rec.Code)
	daily := decode[httpapi.DailyResponse](t, rec)
	assert.Equal(t, "P-0001-01", daily.DeviceID)
	assert.Len(t, daily.Records, 5)

	rec = do(t, srv, http.MethodGet, "/v1/devices/P-0001-01/points?from=2021-06-02&to=2021-06-02")
	require.Equal(t, http.StatusOK, rec.Code)
	points := decode[struct {
		Samples []json.RawMessage `json:"samples"`
	}](t, rec)
	assert.Len(t, points.Samples, 12*60)

	rec = do(t, srv, http.MethodGet, "/v1/devices/P-0001-01/points?from=June")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/v1/devices/P-7777-01/t80")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/devices/P-0002-MD/daily")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "P-0002-MD", decode[httpapi.ErrorResponse](t, rec).DeviceID)

	rec = do(t, srv, http.MethodGet, "/v1/devices/P-0003-01/summary")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[httpapi.ErrorResponse](t, rec)
	assert.Equal(t, string(pv.InputRawData), body.Category)

	rec = do(t, srv, http.MethodPost, "/v1/devices")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSummaryWithoutValidDaysAnswersOK(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/v1/devices/P-0001-02/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Summary     map[string]any `json:"summary"`
		NoValidData bool           `json:"no_valid_data"`
	}](t, rec)
	assert.True(t, body.NoValidData)
}

func TestFleetAndInvalidate(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/v1/summary?active=true&batch=P-0001")
	require.Equal(t, http.StatusOK, rec.Code)
	fleet := decode[summary.Fleet](t, rec)
	require.Len(t, fleet.Rows, 2)
	assert.Equal(t, "P-0001-01", fleet.Rows[0].DeviceID)

	rec = do(t, srv, http.MethodPost, "/v1/cache/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	inv := decode[httpapi.InvalidateResponse](t, rec)
	assert.True(t, inv.Invalidated)
	assert.Equal(t, 0, inv.Cache.Entries)
	assert.Equal(t, uint64(1), inv.Cache.Generation)
}

func TestStartServesUntilContextDone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	settings, err := analysis.SettingsFromConfig(cfg)
	require.NoError(t, err)
	session, err := analysis.NewSession(settings, analysis.Deps{
		Registry: &stubRegistry{},
		Source:   pointdata.NewMemory(),
	})
	require.NoError(t, err)

	srv := httpapi.New(session, httpapi.OptionsFromConfig(cfg), logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))

	resp, err := http.Get("http://" + srv.Addr() + "/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
