package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"pact/internal/logging"
	"pact/internal/pv"
	"pact/internal/querycache"
	"pact/internal/summary"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error    string `json:"error"`
	DeviceID string `json:"device_id,omitempty"`
	Category string `json:"category,omitempty"`
}

// HealthResponse answers /v1/health.
type HealthResponse struct {
	Status    string           `json:"status"`
	SessionID string           `json:"session_id"`
	Cache     querycache.Stats `json:"cache"`
}

// DevicesResponse lists resolvable devices.
type DevicesResponse struct {
	Devices []pv.Device `json:"devices"`
}

// PointsResponse carries a device's sample stream.
type PointsResponse struct {
	DeviceID string           `json:"device_id"`
	Samples  []pv.PointSample `json:"samples"`
}

// DailyResponse carries a device's daily series.
type DailyResponse struct {
	DeviceID string           `json:"device_id"`
	Records  []pv.DailyRecord `json:"records"`
}

// T80Response carries the detector verdict and the effective result.
type T80Response struct {
	DeviceID string       `json:"device_id"`
	Result   pv.T80Result `json:"result"`
	Detected pv.T80Result `json:"detected"`
}

// SummaryResponse carries a device rollup.
type SummaryResponse struct {
	Summary     pv.SummaryInfo `json:"summary"`
	NoValidData bool           `json:"no_valid_data,omitempty"`
}

// InvalidateResponse answers a cache invalidation.
type InvalidateResponse struct {
	Invalidated bool             `json:"invalidated"`
	Cache       querycache.Stats `json:"cache"`
	Warning     string           `json:"warning,omitempty"`
}

// statusFor maps analysis errors onto HTTP statuses.
func statusFor(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}
	var incomplete *pv.IncompleteMetadeviceError
	var inputErr *pv.InputError
	switch {
	case errors.Is(err, pv.ErrUnknownDevice):
		return http.StatusNotFound, resp
	case errors.As(err, &incomplete):
		resp.DeviceID = incomplete.DeviceID
		return http.StatusNotFound, resp
	case errors.As(err, &inputErr):
		resp.DeviceID = inputErr.DeviceID
		resp.Category = string(inputErr.Category)
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, pv.ErrInvalidConfig):
		return http.StatusBadRequest, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeJSON(w, r, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		SessionID: s.session.ID(),
		Cache:     s.session.CacheStats(),
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.session.Devices(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if devices == nil {
		devices = []pv.Device{}
	}
	s.writeJSON(w, r, http.StatusOK, DevicesResponse{Devices: devices})
}

func parseDateParam(r *http.Request, name string) (pv.Date, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return pv.Date{}, nil
	}
	return pv.ParseDate(value)
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}

	points, err := s.session.Points(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	window := pv.DateRange{Start: from, End: to}
	loc := s.session.Settings().Location()
	samples := make([]pv.PointSample, 0, len(points.Samples))
	for _, sample := range points.Samples {
		if window.Contains(pv.DateOf(sample.Time, loc)) {
			samples = append(samples, sample)
		}
	}
	s.writeJSON(w, r, http.StatusOK, PointsResponse{DeviceID: points.Device.ID, Samples: samples})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	series, err := s.session.Daily(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	validOnly, _ := strconv.ParseBool(r.URL.Query().Get("valid"))
	records := make([]pv.DailyRecord, 0, len(series.Records))
	for _, rec := range series.Records {
		if validOnly && !rec.Valid() {
			continue
		}
		records = append(records, rec)
	}
	s.writeJSON(w, r, http.StatusOK, DailyResponse{DeviceID: series.Device.ID, Records: records})
}

func (s *Server) handleT80(w http.ResponseWriter, r *http.Request) {
	verdict, err := s.session.T80(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, T80Response{
		DeviceID: verdict.Device.ID,
		Result:   verdict.Result,
		Detected: verdict.Detected,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.session.Summary(r.Context(), mux.Vars(r)["id"])
	var noData *pv.NoValidDataError
	if err != nil && !errors.As(err, &noData) {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, SummaryResponse{Summary: sum.Info, NoValidData: noData != nil})
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	active, _ := strconv.ParseBool(query.Get("active"))
	includeExcluded, _ := strconv.ParseBool(query.Get("include_excluded"))
	filter := summary.Filter{
		ActiveOnly:      active,
		Batch:           strings.TrimSpace(query.Get("batch")),
		IncludeExcluded: includeExcluded,
	}
	fleet, err := s.session.FleetSummary(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if fleet.Rows == nil {
		fleet.Rows = []summary.Row{}
	}
	s.writeJSON(w, r, http.StatusOK, fleet)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	resp := InvalidateResponse{Invalidated: true}
	if err := s.session.Invalidate(r.Context()); err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "collaborator reload failed", "cache_invalidate_reload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the metadata or exceptions file and invalidate again"),
			logging.String(logging.FieldImpact, "previous metadata stays in effect"),
		)
		resp.Warning = err.Error()
	}
	resp.Cache = s.session.CacheStats()
	s.writeJSON(w, r, http.StatusOK, resp)
}
