package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"pact/internal/daily"
	"pact/internal/ephemeris"
	"pact/internal/exceptions"
	"pact/internal/logging"
	"pact/internal/metadata"
	"pact/internal/pointdata"
	"pact/internal/pv"
	"pact/internal/quality"
	"pact/internal/querycache"
	"pact/internal/summary"
	"pact/internal/t80"
)

// Registry supplies devices and their reference metadata.
type Registry interface {
	Devices(ctx context.Context) ([]pv.Device, error)
	Device(ctx context.Context, id string) (pv.Device, error)
	ModuleMetadata(ctx context.Context, id string) (pv.ModuleMetadata, error)
	SiteMetadata(ctx context.Context) (pv.SiteMetadata, error)
	// Version changes whenever the metadata content changes.
	Version(ctx context.Context) (string, error)
}

type reloader interface {
	Reload(ctx context.Context) error
}

type resetter interface {
	Reset()
}

// Deps are the collaborators of a session.
type Deps struct {
	Registry Registry
	Source   pointdata.Source
	// Ephemeris defaults to the astronomical sun times of the settings'
	// coordinates.
	Ephemeris ephemeris.Ephemeris
	// Exceptions is used as-is. When ExceptionsFile is set it is loaded
	// instead and reloaded on Invalidate.
	Exceptions     *exceptions.List
	ExceptionsFile string
	Logger         *slog.Logger
}

// Session answers device queries for one settings snapshot.
type Session struct {
	id          string
	settings    Settings
	fingerprint string

	registry       Registry
	source         pointdata.Source
	exceptionsFile string
	exceptions     atomic.Pointer[exceptions.List]

	points *pointdata.Aggregator
	daily  *daily.Aggregator
	cache  *querycache.Cache
	logger *slog.Logger
}

// NewSession validates settings and wires the pipeline.
func NewSession(settings Settings, deps Deps) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Registry == nil || deps.Source == nil {
		return nil, errors.New("analysis session requires a registry and a point source")
	}

	id := uuid.NewString()
	logger := logging.NewComponentLogger(deps.Logger, "analysis").With(logging.String(logging.FieldSessionID, id))
	loc := settings.Location()

	eph := deps.Ephemeris
	if eph == nil {
		eph = ephemeris.NewSolar(settings.Latitude, settings.Longitude)
	}
	engine := quality.NewEngine(quality.Options{
		MinUpFraction:  settings.MinUpFraction,
		MinInsolation:  settings.MinInsolation,
		SampleInterval: settings.SampleInterval,
		Location:       loc,
	}, eph, logger)

	s := &Session{
		id:             id,
		settings:       settings,
		fingerprint:    settings.Fingerprint(),
		registry:       deps.Registry,
		source:         deps.Source,
		exceptionsFile: deps.ExceptionsFile,
		points:         pointdata.NewAggregator(deps.Source, loc, logger),
		daily: daily.NewAggregator(daily.Options{
			MinIrradiance:  settings.MinIrradiance,
			SampleInterval: settings.SampleInterval,
			Location:       loc,
		}, engine, logger),
		cache:  querycache.New(logger),
		logger: logger,
	}

	list := deps.Exceptions
	if deps.ExceptionsFile != "" {
		loaded, err := exceptions.Load(deps.ExceptionsFile)
		if err != nil {
			return nil, err
		}
		list = loaded
	}
	if list == nil {
		list = exceptions.Empty()
	}
	s.exceptions.Store(list)

	logger.Debug("analysis session created",
		logging.String("settings", s.fingerprint),
		logging.String("t80_reference", string(settings.T80.Policy)),
		logging.Int("exceptions", list.Len()),
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Settings returns the session's settings.
func (s *Session) Settings() Settings { return s.settings }

// CacheStats reports query cache activity.
func (s *Session) CacheStats() querycache.Stats { return s.cache.Stats() }

// Exceptions returns the exception list in effect.
func (s *Session) Exceptions() *exceptions.List { return s.exceptions.Load() }

// Invalidate reloads collaborators that support it and drops every cached
// result. Results computed before the call are never served after it.
func (s *Session) Invalidate(ctx context.Context) error {
	var errs []error
	if r, ok := s.registry.(reloader); ok {
		if err := r.Reload(ctx); err != nil {
			errs = append(errs, fmt.Errorf("reload registry: %w", err))
		}
	}
	if r, ok := s.source.(resetter); ok {
		r.Reset()
	}
	if s.exceptionsFile != "" {
		list, err := exceptions.Load(s.exceptionsFile)
		if err != nil {
			errs = append(errs, err)
		} else {
			s.exceptions.Store(list)
		}
	}
	s.cache.Invalidate()
	s.logger.Info("analysis cache invalidated", logging.Int("reload_errors", len(errs)))
	return errors.Join(errs...)
}

func (s *Session) key(ctx context.Context, kind, deviceID string) (querycache.Key, error) {
	version, err := s.registry.Version(ctx)
	if err != nil {
		return querycache.Key{}, fmt.Errorf("metadata version: %w", err)
	}
	return querycache.Key{Kind: kind, DeviceID: deviceID, Config: s.fingerprint, Metadata: version}, nil
}

// Device resolves id. Unknown identifiers wrap pv.ErrUnknownDevice; a
// metadevice with missing junctions yields an IncompleteMetadeviceError.
func (s *Session) Device(ctx context.Context, id string) (pv.Device, error) {
	id = pv.CanonicalID(id)
	device, err := s.registry.Device(ctx, id)
	if err != nil {
		if errors.Is(err, pv.ErrUnknownDevice) {
			return pv.Device{}, err
		}
		return pv.Device{}, pv.NewInputError(id, pv.InputDevice, err)
	}
	if device.IsMetadevice() {
		if err := s.points.Resolve(device); err != nil {
			return pv.Device{}, err
		}
	}
	return device, nil
}

// Devices lists the resolvable devices. Metadevices with missing junctions
// are left out.
func (s *Session) Devices(ctx context.Context) ([]pv.Device, error) {
	all, err := s.registry.Devices(ctx)
	if err != nil {
		return nil, pv.NewInputError("", pv.InputDevice, err)
	}
	out := make([]pv.Device, 0, len(all))
	for _, d := range all {
		if d.IsMetadevice() {
			err := s.points.Resolve(d)
			var incomplete *pv.IncompleteMetadeviceError
			if errors.As(err, &incomplete) {
				logging.WarnWithContext(s.logger, "skipping incomplete metadevice", "metadevice_incomplete",
					logging.DeviceID(d.ID),
					logging.Any("missing", incomplete.Missing),
					logging.String(logging.FieldErrorHint, "export point data for every junction"),
					logging.String(logging.FieldImpact, "device omitted from listings and fleet summary"),
				)
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// queryAttempts bounds how often a query restarts when an invalidation lands
// while it runs.
const queryAttempts = 3

// pinned runs query against a single cache generation. When the cache was
// invalidated while the query ran, its stages may have mixed inputs from
// both sides of the barrier, so the query is repeated against the new
// generation. Nothing computed under a stale generation is ever stored.
func pinned[T any](s *Session, query func(generation uint64) (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		generation := s.cache.Generation()
		value, err := query(generation)
		if err != nil || attempt == queryAttempts || s.cache.Generation() == generation {
			return value, err
		}
		s.logger.Debug("query restarted after cache invalidation", logging.Int("attempt", attempt))
	}
}

// Points is a device's fused sample stream.
type Points struct {
	Device  pv.Device
	Samples []pv.PointSample
}

// Points returns the time-sorted sample stream of id.
func (s *Session) Points(ctx context.Context, id string) (*Points, error) {
	return pinned(s, func(generation uint64) (*Points, error) {
		return s.pointsAt(ctx, generation, id)
	})
}

func (s *Session) pointsAt(ctx context.Context, generation uint64, id string) (*Points, error) {
	device, err := s.Device(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := s.key(ctx, "points", device.ID)
	if err != nil {
		return nil, err
	}
	return querycache.GetAt(s.cache, generation, key, func() (*Points, error) {
		samples, err := s.points.Points(device)
		if err != nil {
			return nil, err
		}
		return &Points{Device: device, Samples: samples}, nil
	})
}

// Daily is a device's gap-free daily series.
type Daily struct {
	Device  pv.Device
	Records []pv.DailyRecord
}

// Daily returns the flagged daily series of id.
func (s *Session) Daily(ctx context.Context, id string) (*Daily, error) {
	return pinned(s, func(generation uint64) (*Daily, error) {
		return s.dailyAt(ctx, generation, id)
	})
}

func (s *Session) dailyAt(ctx context.Context, generation uint64, id string) (*Daily, error) {
	points, err := s.pointsAt(ctx, generation, id)
	if err != nil {
		return nil, err
	}
	device := points.Device
	key, err := s.key(ctx, "daily", device.ID)
	if err != nil {
		return nil, err
	}
	return querycache.GetAt(s.cache, generation, key, func() (*Daily, error) {
		module, err := s.registry.ModuleMetadata(ctx, device.ID)
		if err != nil {
			return nil, metadataError(device.ID, pv.InputModuleMetadata, err)
		}
		site, err := s.registry.SiteMetadata(ctx)
		if err != nil {
			return nil, metadataError(device.ID, pv.InputSiteMetadata, err)
		}
		records, err := s.daily.Series(device, points.Samples, module, site)
		if err != nil {
			return nil, err
		}
		return &Daily{Device: device, Records: records}, nil
	})
}

func metadataError(deviceID string, category pv.InputCategory, err error) error {
	var inputErr *pv.InputError
	if errors.As(err, &inputErr) {
		return err
	}
	return pv.NewInputError(deviceID, category, err)
}

// T80 is the degradation verdict of one device.
type T80 struct {
	Device pv.Device
	// Detected is the detector's own verdict; Result includes any
	// administrative override.
	Detected pv.T80Result
	Result   pv.T80Result
	// Series is the daily series the verdict was computed from.
	Series *Daily
}

// T80 returns the T80 verdict of id, applying force-T80 directives.
func (s *Session) T80(ctx context.Context, id string) (*T80, error) {
	return pinned(s, func(generation uint64) (*T80, error) {
		return s.t80At(ctx, generation, id)
	})
}

func (s *Session) t80At(ctx context.Context, generation uint64, id string) (*T80, error) {
	series, err := s.dailyAt(ctx, generation, id)
	if err != nil {
		return nil, err
	}
	key, err := s.key(ctx, "t80", series.Device.ID)
	if err != nil {
		return nil, err
	}
	return querycache.GetAt(s.cache, generation, key, func() (*T80, error) {
		detected := t80.Detect(series.Records, s.settings.T80)
		result := detected
		if date, forced := s.Exceptions().ForceT80(series.Device.ID); forced {
			if date != nil && date.Before(series.Device.Start) {
				logging.WarnWithContext(s.logger, "forced t80 date precedes deployment", "t80_force_date_clamped",
					logging.DeviceID(series.Device.ID),
					logging.String("t80_date", date.String()),
					logging.String("start_date", series.Device.Start.String()),
					logging.String(logging.FieldErrorHint, "fix t80_date in the exceptions file"),
					logging.String(logging.FieldImpact, "t80 declared on the deployment start date"),
				)
			}
			result = t80.Force(detected, series.Records, series.Device.Start, date)
			s.logger.Debug("t80 forced by exception list",
				logging.DeviceID(series.Device.ID),
				logging.String("date", result.Date.String()),
				logging.Bool("detected", detected.Declared),
			)
		}
		return &T80{Device: series.Device, Detected: detected, Result: result, Series: series}, nil
	})
}

// Summary is the device-level rollup.
type Summary struct {
	Device pv.Device
	Info   pv.SummaryInfo
	T80    pv.T80Result

	noData error
}

// Summary returns the rollup of id. A device without valid days returns the
// summary with absent fields together with a *pv.NoValidDataError.
func (s *Session) Summary(ctx context.Context, id string) (*Summary, error) {
	sum, err := pinned(s, func(generation uint64) (*Summary, error) {
		return s.summaryAt(ctx, generation, id)
	})
	if err != nil {
		return nil, err
	}
	return sum, sum.noData
}

func (s *Session) summaryAt(ctx context.Context, generation uint64, id string) (*Summary, error) {
	verdict, err := s.t80At(ctx, generation, id)
	if err != nil {
		return nil, err
	}
	key, err := s.key(ctx, "summary", verdict.Device.ID)
	if err != nil {
		return nil, err
	}
	return querycache.GetAt(s.cache, generation, key, func() (*Summary, error) {
		info, noData := summary.Compute(verdict.Device, verdict.Series.Records, verdict.Result)
		var target *pv.NoValidDataError
		if noData != nil && !errors.As(noData, &target) {
			return nil, noData
		}
		info.Excluded = s.Exceptions().Excluded(verdict.Device.ID)
		return &Summary{Device: verdict.Device, Info: info, T80: verdict.Result, noData: noData}, nil
	})
}

// FleetSummary summarises every resolvable device. Devices whose inputs
// are missing are listed with absent fields.
func (s *Session) FleetSummary(ctx context.Context, filter summary.Filter) (summary.Fleet, error) {
	devices, err := s.Devices(ctx)
	if err != nil {
		return summary.Fleet{}, err
	}
	entries := make([]summary.Entry, 0, len(devices))
	for _, d := range devices {
		if err := ctx.Err(); err != nil {
			return summary.Fleet{}, err
		}
		if filter.ActiveOnly && !d.Active {
			continue
		}
		if filter.Batch != "" && pv.Batch(d.ID) != pv.Batch(filter.Batch) {
			continue
		}
		sum, err := s.Summary(ctx, d.ID)
		var noData *pv.NoValidDataError
		var inputErr *pv.InputError
		switch {
		case err == nil, errors.As(err, &noData):
			entries = append(entries, summary.Entry{Device: d, Summary: sum.Info})
		case errors.As(err, &inputErr):
			logging.WarnWithContext(s.logger, "device inputs unavailable", "summary_input_missing",
				logging.DeviceID(d.ID),
				logging.String("category", string(inputErr.Category)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check point-data exports and metadata for the device"),
			)
			entries = append(entries, summary.Entry{Device: d, Summary: pv.SummaryInfo{
				DeviceID: d.ID,
				Start:    d.Start,
				End:      d.End,
				Excluded: s.Exceptions().Excluded(d.ID),
			}})
		default:
			return summary.Fleet{}, err
		}
	}
	return summary.BuildFleet(entries, filter), nil
}

// Orphans lists raw sources that are neither a registered device nor one of
// its junctions.
func (s *Session) Orphans(ctx context.Context) ([]string, error) {
	ids, err := s.source.SourceIDs()
	if err != nil {
		return nil, pv.NewInputError("", pv.InputRawData, err)
	}
	devices, err := s.registry.Devices(ctx)
	if err != nil {
		return nil, pv.NewInputError("", pv.InputDevice, err)
	}
	snap := &metadata.Snapshot{Devices: make(map[string]pv.Device, len(devices))}
	for _, d := range devices {
		snap.Devices[d.ID] = d
	}
	return snap.Orphans(ids), nil
}
