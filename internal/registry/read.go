package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"pact/internal/metadata"
	"pact/internal/pv"
)

const (
	windowIndoor = "indoor"
	windowCensor = "censor"
)

const moduleColumns = "id, module_type, area, rated_power, start_date, end_date, active"

func scanDevice(scanner interface{ Scan(dest ...any) error }) (pv.Device, error) {
	var (
		id         string
		moduleType sql.NullString
		area       float64
		ratedPower float64
		startRaw   sql.NullString
		endRaw     sql.NullString
		active     int
	)
	if err := scanner.Scan(&id, &moduleType, &area, &ratedPower, &startRaw, &endRaw, &active); err != nil {
		return pv.Device{}, err
	}
	d := pv.Device{
		ID:         id,
		Type:       moduleType.String,
		Area:       area,
		RatedPower: ratedPower,
		Active:     active != 0,
	}
	var err error
	if d.Start, err = parseNullableDate(startRaw); err != nil {
		return pv.Device{}, fmt.Errorf("module %s start_date: %w", id, err)
	}
	if d.End, err = parseNullableDate(endRaw); err != nil {
		return pv.Device{}, fmt.Errorf("module %s end_date: %w", id, err)
	}
	return d, nil
}

func parseNullableDate(raw sql.NullString) (pv.Date, error) {
	if !raw.Valid || raw.String == "" {
		return pv.Date{}, nil
	}
	return pv.ParseDate(raw.String)
}

func (s *Store) junctions(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT module_id, junction_id FROM junctions ORDER BY module_id, position")
	if err != nil {
		return nil, fmt.Errorf("query junctions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var moduleID, junctionID string
		if err := rows.Scan(&moduleID, &junctionID); err != nil {
			return nil, fmt.Errorf("scan junction: %w", err)
		}
		out[moduleID] = append(out[moduleID], junctionID)
	}
	return out, rows.Err()
}

// Devices lists the registered devices ordered by identifier.
func (s *Store) Devices(ctx context.Context) ([]pv.Device, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+moduleColumns+" FROM modules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	var devices []pv.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}

	junctions, err := s.junctions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		devices[i].Junctions = junctions[devices[i].ID]
	}
	return devices, nil
}

// Device returns one registered device.
func (s *Store) Device(ctx context.Context, id string) (pv.Device, error) {
	ctx = ensureContext(ctx)
	id = pv.CanonicalID(id)
	row := s.db.QueryRowContext(ctx, "SELECT "+moduleColumns+" FROM modules WHERE id = ?", id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pv.Device{}, fmt.Errorf("%w: %s", pv.ErrUnknownDevice, id)
	}
	if err != nil {
		return pv.Device{}, fmt.Errorf("get module: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT junction_id FROM junctions WHERE module_id = ? ORDER BY position", id)
	if err != nil {
		return pv.Device{}, fmt.Errorf("query junctions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var j string
		if err := rows.Scan(&j); err != nil {
			return pv.Device{}, fmt.Errorf("scan junction: %w", err)
		}
		d.Junctions = append(d.Junctions, j)
	}
	return d, rows.Err()
}

func scanWindows(rows *sql.Rows) ([]pv.DateRange, error) {
	defer rows.Close()
	var out []pv.DateRange
	for rows.Next() {
		var (
			startRaw string
			endRaw   sql.NullString
			comment  sql.NullString
		)
		if err := rows.Scan(&startRaw, &endRaw, &comment); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		start, err := pv.ParseDate(startRaw)
		if err != nil {
			return nil, fmt.Errorf("window start: %w", err)
		}
		end, err := parseNullableDate(endRaw)
		if err != nil {
			return nil, fmt.Errorf("window end: %w", err)
		}
		out = append(out, pv.DateRange{Start: start, End: end, Comment: comment.String})
	}
	return out, rows.Err()
}

// ModuleMetadata returns the indoor and censor windows of one device.
func (s *Store) ModuleMetadata(ctx context.Context, id string) (pv.ModuleMetadata, error) {
	ctx = ensureContext(ctx)
	id = pv.CanonicalID(id)

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM modules WHERE id = ?", id).Scan(&exists); err != nil {
		return pv.ModuleMetadata{}, fmt.Errorf("check module: %w", err)
	}
	if exists == 0 {
		return pv.ModuleMetadata{}, fmt.Errorf("%w: module entry for %s", metadata.ErrNotFound, id)
	}

	meta := pv.ModuleMetadata{DeviceID: id}
	for _, kind := range []string{windowIndoor, windowCensor} {
		rows, err := s.db.QueryContext(ctx,
			"SELECT start_date, end_date, comment FROM module_windows WHERE module_id = ? AND kind = ? ORDER BY id",
			id, kind,
		)
		if err != nil {
			return pv.ModuleMetadata{}, fmt.Errorf("query %s windows: %w", kind, err)
		}
		windows, err := scanWindows(rows)
		if err != nil {
			return pv.ModuleMetadata{}, err
		}
		if kind == windowIndoor {
			meta.Indoors = windows
		} else {
			meta.Censored = windows
		}
	}
	return meta, nil
}

// SiteMetadata returns the site location, censor windows, and snow days.
func (s *Store) SiteMetadata(ctx context.Context) (pv.SiteMetadata, error) {
	ctx = ensureContext(ctx)
	var (
		site  pv.SiteMetadata
		label sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT label, latitude, longitude, elevation, surface_tilt, surface_azimuth FROM site WHERE id = 1",
	).Scan(&label, &site.Location.Latitude, &site.Location.Longitude, &site.Location.Elevation,
		&site.Location.SurfaceTilt, &site.Location.SurfaceAzimuth)
	if errors.Is(err, sql.ErrNoRows) {
		return pv.SiteMetadata{}, fmt.Errorf("%w: site", metadata.ErrNotFound)
	}
	if err != nil {
		return pv.SiteMetadata{}, fmt.Errorf("get site: %w", err)
	}
	site.Location.Label = label.String

	rows, err := s.db.QueryContext(ctx, "SELECT start_date, end_date, comment FROM site_windows ORDER BY id")
	if err != nil {
		return pv.SiteMetadata{}, fmt.Errorf("query site windows: %w", err)
	}
	if site.Censored, err = scanWindows(rows); err != nil {
		return pv.SiteMetadata{}, err
	}

	snowRows, err := s.db.QueryContext(ctx, "SELECT day FROM snow_days ORDER BY day")
	if err != nil {
		return pv.SiteMetadata{}, fmt.Errorf("query snow days: %w", err)
	}
	defer snowRows.Close()
	for snowRows.Next() {
		var raw string
		if err := snowRows.Scan(&raw); err != nil {
			return pv.SiteMetadata{}, fmt.Errorf("scan snow day: %w", err)
		}
		d, err := pv.ParseDate(raw)
		if err != nil {
			return pv.SiteMetadata{}, fmt.Errorf("snow day: %w", err)
		}
		site.SnowDays = append(site.SnowDays, d)
	}
	return site, snowRows.Err()
}

// Revision returns the latest import revision, zero before the first import.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var rev sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM revisions").Scan(&rev); err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return rev.Int64, nil
}

// Version identifies the registry contents for cache keys.
func (s *Store) Version(ctx context.Context) (string, error) {
	rev, err := s.Revision(ctx)
	if err != nil {
		return "", err
	}
	return "rev-" + strconv.FormatInt(rev, 10), nil
}
