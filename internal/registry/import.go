package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pact/internal/metadata"
	"pact/internal/pv"
)

// ErrImportInProgress is returned when another process holds the import
// lock.
var ErrImportInProgress = errors.New("registry import already in progress")

// ImportResult summarises one Import.
type ImportResult struct {
	Revision int64 `json:"revision"`
	Devices  int   `json:"devices"`
	Windows  int   `json:"windows"`
	SnowDays int   `json:"snow_days"`
	// Skipped lists module metadata entries without a registered device.
	Skipped []string `json:"skipped,omitempty"`
}

// Import replaces the registry contents with snap.
func (s *Store) Import(ctx context.Context, snap *metadata.Snapshot, source string) (ImportResult, error) {
	ctx = ensureContext(ctx)
	if snap == nil {
		return ImportResult{}, errors.New("import: snapshot is nil")
	}

	locked, err := s.lock.TryLock()
	if err != nil {
		return ImportResult{}, fmt.Errorf("acquire import lock: %w", err)
	}
	if !locked {
		return ImportResult{}, ErrImportInProgress
	}
	defer func() { _ = s.lock.Unlock() }()

	var result ImportResult
	err = retryOnBusy(ctx, func() error {
		var txErr error
		result, txErr = s.importTx(ctx, snap, source)
		return txErr
	})
	if err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

func (s *Store) importTx(ctx context.Context, snap *metadata.Snapshot, source string) (ImportResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"junctions", "module_windows", "modules", "site_windows", "snow_days", "site"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return ImportResult{}, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	var result ImportResult
	for _, d := range snap.DeviceList() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO modules (id, module_type, area, rated_power, start_date, end_date, active)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, nullableString(d.Type), d.Area, d.RatedPower,
			nullableString(d.Start.String()), nullableString(d.End.String()), boolToInt(d.Active),
		); err != nil {
			return ImportResult{}, fmt.Errorf("insert module %s: %w", d.ID, err)
		}
		for i, j := range d.Junctions {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO junctions (module_id, position, junction_id) VALUES (?, ?, ?)",
				d.ID, i, j,
			); err != nil {
				return ImportResult{}, fmt.Errorf("insert junction %s of %s: %w", j, d.ID, err)
			}
		}
		result.Devices++
	}

	for _, id := range sortedKeys(snap.Modules) {
		meta := snap.Modules[id]
		if _, ok := snap.Devices[id]; !ok {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		groups := []struct {
			kind    string
			windows []pv.DateRange
		}{{windowIndoor, meta.Indoors}, {windowCensor, meta.Censored}}
		for _, g := range groups {
			kind := g.kind
			for _, w := range g.windows {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO module_windows (module_id, kind, start_date, end_date, comment)
                     VALUES (?, ?, ?, ?, ?)`,
					id, kind, w.Start.String(), nullableString(w.End.String()), nullableString(w.Comment),
				); err != nil {
					return ImportResult{}, fmt.Errorf("insert %s window for %s: %w", kind, id, err)
				}
				result.Windows++
			}
		}
	}

	if site := snap.Site; site != nil {
		loc := site.Location
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO site (id, label, latitude, longitude, elevation, surface_tilt, surface_azimuth)
             VALUES (1, ?, ?, ?, ?, ?, ?)`,
			nullableString(loc.Label), loc.Latitude, loc.Longitude, loc.Elevation, loc.SurfaceTilt, loc.SurfaceAzimuth,
		); err != nil {
			return ImportResult{}, fmt.Errorf("insert site: %w", err)
		}
		for _, w := range site.Censored {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO site_windows (start_date, end_date, comment) VALUES (?, ?, ?)",
				w.Start.String(), nullableString(w.End.String()), nullableString(w.Comment),
			); err != nil {
				return ImportResult{}, fmt.Errorf("insert site window: %w", err)
			}
			result.Windows++
		}
		for _, d := range site.SnowDays {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO snow_days (day) VALUES (?)", d.String()); err != nil {
				return ImportResult{}, fmt.Errorf("insert snow day %s: %w", d, err)
			}
			result.SnowDays++
		}
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO revisions (source, source_version, devices, imported_at) VALUES (?, ?, ?, ?)",
		nullableString(source), nullableString(snap.Version), result.Devices, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return ImportResult{}, fmt.Errorf("record revision: %w", err)
	}
	if result.Revision, err = res.LastInsertId(); err != nil {
		return ImportResult{}, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ImportResult{}, fmt.Errorf("commit import: %w", err)
	}
	return result, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
