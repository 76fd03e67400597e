package metadata

import (
	"errors"
	"fmt"
	"sort"

	"pact/internal/pv"
)

// SiteID is the device identifier the censored days sheet uses for
// site-wide windows.
const SiteID = "site"

// ErrNotFound marks metadata that the registry does not hold.
var ErrNotFound = errors.New("metadata not found")

// Snapshot is one immutable view of the registry.
type Snapshot struct {
	Devices map[string]pv.Device
	Modules map[string]pv.ModuleMetadata
	Site    *pv.SiteMetadata
	Version string
	Files   []string
}

// DeviceList returns the devices ordered by identifier.
func (s *Snapshot) DeviceList() []pv.Device {
	out := make([]pv.Device, 0, len(s.Devices))
	for _, d := range s.Devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Device returns the device registered under id.
func (s *Snapshot) Device(id string) (pv.Device, error) {
	d, ok := s.Devices[pv.CanonicalID(id)]
	if !ok {
		return pv.Device{}, fmt.Errorf("%w: %s", pv.ErrUnknownDevice, pv.CanonicalID(id))
	}
	return d, nil
}

// ModuleMetadata returns the windows recorded for id.
func (s *Snapshot) ModuleMetadata(id string) (pv.ModuleMetadata, error) {
	m, ok := s.Modules[pv.CanonicalID(id)]
	if !ok {
		return pv.ModuleMetadata{}, fmt.Errorf("%w: module entry for %s", ErrNotFound, pv.CanonicalID(id))
	}
	return m, nil
}

// SiteMetadata returns the site-wide metadata.
func (s *Snapshot) SiteMetadata() (pv.SiteMetadata, error) {
	if s.Site == nil {
		return pv.SiteMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, SiteMetadataFile)
	}
	return *s.Site, nil
}

// Orphans returns the raw source identifiers that are neither a registered
// device nor a junction of one.
func (s *Snapshot) Orphans(sourceIDs []string) []string {
	known := make(map[string]struct{}, len(s.Devices))
	for id, d := range s.Devices {
		known[id] = struct{}{}
		for _, j := range d.Junctions {
			known[j] = struct{}{}
		}
	}
	var orphans []string
	for _, id := range sourceIDs {
		id = pv.CanonicalID(id)
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return orphans
}

type builder struct {
	devices   map[string]pv.Device
	modules   map[string]pv.ModuleMetadata
	fromSheet map[string]bool
	site      *pv.SiteMetadata
	snow      map[pv.Date]struct{}
}

func newBuilder() *builder {
	return &builder{
		devices:   make(map[string]pv.Device),
		modules:   make(map[string]pv.ModuleMetadata),
		fromSheet: make(map[string]bool),
		snow:      make(map[pv.Date]struct{}),
	}
}

func (b *builder) addSetup(rows []setupRow) {
	for _, r := range rows {
		b.devices[r.ID] = pv.Device{
			ID:     r.ID,
			Type:   r.Type,
			Area:   r.Area,
			Start:  r.Start,
			End:    r.End,
			Active: r.Active,
		}
		b.fromSheet[r.ID] = true
	}
}

func (b *builder) addModules(entries []moduleEntry) error {
	for _, e := range entries {
		id := pv.CanonicalID(e.ModuleID)
		if id == "" {
			return errors.New("module entry without module_id")
		}
		d, ok := b.devices[id]
		if !ok {
			d = pv.Device{ID: id}
		}
		if d.Area == 0 {
			d.Area = e.ModuleArea
		}
		if d.Type == "" {
			d.Type = e.ModuleType
		}
		if e.RatedPower > 0 {
			d.RatedPower = e.RatedPower
		}
		d.Junctions = nil
		for _, j := range e.Junctions {
			if j = pv.CanonicalID(j); j != "" {
				d.Junctions = append(d.Junctions, j)
			}
		}
		if e.StartDate != "" {
			start, err := pv.ParseDate(e.StartDate)
			if err != nil {
				return fmt.Errorf("%s: start_date: %w", id, err)
			}
			d.Start = start
		}
		if e.EndDate != "" {
			end, err := pv.ParseDate(e.EndDate)
			if err != nil {
				return fmt.Errorf("%s: end_date: %w", id, err)
			}
			d.End = end
		}
		switch {
		case e.Active != nil:
			d.Active = *e.Active
		case !b.fromSheet[id]:
			d.Active = d.End.IsZero()
		}
		b.devices[id] = d

		meta := pv.ModuleMetadata{DeviceID: id}
		for _, w := range e.DaysIndoors {
			r, err := w.dateRange()
			if err != nil {
				return fmt.Errorf("%s: days_indoors: %w", id, err)
			}
			meta.Indoors = append(meta.Indoors, r)
		}
		for _, w := range e.DaysCensored {
			r, err := w.dateRange()
			if err != nil {
				return fmt.Errorf("%s: days_censored: %w", id, err)
			}
			meta.Censored = appendWindow(meta.Censored, r)
		}
		b.modules[id] = meta
	}
	return nil
}

func (b *builder) addSite(doc siteDocument) error {
	if b.site == nil {
		b.site = &pv.SiteMetadata{Location: pv.Location{
			Label:          doc.Location.Label,
			Latitude:       float64(doc.Location.Latitude),
			Longitude:      float64(doc.Location.Longitude),
			Elevation:      float64(doc.Location.Elevation),
			SurfaceTilt:    float64(doc.Location.SurfaceTilt),
			SurfaceAzimuth: float64(doc.Location.SurfaceAzimuth),
		}}
	}
	for _, v := range doc.SnowDays {
		d, err := pv.ParseDate(v)
		if err != nil {
			return fmt.Errorf("snow_days: %w", err)
		}
		b.snow[d] = struct{}{}
	}
	for _, w := range doc.SiteCensored {
		r, err := w.dateRange()
		if err != nil {
			return fmt.Errorf("site_censored: %w", err)
		}
		b.site.Censored = appendWindow(b.site.Censored, r)
	}
	return nil
}

// addCensored applies the censored days sheet. Site rows land in the site
// metadata; the quality engine only consults them on deployed days.
func (b *builder) addCensored(rows []censorRow) {
	for _, r := range rows {
		if r.ID == SiteID {
			if b.site == nil {
				b.site = &pv.SiteMetadata{}
			}
			b.site.Censored = appendWindow(b.site.Censored, r.Window)
			continue
		}
		meta, ok := b.modules[r.ID]
		if !ok {
			meta = pv.ModuleMetadata{DeviceID: r.ID}
		}
		meta.Censored = appendWindow(meta.Censored, r.Window)
		b.modules[r.ID] = meta
	}
}

func (b *builder) snapshot(version string, files []string) *Snapshot {
	if b.site != nil {
		b.site.SnowDays = b.site.SnowDays[:0]
		for d := range b.snow {
			b.site.SnowDays = append(b.site.SnowDays, d)
		}
		sort.Slice(b.site.SnowDays, func(i, j int) bool { return b.site.SnowDays[i].Before(b.site.SnowDays[j]) })
	}
	// Devices known only from the setup sheet have no windows of their own.
	for id := range b.devices {
		if _, ok := b.modules[id]; !ok && b.fromSheet[id] {
			b.modules[id] = pv.ModuleMetadata{DeviceID: id}
		}
	}
	return &Snapshot{
		Devices: b.devices,
		Modules: b.modules,
		Site:    b.site,
		Version: version,
		Files:   files,
	}
}

func appendWindow(windows []pv.DateRange, w pv.DateRange) []pv.DateRange {
	for _, existing := range windows {
		if existing == w {
			return windows
		}
	}
	return append(windows, w)
}
