// Package exceptions loads per-device overrides for reporting.
//
// The list is a small YAML document maintained by hand:
//
//	devices:
//	  - id: P-0042
//	    exclude: true
//	    reason: cracked glass
//	  - id: P-0107
//	    force_t80: true
//	    t80_date: 2021-06-30
package exceptions

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"pact/internal/pv"
)

// Entry holds the overrides for one device.
type Entry struct {
	DeviceID string
	Exclude  bool
	ForceT80 bool
	T80Date  *pv.Date
	Reason   string
}

type fileEntry struct {
	ID       string `yaml:"id"`
	Exclude  bool   `yaml:"exclude"`
	ForceT80 bool   `yaml:"force_t80"`
	T80Date  string `yaml:"t80_date"`
	Reason   string `yaml:"reason"`
}

type fileDocument struct {
	Devices []fileEntry `yaml:"devices"`
}

// List is an immutable set of device overrides. The zero value and a nil
// *List both have no entries.
type List struct {
	entries map[string]Entry
}

// Empty returns a list without overrides.
func Empty() *List {
	return &List{entries: map[string]Entry{}}
}

// New builds a list from entries. Later entries for the same device replace
// earlier ones.
func New(entries ...Entry) *List {
	l := Empty()
	for _, e := range entries {
		e.DeviceID = pv.CanonicalID(e.DeviceID)
		if e.T80Date != nil {
			e.ForceT80 = true
		}
		l.entries[e.DeviceID] = e
	}
	return l
}

// Load reads path. A missing file yields an empty list.
func Load(path string) (*List, error) {
	if path == "" {
		return Empty(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("read exceptions %q: %w", path, err)
	}
	list, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse exceptions %q: %w", path, err)
	}
	return list, nil
}

// Parse decodes an exceptions document.
func Parse(r io.Reader) (*List, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Empty(), nil
		}
		return nil, err
	}
	entries := make([]Entry, 0, len(doc.Devices))
	for i, fe := range doc.Devices {
		if pv.CanonicalID(fe.ID) == "" {
			return nil, fmt.Errorf("devices[%d]: id is required", i)
		}
		e := Entry{DeviceID: fe.ID, Exclude: fe.Exclude, ForceT80: fe.ForceT80, Reason: fe.Reason}
		if fe.T80Date != "" {
			d, err := pv.ParseDate(fe.T80Date)
			if err != nil {
				return nil, fmt.Errorf("devices[%d] (%s): t80_date: %w", i, fe.ID, err)
			}
			e.T80Date = &d
		}
		entries = append(entries, e)
	}
	return New(entries...), nil
}

// Lookup returns the entry for id.
func (l *List) Lookup(id string) (Entry, bool) {
	if l == nil {
		return Entry{}, false
	}
	e, ok := l.entries[pv.CanonicalID(id)]
	return e, ok
}

// Excluded reports whether id is kept out of summary aggregates.
func (l *List) Excluded(id string) bool {
	e, ok := l.Lookup(id)
	return ok && e.Exclude
}

// ForceT80 reports whether T80 is forced for id and the override date, if any.
func (l *List) ForceT80(id string) (*pv.Date, bool) {
	e, ok := l.Lookup(id)
	if !ok || !e.ForceT80 {
		return nil, false
	}
	return e.T80Date, true
}

// Entries returns all overrides ordered by device identifier.
func (l *List) Entries() []Entry {
	if l == nil {
		return nil
	}
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Len returns the number of devices with overrides.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}
