package pointdata

import (
	"sort"
	"sync"

	"pact/internal/pv"
)

// Source supplies raw rows for junction sources.
type Source interface {
	// Has reports whether rows exist for the source identifier.
	Has(sourceID string) (bool, error)
	// Rows returns every raw row of the source in ingestion order.
	Rows(sourceID string) ([]pv.PointSample, error)
	// SourceIDs lists every known source identifier.
	SourceIDs() ([]string, error)
}

// Memory is an in-process Source. Appended rows count as ingested after any
// rows already held.
type Memory struct {
	mu   sync.RWMutex
	rows map[string][]pv.PointSample
}

// NewMemory returns an empty Memory source.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string][]pv.PointSample)}
}

// Append ingests rows for a source.
func (m *Memory) Append(sourceID string, rows ...pv.PointSample) {
	sourceID = pv.CanonicalID(sourceID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[sourceID] = append(m.rows[sourceID], rows...)
}

// Has implements Source.
func (m *Memory) Has(sourceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rows[pv.CanonicalID(sourceID)]
	return ok, nil
}

// Rows implements Source.
func (m *Memory) Rows(sourceID string) ([]pv.PointSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.rows[pv.CanonicalID(sourceID)]
	out := make([]pv.PointSample, len(rows))
	copy(out, rows)
	return out, nil
}

// SourceIDs implements Source.
func (m *Memory) SourceIDs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
