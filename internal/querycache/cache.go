// Package querycache memoizes per-device analysis results.
//
// Entries are keyed by result kind, device identifier, the fingerprint of the
// analysis configuration, and the metadata snapshot version. The cache never
// notices stale inputs by itself: callers signal changed raw data or metadata
// through Invalidate, which drops every entry at once.
package querycache

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"pact/internal/logging"
)

// Key identifies a memoized result.
type Key struct {
	Kind     string
	DeviceID string
	Config   string
	Metadata string
}

// Hash folds the key into the map index.
func (k Key) Hash() uint64 {
	d := xxhash.New()
	for _, part := range []string{k.Kind, k.DeviceID, k.Config, k.Metadata} {
		_, _ = d.WriteString(strconv.Itoa(len(part)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(part)
	}
	return d.Sum64()
}

type entry struct {
	key   Key
	value any
}

// Stats reports cache activity since construction.
type Stats struct {
	Entries    int    `json:"entries"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Generation uint64 `json:"generation"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[uint64]entry
	generation uint64

	hits   atomic.Uint64
	misses atomic.Uint64

	logger *slog.Logger
}

// New returns an empty Cache.
func New(logger *slog.Logger) *Cache {
	return &Cache{
		entries: make(map[uint64]entry),
		logger:  logging.NewComponentLogger(logger, "querycache"),
	}
}

// Lookup returns the memoized value for key and the generation it was read in.
func (c *Cache) Lookup(key Key) (any, uint64, bool) {
	h := key.Hash()
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[h]
	if ok && e.key == key {
		return e.value, c.generation, true
	}
	return nil, c.generation, false
}

// Store memoizes value unless the cache was invalidated after generation.
// It returns the value that is now cached for key; when another caller won
// the race that earlier value is returned instead of value.
func (c *Cache) Store(key Key, value any, generation uint64) any {
	h := key.Hash()
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return value
	}
	if e, ok := c.entries[h]; ok && e.key == key {
		return e.value
	}
	c.entries[h] = entry{key: key, value: value}
	return value
}

// Invalidate drops every entry. Results computed before the call are never
// stored afterwards.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	dropped := len(c.entries)
	c.entries = make(map[uint64]entry)
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	c.logger.Debug("query cache invalidated",
		logging.Int("dropped", dropped),
		logging.Int("generation", int(gen)),
	)
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries:    len(c.entries),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Generation: c.generation,
	}
}

// Generation returns the current invalidation generation. A nil Cache is
// always at generation zero.
func (c *Cache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Get returns the memoized result for key, computing and storing it on a
// miss. Errors are never memoized.
func Get[T any](c *Cache, key Key, compute func() (T, error)) (T, error) {
	return GetAt(c, c.Generation(), key, compute)
}

// GetAt is Get for a caller pinned to generation. Entries are served only
// while the cache is still at that generation, and a computed value is
// stored only if no invalidation happened since. Pipelines that derive one
// result from another read the generation once and pass it to every stage.
func GetAt[T any](c *Cache, generation uint64, key Key, compute func() (T, error)) (T, error) {
	if c == nil {
		return compute()
	}
	v, current, ok := c.Lookup(key)
	if ok && current == generation {
		if typed, ok := v.(T); ok {
			c.hits.Add(1)
			return typed, nil
		}
	}
	c.misses.Add(1)

	value, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	stored := c.Store(key, value, generation)
	if typed, ok := stored.(T); ok {
		return typed, nil
	}
	return value, nil
}
