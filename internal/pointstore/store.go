package pointstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/gofrs/flock"

	"pact/internal/logging"
	"pact/internal/pv"
)

// ErrLocked is returned when another process has the store open.
var ErrLocked = errors.New("point store is in use by another process")

const (
	prefixRow    byte = 'r'
	prefixSource byte = 's'

	rowKeyLen   = 1 + 8 + 8
	valueFields = 6
	valueLen    = valueFields * 8

	memTableSize = 16 << 20
)

// Config selects where the store lives.
type Config struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in memory (tests).
	InMemory bool
	// Location is the site zone rows are returned in.
	Location *time.Location
}

// Store is a BadgerDB-backed point-data source.
type Store struct {
	db       *badger.DB
	lock     *flock.Flock
	location *time.Location
	logger   *slog.Logger
}

// Open opens or creates the store.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	logger = logging.NewComponentLogger(logger, "pointstore")
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	opts := badger.DefaultOptions(cfg.Path)
	var lock *flock.Flock
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create point store dir: %w", err)
		}
		lock = flock.New(filepath.Clean(cfg.Path) + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire point store lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrLocked, cfg.Path)
		}
	}

	opts = opts.
		WithLogger(badgerLogger{logger: logger}).
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, lock: lock, location: loc, logger: logger}, nil
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

func sourceHash(sourceID string) uint64 {
	return xxhash.Sum64String(pv.CanonicalID(sourceID))
}

func rowPrefix(sourceID string) []byte {
	prefix := make([]byte, 9)
	prefix[0] = prefixRow
	binary.BigEndian.PutUint64(prefix[1:9], sourceHash(sourceID))
	return prefix
}

func rowKey(sourceID string, ts time.Time) []byte {
	key := make([]byte, rowKeyLen)
	copy(key, rowPrefix(sourceID))
	binary.BigEndian.PutUint64(key[9:17], uint64(ts.UnixNano()))
	return key
}

func sourceKey(sourceID string) []byte {
	return append([]byte{prefixSource}, pv.CanonicalID(sourceID)...)
}

func encodeRow(s pv.PointSample) []byte {
	buf := make([]byte, valueLen)
	for i, v := range []float64{s.Power, s.Irradiance, s.TemperatureAir, s.TemperatureModule, s.Vmp, s.Imp} {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeRow(key, value []byte, loc *time.Location) (pv.PointSample, error) {
	if len(key) != rowKeyLen || len(value) != valueLen {
		return pv.PointSample{}, fmt.Errorf("corrupt row: key %d bytes, value %d bytes", len(key), len(value))
	}
	var f [valueFields]float64
	for i := range f {
		f[i] = math.Float64frombits(binary.BigEndian.Uint64(value[i*8:]))
	}
	return pv.PointSample{
		Time:              time.Unix(0, int64(binary.BigEndian.Uint64(key[9:17]))).In(loc),
		Power:             f[0],
		Irradiance:        f[1],
		TemperatureAir:    f[2],
		TemperatureModule: f[3],
		Vmp:               f[4],
		Imp:               f[5],
	}, nil
}

// Ingest writes rows for sourceID. A row whose timestamp is already stored
// replaces the stored row; within rows the last occurrence wins.
func (s *Store) Ingest(ctx context.Context, sourceID string, rows []pv.PointSample) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sourceID = pv.CanonicalID(sourceID)
	if sourceID == "" {
		return 0, errors.New("ingest: source id is required")
	}

	latest := make(map[int64]int, len(rows))
	order := make([]int64, 0, len(rows))
	for i, r := range rows {
		ns := r.Time.UnixNano()
		if _, seen := latest[ns]; !seen {
			order = append(order, ns)
		}
		latest[ns] = i
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Set(sourceKey(sourceID), nil); err != nil {
		return 0, fmt.Errorf("register source %s: %w", sourceID, err)
	}
	for i, ns := range order {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		row := rows[latest[ns]]
		if err := wb.Set(rowKey(sourceID, row.Time), encodeRow(row)); err != nil {
			return 0, fmt.Errorf("write row for %s: %w", sourceID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush rows for %s: %w", sourceID, err)
	}

	s.logger.Debug("rows ingested",
		logging.String("source_id", sourceID),
		logging.Int("rows", len(order)),
		logging.Int("duplicates", len(rows)-len(order)),
	)
	return len(order), nil
}

// Has implements pointdata.Source.
func (s *Store) Has(sourceID string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(sourceKey(sourceID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup source %s: %w", sourceID, err)
	}
	return true, nil
}

// Rows implements pointdata.Source. Rows come back in timestamp order with
// one row per timestamp.
func (s *Store) Rows(sourceID string) ([]pv.PointSample, error) {
	var rows []pv.PointSample
	prefix := rowPrefix(sourceID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = 256
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if err := item.Value(func(val []byte) error {
				row, err := decodeRow(key, val, s.location)
				if err != nil {
					return err
				}
				rows = append(rows, row)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read rows for %s: %w", pv.CanonicalID(sourceID), err)
	}
	return rows, nil
}

// SourceIDs implements pointdata.Source.
func (s *Store) SourceIDs() ([]string, error) {
	var ids []string
	prefix := []byte{prefixSource}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[1:]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return ids, nil
}

// RunGC reclaims value log space after heavy re-ingestion.
func (s *Store) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}
