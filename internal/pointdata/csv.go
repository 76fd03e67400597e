package pointdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"pact/internal/logging"
	"pact/internal/pv"
)

// Column names of the point-data export.
const (
	ColumnTime              = "date_time"
	ColumnIrradiance        = "poa_global"
	ColumnTemperatureAir    = "temperature_air"
	ColumnTemperatureModule = "temperature_module"
	ColumnVmp               = "vmp"
	ColumnImp               = "imp"
	ColumnPower             = "power"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseResult tallies a CSV read. Rows that fail to parse are reported in
// Errors and left out of the returned samples.
type ParseResult struct {
	Total  int
	Failed int
	Errors []string
}

// ParseCSV reads a point-data CSV. Timestamps without an offset are taken
// in loc. Power is vmp×imp unless a power column is present. Empty or "nan"
// cells become NaN.
func ParseCSV(r io.Reader, loc *time.Location) ([]pv.PointSample, ParseResult, error) {
	if loc == nil {
		loc = time.UTC
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var result ParseResult

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, result, nil
		}
		return nil, result, fmt.Errorf("read csv header: %w", err)
	}

	headerMap := make(map[string]int, len(headers))
	for i, h := range headers {
		headerMap[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if err := validateHeaders(headerMap); err != nil {
		return nil, result, err
	}

	var samples []pv.PointSample
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		result.Total++
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", result.Total+1, err))
			continue
		}
		sample, err := parseRecord(record, headerMap, loc)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", result.Total+1, err))
			continue
		}
		samples = append(samples, sample)
	}
	return samples, result, nil
}

func validateHeaders(headerMap map[string]int) error {
	for _, req := range []string{ColumnTime, ColumnIrradiance} {
		if _, ok := headerMap[req]; !ok {
			return fmt.Errorf("missing required csv header: %s", req)
		}
	}
	if _, ok := headerMap[ColumnPower]; ok {
		return nil
	}
	for _, req := range []string{ColumnVmp, ColumnImp} {
		if _, ok := headerMap[req]; !ok {
			return fmt.Errorf("missing required csv header: %s (or %s)", req, ColumnPower)
		}
	}
	return nil
}

func parseRecord(record []string, headerMap map[string]int, loc *time.Location) (pv.PointSample, error) {
	get := func(col string) (string, bool) {
		if idx, ok := headerMap[col]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx]), true
		}
		return "", false
	}

	raw, _ := get(ColumnTime)
	ts, err := parseTime(raw, loc)
	if err != nil {
		return pv.PointSample{}, err
	}

	sample := pv.PointSample{Time: ts}
	fields := []struct {
		col string
		dst *float64
	}{
		{ColumnIrradiance, &sample.Irradiance},
		{ColumnTemperatureAir, &sample.TemperatureAir},
		{ColumnTemperatureModule, &sample.TemperatureModule},
		{ColumnVmp, &sample.Vmp},
		{ColumnImp, &sample.Imp},
	}
	for _, f := range fields {
		value, present := get(f.col)
		*f.dst, err = parseFloat(value, present)
		if err != nil {
			return pv.PointSample{}, fmt.Errorf("%s: %w", f.col, err)
		}
	}

	if value, present := get(ColumnPower); present {
		if sample.Power, err = parseFloat(value, true); err != nil {
			return pv.PointSample{}, fmt.Errorf("%s: %w", ColumnPower, err)
		}
	} else {
		sample.Power = sample.Vmp * sample.Imp
	}
	return sample, nil
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp format: %s", value)
}

func parseFloat(value string, present bool) (float64, error) {
	if !present {
		return math.NaN(), nil
	}
	switch strings.ToLower(value) {
	case "", "nan", "null", "na":
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value format: %s", value)
	}
	return f, nil
}

var fileNamePattern = regexp.MustCompile(`^point-data_(.+?)(?:_(\d{4}-\d{2}))?\.csv$`)

// SourceIDFromFileName extracts the source identifier from an export file
// name such as point-data_P-0042-01_2021-06.csv.
func SourceIDFromFileName(name string) (string, bool) {
	m := fileNamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", false
	}
	return pv.CanonicalID(m[1]), true
}

// Directory is a Source over an export tree of point-data CSV files. Files of
// one source are read in name order, so later months count as later
// ingestion.
type Directory struct {
	root     string
	location *time.Location
	logger   *slog.Logger

	mu    sync.Mutex
	index map[string][]string
}

// NewDirectory returns a Source over root.
func NewDirectory(root string, loc *time.Location, logger *slog.Logger) *Directory {
	return &Directory{
		root:     root,
		location: loc,
		logger:   logging.NewComponentLogger(logger, "pointdata"),
	}
}

func (d *Directory) load() (map[string][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.index != nil {
		return d.index, nil
	}
	index := make(map[string][]string)
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if id, ok := SourceIDFromFileName(entry.Name()); ok {
			index[id] = append(index[id], path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index point data under %s: %w", d.root, err)
	}
	for id := range index {
		sort.Strings(index[id])
	}
	d.index = index
	return index, nil
}

// Reset drops the file index so the next read rescans the tree.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.index = nil
	d.mu.Unlock()
}

// Has implements Source.
func (d *Directory) Has(sourceID string) (bool, error) {
	index, err := d.load()
	if err != nil {
		return false, err
	}
	_, ok := index[pv.CanonicalID(sourceID)]
	return ok, nil
}

// SourceIDs implements Source.
func (d *Directory) SourceIDs() ([]string, error) {
	index, err := d.load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Rows implements Source.
func (d *Directory) Rows(sourceID string) ([]pv.PointSample, error) {
	index, err := d.load()
	if err != nil {
		return nil, err
	}
	var rows []pv.PointSample
	for _, path := range index[pv.CanonicalID(sourceID)] {
		fileRows, err := ReadFile(path, d.location, d.logger)
		if err != nil {
			return nil, err
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

// ReadFile parses one point-data CSV file, logging rows that fail to parse.
func ReadFile(path string, loc *time.Location, logger *slog.Logger) ([]pv.PointSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	rows, result, err := ParseCSV(file, loc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if result.Failed > 0 {
		first := ""
		if len(result.Errors) > 0 {
			first = result.Errors[0]
		}
		logging.WarnWithContext(logger, "skipped malformed point-data rows", "pointdata_rows_skipped",
			logging.String("path", path),
			logging.Int("failed", result.Failed),
			logging.Int("total", result.Total),
			logging.String("first_error", first),
			logging.String(logging.FieldErrorHint, "re-export the file from the ETL pipeline"),
		)
	}
	return rows, nil
}
