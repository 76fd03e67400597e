package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"pact/internal/fileutil"
)

// SampleSite seeds the site and path keys of a generated configuration.
// Nil or empty fields keep the sample's values.
type SampleSite struct {
	Label          string
	Latitude       *float64
	Longitude      *float64
	UTCOffsetHours *float64
	DataDir        string
	MetadataDir    string
}

func (s SampleSite) overrides() map[string]string {
	out := make(map[string]string)
	str := func(key, v string) {
		if strings.TrimSpace(v) != "" {
			out[key] = strconv.Quote(strings.TrimSpace(v))
		}
	}
	num := func(key string, v *float64) {
		if v != nil {
			out[key] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
	}
	str("paths.data_dir", s.DataDir)
	str("paths.metadata_dir", s.MetadataDir)
	str("site.label", s.Label)
	num("site.latitude", s.Latitude)
	num("site.longitude", s.Longitude)
	num("site.utc_offset_hours", s.UTCOffsetHours)
	return out
}

// RenderSample returns the annotated sample configuration with site's values
// substituted. The result is checked with the same rules as Load.
func RenderSample(site SampleSite) ([]byte, error) {
	overrides := site.overrides()
	var b strings.Builder
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(sampleConfig))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "["):
			section = strings.Trim(trimmed, "[]")
		case trimmed != "" && !strings.HasPrefix(trimmed, "#"):
			if key, _, ok := strings.Cut(trimmed, "="); ok {
				if value, ok := overrides[section+"."+strings.TrimSpace(key)]; ok {
					line = strings.TrimSpace(key) + " = " + value
				}
			}
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := toml.Unmarshal([]byte(b.String()), &cfg); err != nil {
		return nil, fmt.Errorf("render sample config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sample config: %w", err)
	}
	return []byte(b.String()), nil
}

// CreateSample writes the sample configuration for site to path.
func CreateSample(path string, site SampleSite) error {
	data, err := RenderSample(site)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
