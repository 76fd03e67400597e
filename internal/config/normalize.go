package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSite()
	c.normalizeAnalysis()
	c.normalizeSources()
	c.normalizeLogging()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("PACT_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("PACT_METADATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.MetadataDir = strings.TrimSpace(value)
	}

	targets := []struct {
		key   string
		value *string
	}{
		{"paths.data_dir", &c.Paths.DataDir},
		{"paths.metadata_dir", &c.Paths.MetadataDir},
		{"paths.registry_db", &c.Paths.RegistryDB},
		{"paths.point_store_dir", &c.Paths.PointStoreDir},
		{"paths.exceptions_file", &c.Paths.ExceptionsFile},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, target := range targets {
		expanded, err := expandPath(strings.TrimSpace(*target.value))
		if err != nil {
			return fmt.Errorf("%s: %w", target.key, err)
		}
		*target.value = expanded
	}
	return nil
}

func (c *Config) normalizeSite() {
	c.Site.Label = strings.TrimSpace(c.Site.Label)
	if c.Site.SampleIntervalSeconds == 0 {
		c.Site.SampleIntervalSeconds = defaultSampleIntervalSeconds
	}
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.T80Reference = strings.ToLower(strings.TrimSpace(c.Analysis.T80Reference))
	if c.Analysis.T80Reference == "" {
		c.Analysis.T80Reference = ReferencePeak
	}
	c.Analysis.RollingAlignment = strings.ToLower(strings.TrimSpace(c.Analysis.RollingAlignment))
	if c.Analysis.RollingAlignment == "" {
		c.Analysis.RollingAlignment = AlignTrailing
	}
}

func (c *Config) normalizeSources() {
	c.Sources.Registry = strings.ToLower(strings.TrimSpace(c.Sources.Registry))
	if c.Sources.Registry == "" {
		c.Sources.Registry = RegistryJSON
	}
	c.Sources.Points = strings.ToLower(strings.TrimSpace(c.Sources.Points))
	if c.Sources.Points == "" {
		c.Sources.Points = PointsCSV
	}
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("PACT_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
