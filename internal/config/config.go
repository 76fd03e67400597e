package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"pact/internal/pv"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data and state locations.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	MetadataDir    string `toml:"metadata_dir"`
	RegistryDB     string `toml:"registry_db"`
	PointStoreDir  string `toml:"point_store_dir"`
	ExceptionsFile string `toml:"exceptions_file"`
	LogDir         string `toml:"log_dir"`
}

// Site describes the outdoor test site.
type Site struct {
	Label                 string  `toml:"label"`
	Latitude              float64 `toml:"latitude"`
	Longitude             float64 `toml:"longitude"`
	Elevation             float64 `toml:"elevation"`
	UTCOffsetHours        float64 `toml:"utc_offset_hours"`
	SampleIntervalSeconds int     `toml:"sample_interval_seconds"`
}

// Analysis contains the thresholds and T80 policy of the analytic pipeline.
type Analysis struct {
	MinIrradiance    float64 `toml:"min_irradiance"`
	MinInsolation    float64 `toml:"min_insolation"`
	MinUpFraction    float64 `toml:"min_up_fraction"`
	T80Reference     string  `toml:"t80_reference"`
	T80Threshold     float64 `toml:"t80_threshold"`
	T80RunLength     int     `toml:"t80_run_length"`
	RollingWindow    int     `toml:"rolling_window"`
	RollingAlignment string  `toml:"rolling_alignment"`
}

// Sources selects the collaborators that supply devices and raw rows.
type Sources struct {
	Registry string `toml:"registry"`
	Points   string `toml:"points"`
}

// API contains the HTTP query surface settings.
type API struct {
	Bind                string `toml:"bind"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for pact.
//
// Configuration sections by subsystem:
//   - Paths: raw data, metadata, registry and point store locations
//   - Site: coordinates, fixed UTC offset and sampling interval
//   - Analysis: quality thresholds and the T80 reference policy
//   - Sources: which registry and raw-row collaborators to use
//   - API: HTTP bind address and timeouts
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Site     Site     `toml:"site"`
	Analysis Analysis `toml:"analysis"`
	Sources  Sources  `toml:"sources"`
	API      API      `toml:"api"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/pact/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pact.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the writable state directories. The data and
// metadata directories belong to the ETL collaborator and are never created.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, c.Paths.PointStoreDir}
	if db := strings.TrimSpace(c.Paths.RegistryDB); db != "" {
		dirs = append(dirs, filepath.Dir(db))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Location returns the site's fixed-offset time zone.
func (c *Config) Location() *time.Location {
	return pv.FixedZone(c.Site.UTCOffsetHours)
}

// SampleInterval returns the nominal raw sampling interval.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Site.SampleIntervalSeconds) * time.Second
}

// ReadTimeout returns the HTTP server read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.API.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the HTTP server write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.API.WriteTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
