package testsupport

import (
	"path/filepath"
	"testing"

	"pact/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.MetadataDir = filepath.Join(base, "metadata")
	cfgVal.Paths.RegistryDB = filepath.Join(base, "state", "registry.db")
	cfgVal.Paths.PointStoreDir = filepath.Join(base, "state", "points")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Logging.Format = "json"
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithReference selects the T80 reference policy.
func WithReference(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.T80Reference = policy
	}
}

// WithRollingWindow sets the rolling median window and alignment.
func WithRollingWindow(window int, alignment string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.RollingWindow = window
		b.cfg.Analysis.RollingAlignment = alignment
	}
}

// WithSampleInterval overrides the nominal sampling interval in seconds.
func WithSampleInterval(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Site.SampleIntervalSeconds = seconds
	}
}

// WithSources selects the registry and point collaborators.
func WithSources(registry, points string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources.Registry = registry
		b.cfg.Sources.Points = points
	}
}

// WithExceptionsFile points the config at an exception list.
func WithExceptionsFile(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.ExceptionsFile = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
