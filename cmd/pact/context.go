package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"pact/internal/analysis"
	"pact/internal/config"
	"pact/internal/logging"
	"pact/internal/metadata"
	"pact/internal/pointdata"
	"pact/internal/pointstore"
	"pact/internal/registry"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	session *analysis.Session
	closers []func() error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path
		}
	}
	return strings.TrimSpace(os.Getenv("PACT_CONFIG"))
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

func (c *commandContext) close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	c.session = nil
	return errors.Join(errs...)
}

// openSession wires the configured collaborators into an analysis session.
func (c *commandContext) openSession() (*analysis.Session, error) {
	if c.session != nil {
		return c.session, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	settings, err := analysis.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	var reg analysis.Registry
	switch cfg.Sources.Registry {
	case config.RegistrySQLite:
		store, err := registry.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open registry: %w", err)
		}
		c.onClose(store.Close)
		reg = store
	default:
		reg = metadata.NewDirectory(cfg.Paths.MetadataDir, logger)
	}

	var source pointdata.Source
	switch cfg.Sources.Points {
	case config.PointsBadger:
		store, err := c.openPointStore()
		if err != nil {
			return nil, err
		}
		source = store
	default:
		source = pointdata.NewDirectory(cfg.Paths.DataDir, cfg.Location(), logger)
	}

	session, err := analysis.NewSession(settings, analysis.Deps{
		Registry:       reg,
		Source:         source,
		ExceptionsFile: cfg.Paths.ExceptionsFile,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	c.session = session
	logger.Debug("analysis session opened",
		logging.String(logging.FieldSessionID, session.ID()),
		logging.String("registry", cfg.Sources.Registry),
		logging.String("points", cfg.Sources.Points),
	)
	return session, nil
}

func (c *commandContext) openPointStore() (*pointstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := pointstore.Open(pointstore.Config{
		Path:     cfg.Paths.PointStoreDir,
		Location: cfg.Location(),
	}, logger)
	if err != nil {
		if errors.Is(err, pointstore.ErrLocked) {
			return nil, fmt.Errorf("%w; stop `pact serve` or wait for the running ingest", err)
		}
		return nil, fmt.Errorf("open point store: %w", err)
	}
	c.onClose(store.Close)
	return store, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
