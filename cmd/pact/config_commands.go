package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"pact/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
		printOnly  bool
		site       config.SampleSite
		lat, lon   float64
		utcOffset  float64
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an annotated configuration for a test site",
		Long: `Write an annotated pact.toml. The site flags replace the sample's
coordinates and clock offset, which drive the sunrise/sunset windows
behind the up-fraction flag. Use --stdout to review the result first.`,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("lat") {
				site.Latitude = &lat
			}
			if flags.Changed("lon") {
				site.Longitude = &lon
			}
			if flags.Changed("utc-offset") {
				site.UTCOffsetHours = &utcOffset
			}

			if printOnly {
				data, err := config.RenderSample(site)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("%s already exists (use --overwrite to replace it)", target)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.CreateSample(target, site); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			if site.Latitude == nil || site.Longitude == nil || site.UTCOffsetHours == nil {
				fmt.Fprintln(out, "Site coordinates or clock offset were not given; check [site] before analysing data.")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	flags.BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	flags.BoolVar(&printOnly, "stdout", false, "Print the configuration instead of writing it")
	flags.StringVar(&site.Label, "site", "", "Site label")
	flags.Float64Var(&lat, "lat", 0, "Site latitude in degrees")
	flags.Float64Var(&lon, "lon", 0, "Site longitude in degrees (east positive)")
	flags.Float64Var(&utcOffset, "utc-offset", 0, "Fixed UTC offset of the site clock in hours")
	flags.StringVar(&site.DataDir, "data-dir", "", "Root of the point-data CSV tree")
	flags.StringVar(&site.MetadataDir, "metadata-dir", "", "Directory with module and site metadata")
	return cmd
}

// initTarget resolves --path, falling back to the per-user config location.
func initTarget(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		target, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return target, nil
	}
	target, err := config.ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return target, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, cfg)
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
