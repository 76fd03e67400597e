package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pact/internal/metadata"
	"pact/internal/registry"
)

func newRegistryCommand(ctx *commandContext) *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the SQLite device registry",
	}
	registryCmd.AddCommand(newRegistryImportCommand(ctx))
	registryCmd.AddCommand(newRegistryStatusCommand(ctx))
	return registryCmd
}

func newRegistryImportCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the registry contents with the metadata directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := cfg.Paths.MetadataDir
			if dir != "" {
				root = dir
			}
			snap, err := metadata.Load(cmd.Context(), root)
			if err != nil {
				return fmt.Errorf("load metadata: %w", err)
			}
			store, err := registry.Open(cfg)
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer store.Close()

			res, err := store.Import(cmd.Context(), snap, root)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported revision %d from %s\n", res.Revision, root)
			fmt.Fprintf(out, "Devices: %d  Windows: %d  Snow days: %d\n", res.Devices, res.Windows, res.SnowDays)
			for _, id := range res.Skipped {
				fmt.Fprintf(out, "Skipped module metadata for unknown device %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Metadata directory (default paths.metadata_dir)")
	return cmd
}

func newRegistryStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the registry revision and device count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := registry.Open(cfg)
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer store.Close()

			revision, err := store.Revision(cmd.Context())
			if err != nil {
				return err
			}
			devices, err := store.Devices(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"path":     store.Path(),
					"revision": revision,
					"devices":  len(devices),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Registry: %s\n", store.Path())
			fmt.Fprintf(out, "Revision: %d\n", revision)
			fmt.Fprintf(out, "Devices:  %d\n", len(devices))
			return nil
		},
	}
}
