package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pact/internal/analysis"
	"pact/internal/fileutil"
)

const (
	exportTableFile   = "efficiency.csv"
	exportSidecarFile = "t80.json"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var devices []string
	var truncate bool

	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write the wide daily efficiency table and T80 dates",
		Long: "Writes " + exportTableFile + " (one row per date, one column per device, efficiency in percent)\n" +
			"and " + exportSidecarFile + " ({device: date or null}) into <dir>.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession()
			if err != nil {
				return err
			}
			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create export directory %q: %w", dir, err)
			}

			tablePath := filepath.Join(dir, exportTableFile)
			sidecarPath := filepath.Join(dir, exportSidecarFile)
			var res analysis.ExportResult
			err = fileutil.WriteAtomic(tablePath, 0o644, func(table io.Writer) error {
				return fileutil.WriteAtomic(sidecarPath, 0o644, func(sidecar io.Writer) error {
					var exportErr error
					res, exportErr = session.Export(cmd.Context(), table, sidecar, analysis.ExportOptions{
						DeviceIDs:     devices,
						TruncateAtT80: truncate,
					})
					return exportErr
				})
			})
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"table":   tablePath,
					"sidecar": sidecarPath,
					"devices": res.Devices,
					"dates":   res.Dates,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d devices over %d dates to %s\n", len(res.Devices), res.Dates, dir)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&devices, "device", nil, "Device to export (repeatable; default all)")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "Blank efficiencies after each device's T80 date")
	return cmd
}
