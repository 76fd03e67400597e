package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pact/internal/logging"
	"pact/internal/pointdata"
	"pact/internal/pointstore"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var gc bool

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Load point-data CSV exports into the point store",
		Long:  "Loads the given exports, or every point-data_<ID>_<YYYY-MM>.csv under paths.data_dir when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			files := args
			if len(files) == 0 {
				files, err = findExports(cfg.Paths.DataDir)
				if err != nil {
					return err
				}
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No point-data exports found under %s\n", cfg.Paths.DataDir)
				return nil
			}

			store, err := ctx.openPointStore()
			if err != nil {
				return err
			}

			results := make([]pointstore.FileResult, 0, len(files))
			for _, path := range files {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				res, err := store.IngestFile(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				results = append(results, res)
			}
			if gc {
				if err := store.RunGC(0.5); err != nil {
					logging.WarnWithContext(logger, "point store garbage collection failed", "pointstore_gc_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "value log keeps stale rows until the next run"),
					)
				}
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, results)
			}
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			total := 0
			for _, r := range results {
				total += r.Rows
				rows = append(rows, []string{r.SourceID, fmt.Sprint(r.Rows), filepath.Base(r.Path)})
			}
			fmt.Fprint(out, renderTable(out, []string{"Source", "Rows", "File"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft}))
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Ingested %d rows from %d files\n", total, len(results))
			return nil
		},
	}
	cmd.Flags().BoolVar(&gc, "gc", false, "Run value log garbage collection afterwards")
	return cmd
}

func findExports(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		if _, ok := pointdata.SourceIDFromFileName(path); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}
