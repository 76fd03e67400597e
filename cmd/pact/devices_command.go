package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pact/internal/pv"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List resolvable devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession()
			if err != nil {
				return err
			}
			if check {
				ids, err := session.Orphans(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if ids == nil {
						ids = []string{}
					}
					return writeJSON(cmd, map[string][]string{"orphans": ids})
				}
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					fmt.Fprintln(out, "No orphan point-data sources")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			devices, err := session.Devices(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if devices == nil {
					devices = []pv.Device{}
				}
				return writeJSON(cmd, devices)
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No devices registered")
				return nil
			}
			rows := make([][]string, 0, len(devices))
			for _, d := range devices {
				rows = append(rows, []string{
					d.ID,
					d.Type,
					formatFloat(d.Area, 3),
					formatDate(d.Start),
					formatDate(d.End),
					yesNo(d.Active),
					strings.Join(d.Junctions, " "),
				})
			}
			fmt.Fprint(out, renderTable(out,
				[]string{"Device", "Type", "Area m2", "Start", "End", "Active", "Junctions"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "List point-data sources no device refers to")
	return cmd
}
