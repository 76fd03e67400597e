package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pact/internal/pv"
	"pact/internal/summary"
)

func newPointsCommand(ctx *commandContext) *cobra.Command {
	var fromFlag, toFlag string

	cmd := &cobra.Command{
		Use:   "points <device>",
		Short: "Show a device's sample stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(fromFlag, toFlag)
			if err != nil {
				return err
			}
			session, err := ctx.openSession()
			if err != nil {
				return err
			}
			points, err := session.Points(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			loc := session.Settings().Location()
			samples := make([]pv.PointSample, 0, len(points.Samples))
			for _, s := range points.Samples {
				if window.Contains(pv.DateOf(s.Time, loc)) {
					samples = append(samples, s)
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, samples)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(samples))
			for _, s := range samples {
				rows = append(rows, []string{
					s.Time.Format("2006-01-02 15:04:05"),
					formatFloat(s.Irradiance, 1),
					formatFloat(s.Power, 2),
					formatFloat(s.TemperatureModule, 1),
					formatPercent(s.Efficiency(points.Device.Area, points.Device.RatedPower)),
				})
			}
			fmt.Fprint(out, renderTable(out,
				[]string{"Time", "POA W/m2", "Power W", "T module", "Efficiency"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&fromFlag, "from", "", "First day to show (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toFlag, "to", "", "Last day to show (YYYY-MM-DD)")
	return cmd
}

func parseWindow(from, to string) (pv.DateRange, error) {
	var window pv.DateRange
	if strings.TrimSpace(from) != "" {
		d, err := pv.ParseDate(from)
		if err != nil {
			return window, fmt.Errorf("--from: %w", err)
		}
		window.Start = d
	}
	if strings.TrimSpace(to) != "" {
		d, err := pv.ParseDate(to)
		if err != nil {
			return window, fmt.Errorf("--to: %w", err)
		}
		window.End = d
	}
	return window, nil
}

func newDailyCommand(ctx *commandContext) *cobra.Command {
	var validOnly bool

	cmd := &cobra.Command{
		Use:   "daily <device>",
		Short: "Show a device's flagged daily series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession()
			if err != nil {
				return err
			}
			series, err := session.Daily(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			records := make([]pv.DailyRecord, 0, len(series.Records))
			for _, r := range series.Records {
				if validOnly && !r.Valid() {
					continue
				}
				records = append(records, r)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, records)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.Date.String(),
					strconv.Itoa(r.DaysDeployed),
					formatPercent(r.Efficiency),
					formatFloat(r.Insolation, 0),
					formatPercent(r.UpFraction),
					formatFlags(r.Flags),
				})
			}
			fmt.Fprint(out, renderTable(out,
				[]string{"Date", "Day", "Efficiency", "Insolation Wh/m2", "Uptime", "Flags"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&validOnly, "valid", false, "Only list days with a usable efficiency")
	return cmd
}

func newT80Command(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "t80 <device>",
		Short: "Show when a device's efficiency fell to 80% of its reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession()
			if err != nil {
				return err
			}
			verdict, err := session.T80(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"device_id": verdict.Device.ID,
					"result":    verdict.Result,
					"detected":  verdict.Detected,
				})
			}

			out := cmd.OutOrStdout()
			res := verdict.Result
			fmt.Fprintf(out, "Device:     %s\n", verdict.Device.ID)
			fmt.Fprintf(out, "Policy:     %s\n", session.Settings().T80.Policy)
			fmt.Fprintf(out, "Reference:  %s\n", formatPercent(res.Reference))
			if !res.Declared {
				fmt.Fprintln(out, "T80:        not reached")
				return nil
			}
			fmt.Fprintf(out, "T80:        %s (day %d)\n", res.Date, res.Days)
			if res.Forced {
				fmt.Fprintln(out, "Forced:     yes (exception list)")
			}
			return nil
		},
	}
}

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	var activeOnly, includeExcluded bool
	var batch, format string

	cmd := &cobra.Command{
		Use:   "summary [device]",
		Short: "Summarise one device or the whole fleet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				sum, err := session.Summary(cmd.Context(), args[0])
				var noData *pv.NoValidDataError
				if err != nil && !errors.As(err, &noData) {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, sum.Info)
				}
				printSummary(cmd, sum.Info)
				return nil
			}

			fleet, err := session.FleetSummary(cmd.Context(), summary.Filter{
				ActiveOnly:      activeOnly,
				Batch:           batch,
				IncludeExcluded: includeExcluded,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if fleet.Rows == nil {
					fleet.Rows = []summary.Row{}
				}
				return writeJSON(cmd, fleet)
			}
			switch format {
			case "csv":
				fmt.Fprintln(cmd.OutOrStdout(), renderCSV(fleetHeaders, fleetRows(fleet)))
			case "table", "":
				printFleet(cmd, fleet)
			default:
				return fmt.Errorf("--format: unsupported value %q (want table or csv)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Fleet output format: table or csv")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active devices")
	cmd.Flags().StringVar(&batch, "batch", "", "Only devices of one batch (e.g. P-0042)")
	cmd.Flags().BoolVar(&includeExcluded, "include-excluded", false, "List devices excluded by the exception list")
	return cmd
}

func printSummary(cmd *cobra.Command, info pv.SummaryInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Device:      %s\n", info.DeviceID)
	fmt.Fprintf(out, "Deployed:    %s to %s\n", formatDate(info.Start), formatDate(info.End))
	fmt.Fprintf(out, "Valid days:  %d of %d\n", info.ValidDays, info.TotalDays)
	if !info.HasData() {
		fmt.Fprintln(out, "No valid daily data")
	}
	fmt.Fprintf(out, "Peak:        %s\n", formatPercentPtr(info.PeakEfficiency))
	fmt.Fprintf(out, "First valid: %s\n", formatDatePtr(info.FirstValid))
	fmt.Fprintf(out, "Last valid:  %s\n", formatDatePtr(info.LastValid))
	t80 := formatDatePtr(info.T80Date)
	if info.T80Days != nil {
		t80 = fmt.Sprintf("%s (day %d)", t80, *info.T80Days)
	}
	if info.T80Forced {
		t80 += " forced"
	}
	fmt.Fprintf(out, "T80:         %s\n", t80)
	if info.Excluded {
		fmt.Fprintln(out, "Excluded:    yes")
	}
}

var fleetHeaders = []string{"Device", "Type", "Start", "End", "Active", "Valid days", "Peak", "Days to T80", "T80", "Excluded"}

func fleetRows(fleet summary.Fleet) [][]string {
	rows := make([][]string, 0, len(fleet.Rows))
	for _, r := range fleet.Rows {
		t80 := formatDatePtr(r.T80Date)
		if r.T80Forced {
			t80 += "*"
		}
		rows = append(rows, []string{
			r.DeviceID,
			r.Type,
			formatDate(r.Start),
			formatDate(r.End),
			yesNo(r.Active),
			strconv.Itoa(r.ValidDays),
			formatPercentValue(r.MaxEfficiencyPct),
			formatIntPtr(r.DaysToT80),
			t80,
			yesNo(r.Excluded),
		})
	}
	return rows
}

func printFleet(cmd *cobra.Command, fleet summary.Fleet) {
	out := cmd.OutOrStdout()
	if len(fleet.Rows) == 0 {
		fmt.Fprintln(out, "No devices match")
		return
	}
	fmt.Fprint(out, renderTable(out, fleetHeaders, fleetRows(fleet),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintln(out)

	median := absent
	if fleet.MedianT80Days != nil {
		median = formatFloat(*fleet.MedianT80Days, 1)
	}
	fmt.Fprintf(out, "%d devices, %d reached T80 (median %s days), mean peak %s, %d excluded\n",
		fleet.Devices, fleet.Declared, median, formatPercentValue(fleet.MeanPeakPct), fleet.Excluded)
}
