package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/nvandessel/gridrun/internal/constants"
	"github.com/nvandessel/gridrun/internal/ledger"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List runs recorded in the run ledger (~/.gridrun/runs.db by default),
most recent first.

Examples:
  gridrun runs
  gridrun runs --name vote --status failed
  gridrun runs --json --limit 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			expName, _ := cmd.Flags().GetString("name")
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			switch ledger.Status(status) {
			case "", ledger.StatusRunning, ledger.StatusSucceeded, ledger.StatusFailed:
			default:
				return fmt.Errorf("invalid --status %q (valid: running, succeeded, failed)", status)
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if !settings.Ledger.Enabled {
				return errors.New("run ledger is disabled (ledger.enabled: false)")
			}
			path, err := settings.LedgerPath()
			if err != nil {
				return err
			}

			runs, err := ledger.Open(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("failed to open run ledger: %w", err)
			}
			defer runs.Close()

			list, err := runs.List(cmd.Context(), ledger.Filter{
				ExpName: expName,
				Status:  ledger.Status(status),
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if list == nil {
					list = []ledger.Run{}
				}
				return json.NewEncoder(out).Encode(map[string]any{
					"runs":  list,
					"count": len(list),
				})
			}

			if len(list) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tEXPERIMENT\tINDEX\tSTATUS\tEXIT\tFILENAME")
			for _, r := range list {
				exit := "-"
				if r.ExitCode != nil {
					exit = fmt.Sprint(*r.ExitCode)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.ExpName, r.Index, r.Status, exit, r.Filename)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("name", "", "Only show runs of this experiment")
	cmd.Flags().String("status", "", "Only show runs in this state: running, succeeded or failed")
	cmd.Flags().Int("limit", constants.DefaultRunsLimit, fmt.Sprintf("Maximum number of runs (max %d)", constants.MaxRunsLimit))

	return cmd
}
