package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/ledger/journal"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, inspect, close and delete runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs in start order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st ledger.Store) error {
			runs, err := st.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-26s %-22s %-8s %-20s %-10s %-10s %s\n", "run_id", "strategy", "version", "started", "from", "to", "status")
			for _, r := range runs {
				status := "open"
				if r.Closed() {
					status = "closed"
				}
				fmt.Fprintf(out, "%-26s %-22s %-8s %-20s %-10s %-10s %s\n",
					r.ID, r.StrategyName, r.StrategyVersion, r.StartTime.Format(time.DateTime),
					r.DataStart.Format(time.DateOnly), r.DataEnd.Format(time.DateOnly), status)
			}
			return nil
		})
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print an Org-mode report for a run",
	Args:  runIDArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st ledger.Store) error {
			rep, err := journal.NewRunReport(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			return rep.WriteOrg(cmd.OutOrStdout())
		})
	},
}

var runsCloseCmd = &cobra.Command{
	Use:   "close <run-id>",
	Short: "Mark a run as ended",
	Args:  runIDArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st ledger.Store) error {
			if err := st.CloseRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			return st.Commit()
		})
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run with all of its signals, positions and trades",
	Args:  runIDArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st ledger.Store) error {
			if err := st.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted run %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsCloseCmd, runsDeleteCmd)
}
