package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rustyeddy/ledger/journal"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write a run's trades, signals, positions and Org report to a directory",
	Args:  runIDArg,
	RunE:  runExport,
}

var exportDir string

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportDir, "dir", "o", "", "output directory (default ./<run-id>)")
}

func runExport(cmd *cobra.Command, args []string) error {
	dir := exportDir
	if dir == "" {
		dir = filepath.Join(".", args[0])
	}
	return withStore(func(st ledger.Store) error {
		paths, err := journal.Export(cmd.Context(), st, args[0], dir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	})
}
