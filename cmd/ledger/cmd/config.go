package cmd

import (
	"fmt"

	"github.com/rustyeddy/ledger/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  ledger config init -o ledger.yaml
  ledger config validate -c ledger.yaml`,
	// Loading is the point of validate; init needs none.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file and the environment",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "ledger.yaml", "output config file path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.Default().SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintf(out, "\nEdit the file and run with:\n  ledger backtest -c %s <symbol>\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", orDefault(cfgPath, "(defaults)"))
	fmt.Fprintf(out, "  Ledger:   %s %s\n", c.Ledger.Mode, c.Ledger.DBPath)
	fmt.Fprintf(out, "  Market:   %s\n", c.MarketData.DBPath)
	fmt.Fprintf(out, "  Strategy: %s\n", c.Strategy.Name)
	fmt.Fprintf(out, "  Sizing:   %s, commission %s\n", c.Backtest.Sizing.Method, c.Backtest.Commission.Model)
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
