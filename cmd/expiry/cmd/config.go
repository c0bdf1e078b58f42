package cmd

import (
	"fmt"
	"os"

	"github.com/rustyeddy/expiry/broker/kite"
	"github.com/rustyeddy/expiry/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate the configuration with environment overrides applied

Examples:
  expiry config init -o expiry.yaml
  expiry config validate -c expiry.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "expiry.yaml", "output config file path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nPut secrets in .env (KITE_API_KEY, KITE_ACCESS_TOKEN, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID) and run:")
	fmt.Fprintf(out, "  expiry run -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	name := cfgFile
	if name == "" {
		name = "(defaults)"
	}
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", name)
	fmt.Fprintf(out, "  Mode:    %s\n", cfg.Mode)
	fmt.Fprintf(out, "  Symbols: %v\n", cfg.Symbols)
	fmt.Fprintf(out, "  Risk:    max position %.0f, %.1f%% per trade, daily loss %.0f\n",
		cfg.Trading.MaxPositionSize, cfg.Trading.RiskPerTrade*100, cfg.Trading.MaxDailyLoss)
	fmt.Fprintf(out, "  Entries: %s to %s, force exit %s\n", cfg.Market.Open, cfg.Market.LastEntry, cfg.Market.ForceExit)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.DBPath)

	if cfg.Kite.APIKey != "" && cfg.Kite.AccessToken == "" {
		fmt.Fprintf(out, "\nNo access token. Log in at:\n  %s\n", kite.LoginURL(cfg.Kite.APIKey))
		if rt := os.Getenv("KITE_REQUEST_TOKEN"); rt != "" && cfg.Kite.APISecret != "" {
			fmt.Fprintf(out, "Session checksum for the request token:\n  %s\n", kite.Checksum(cfg.Kite.APIKey, rt, cfg.Kite.APISecret))
		}
	}
	return nil
}
