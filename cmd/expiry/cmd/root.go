package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rustyeddy/expiry/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "expiry",
	Short: "Intraday expiry-day index option controller",
	Long: `Expiry trades same-day-expiry index options (NIFTY, BANKNIFTY, FINNIFTY,
MIDCPNIFTY, SENSEX, BANKEX) on Zerodha Kite.

It provides:
  - A gated decision cycle (time, trend, order flow, confirmation, policy)
  - Time-windowed strike selection
  - Risk sizing, trade caps, exposure caps and a daily loss breaker
  - Order queueing while the broker session is invalid, flushed on reconnect
  - Health supervision and broker session monitoring
  - A SQLite trade, order, alert and feature journal`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(os.Stderr, logLevel, logFormat); err != nil {
			return err
		}
		return config.LoadEnv(envFile)
	},
}

var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with KITE_* and TELEGRAM_* secrets")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "text or json")
}

func setupLogging(w io.Writer, level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("log format %q: want text or json", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
