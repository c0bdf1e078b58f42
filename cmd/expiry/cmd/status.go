package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/expiry/market"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run one health check and print the status summary",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	now := time.Now()
	hours, _ := cfg.Hours()
	valid := a.session.ForceCheck(ctx)
	sample := a.supervisor.Check(ctx)
	sum := a.supervisor.Summary()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Time:     %s\n", now.In(market.IST).Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Market:   %s\n", hours.SessionName(now))
	if open, err := a.nse.MarketStatus(ctx); err != nil {
		fmt.Fprintf(out, "NSE:      unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(out, "NSE:      open=%t\n", open)
	}
	fmt.Fprintf(out, "Mode:     %s\n", cfg.Mode)
	fmt.Fprintf(out, "Session:  valid=%t\n", valid)
	fmt.Fprintf(out, "Overall:  %s\n", sum.Overall)
	fmt.Fprintf(out, "  system  %s (cpu %.1f%% mem %.1f%% disk %.1f%%)\n",
		sum.System, sample.Host.CPU, sample.Host.Memory, sample.Host.Disk)
	fmt.Fprintf(out, "  trading %s\n", sum.Trading)
	fmt.Fprintf(out, "  api     %s (data %s, broker %s)\n",
		sum.API, sample.DataLatency.Round(time.Millisecond), sample.BrokerLatency.Round(time.Millisecond))
	exp := a.governor.Exposure()
	fmt.Fprintf(out, "Exposure: %.2f of %.2f (realized %.2f)\n",
		exp.GlobalExposure, cfg.Trading.MaxPositionSize, exp.DailyRealizedPnL)
	fmt.Fprintf(out, "Alerts:   %d in the last hour\n", sum.RecentAlerts)
	for _, al := range a.supervisor.RecentAlerts(time.Hour) {
		fmt.Fprintf(out, "  [%s/%s] %s\n", al.Category, al.Severity, al.Message)
	}
	return nil
}
