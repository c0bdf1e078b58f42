package cmd

import (
	"fmt"

	"github.com/rustyeddy/expiry/market"
	"github.com/rustyeddy/expiry/risk"
	"github.com/spf13/cobra"
)

var sizeCmd = &cobra.Command{
	Use:   "size <symbol>",
	Short: "Show the position size for an option premium",
	Long: `Compute lots from the configured risk budget, the premium and the stop.

Examples:
  expiry size NIFTY --premium 42
  expiry size BANKNIFTY --premium 120 --stop 90 --target 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runSize,
}

var (
	sizePremium float64
	sizeStop    float64
	sizeTarget  float64
)

func init() {
	rootCmd.AddCommand(sizeCmd)
	sizeCmd.Flags().Float64Var(&sizePremium, "premium", 0, "option premium (required)")
	sizeCmd.Flags().Float64Var(&sizeStop, "stop", 0, "stop price (default premium * (1 - stop_loss_pct))")
	sizeCmd.Flags().Float64Var(&sizeTarget, "target", 0.5, "target profit as a fraction of premium")
	sizeCmd.MarkFlagRequired("premium")
}

func runSize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sizePremium <= 0 {
		return fmt.Errorf("premium must be positive")
	}

	symbol := market.BaseSymbol(args[0])
	stop, target := risk.ExitLevels(sizePremium, cfg.Trading.StopLossPct, sizeTarget)
	if sizeStop > 0 {
		stop = sizeStop
	}

	g := risk.NewGovernor(cfg.Limits(), nil)
	qty := g.DecideLots(symbol, sizePremium, stop)
	lot := market.LotSize(symbol)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Symbol:   %s (lot %d)\n", symbol, lot)
	fmt.Fprintf(out, "Budget:   %.2f\n", cfg.Limits().Budget())
	fmt.Fprintf(out, "Entry:    %.2f\n", sizePremium)
	fmt.Fprintf(out, "Stop:     %.2f\n", stop)
	fmt.Fprintf(out, "Target:   %.2f (R:R %.2f)\n", target, risk.RR(sizePremium, stop, target))
	fmt.Fprintf(out, "Quantity: %d (%d lots)\n", qty, qty/lot)
	fmt.Fprintf(out, "Exposure: %.2f\n", float64(qty)*sizePremium)
	return nil
}
