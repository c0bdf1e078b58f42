package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rustyeddy/expiry/journal"
	"github.com/rustyeddy/expiry/market"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trade journal",
	Long: `Read trades, orders, alerts and feature snapshots from the SQLite journal.

Examples:
  expiry journal today
  expiry journal day 2024-10-10
  expiry journal trade 01J9Z...
  expiry journal features NIFTY -n 5
  expiry journal orders --since 2h`,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Print today's day report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printDay(cmd, time.Now())
	},
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "Print the day report for a date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := time.ParseInLocation("2006-01-02", args[0], market.IST)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", args[0], err)
		}
		return printDay(cmd, d)
	},
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <id>",
	Short: "Show a single trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalFeaturesCmd = &cobra.Command{
	Use:   "features <symbol>",
	Short: "Show the latest gate feature snapshots for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalFeatures,
}

var journalOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List orders recorded in a recent window",
	Args:  cobra.NoArgs,
	RunE:  runJournalOrders,
}

var journalAlertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List health alerts recorded in a recent window",
	Args:  cobra.NoArgs,
	RunE:  runJournalAlerts,
}

var (
	journalDB    string
	featureLimit int
	since        time.Duration
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTodayCmd, journalDayCmd, journalTradeCmd,
		journalFeaturesCmd, journalOrdersCmd, journalAlertsCmd)

	journalCmd.PersistentFlags().StringVar(&journalDB, "db", "", "journal database (default journal.db_path from config)")
	journalFeaturesCmd.Flags().IntVarP(&featureLimit, "limit", "n", 10, "number of snapshots")
	journalOrdersCmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look back this far")
	journalAlertsCmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look back this far")
}

func openJournal() (*journal.SQLite, error) {
	path := journalDB
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.DBPath
	}
	return journal.NewSQLite(path)
}

func printDay(cmd *cobra.Command, date time.Time) error {
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := db.Day(date, market.IST)
	if err != nil {
		return err
	}
	return journal.WriteDayReport(cmd.OutOrStdout(), s, market.IST)
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	t, err := db.GetTrade(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trade:    %s (%s)\n", t.TradeID, t.Strategy)
	fmt.Fprintf(out, "Symbol:   %s %s\n", t.Symbol, t.TradingSymbol)
	fmt.Fprintf(out, "Side:     %s x %d\n", t.Side, t.Quantity)
	fmt.Fprintf(out, "Entry:    %.2f at %s\n", t.EntryPrice, t.OpenTime.In(market.IST).Format("15:04:05"))
	fmt.Fprintf(out, "Exit:     %.2f at %s\n", t.ExitPrice, t.CloseTime.In(market.IST).Format("15:04:05"))
	fmt.Fprintf(out, "P&L:      %.2f\n", t.RealizedPnL)
	if t.Reason != "" {
		fmt.Fprintf(out, "Reason:   %s\n", t.Reason)
	}
	return nil
}

func runJournalFeatures(cmd *cobra.Command, args []string) error {
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.RecentFeatures(market.BaseSymbol(args[0]), featureLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "no feature snapshots")
		return nil
	}
	for _, r := range rows {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return fmt.Errorf("encode features: %w", err)
		}
		fmt.Fprintf(out, "%s %s %s\n", r.Time.In(market.IST).Format("2006-01-02 15:04:05"), r.Symbol, data)
	}
	return nil
}

func runJournalOrders(cmd *cobra.Command, args []string) error {
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	end := time.Now()
	orders, err := db.ListOrdersBetween(end.Add(-since), end)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, o := range orders {
		fmt.Fprintf(out, "%s %-8s %-24s %-4s %5d %-8s %s\n",
			o.Time.In(market.IST).Format("01-02 15:04:05"), o.Status, o.TradingSymbol, o.Side, o.Quantity, o.OrderID, o.Detail)
	}
	fmt.Fprintf(out, "%d orders\n", len(orders))
	return nil
}

func runJournalAlerts(cmd *cobra.Command, args []string) error {
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	end := time.Now()
	alerts, err := db.ListAlertsBetween(end.Add(-since), end)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, a := range alerts {
		fmt.Fprintf(out, "%s [%s/%s] %s\n",
			a.Time.In(market.IST).Format("01-02 15:04:05"), a.Category, a.Severity, a.Message)
	}
	fmt.Fprintf(out, "%d alerts\n", len(alerts))
	return nil
}
