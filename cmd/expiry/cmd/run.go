package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/expiry/metrics"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller until interrupted",
	Long: `Run the decision cycle, the health supervisor and the broker session
monitor until SIGINT or SIGTERM.

In paper mode orders fill against the paper broker. Live mode requires
KITE_API_KEY and KITE_ACCESS_TOKEN; the access token is never refreshed
automatically.

Example:
  expiry run -c expiry.yaml --metrics-addr :9108`,
	RunE: runRun,
}

var metricsAddr string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	logStartup(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server", slog.String("err", err.Error()))
			}
		}()
		slog.Info("metrics listening", slog.String("addr", cfg.Metrics.Addr))
	}

	a.session.Start(ctx)
	a.supervisor.Start(ctx)

	a.engine.Run(ctx, cfg.Symbols, cfg.CycleInterval())

	a.supervisor.Stop()
	a.session.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}

	if n := a.queue.Len(); n > 0 {
		slog.Warn("exiting with queued orders", slog.Int("queued", n))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "stopped")
	return nil
}
