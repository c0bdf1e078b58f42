package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/broker/kite"
	"github.com/rustyeddy/expiry/broker/paper"
	"github.com/rustyeddy/expiry/config"
	"github.com/rustyeddy/expiry/engine"
	"github.com/rustyeddy/expiry/execution"
	"github.com/rustyeddy/expiry/gate"
	"github.com/rustyeddy/expiry/health"
	"github.com/rustyeddy/expiry/journal"
	"github.com/rustyeddy/expiry/ledger"
	"github.com/rustyeddy/expiry/market"
	"github.com/rustyeddy/expiry/notify"
	"github.com/rustyeddy/expiry/nse"
	"github.com/rustyeddy/expiry/risk"
	"github.com/rustyeddy/expiry/strike"
)

// app is the wired controller.
type app struct {
	cfg *config.Config

	db       *journal.SQLite
	csv      *journal.CSVJournal
	kite     *kite.Client
	nse      *nse.Client
	broker   broker.Broker
	notifier notify.Notifier

	governor   *risk.Governor
	ledger     *ledger.Ledger
	queue      *execution.Queue
	engine     *engine.Engine
	supervisor *health.Supervisor
	session    *health.SessionMonitor
}

func build(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	db, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	a.db = db

	var trades journal.Journal = db
	if cfg.Journal.TradesCSV != "" {
		csv, err := journal.NewCSV(cfg.Journal.TradesCSV)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create csv journal: %w", err)
		}
		a.csv = csv
		trades = journal.Multi{db, csv}
	}

	notifiers := notify.Multi{notify.Log{}}
	if cfg.Telegram.BotToken != "" {
		notifiers = append(notifiers, notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	a.notifier = notifiers

	nseOpts := []nse.Option{nse.WithTimeout(cfg.NSETimeout())}
	if cfg.NSE.BaseURL != "" {
		nseOpts = append(nseOpts, nse.WithBaseURL(cfg.NSE.BaseURL))
	}
	a.nse = nse.NewClient(nseOpts...)

	if cfg.Kite.APIKey != "" && cfg.Kite.AccessToken != "" {
		opts := []kite.Option{kite.WithExchange(cfg.Kite.Exchange)}
		if cfg.Kite.BaseURL != "" {
			opts = append(opts, kite.WithBaseURL(cfg.Kite.BaseURL))
		}
		a.kite = kite.NewClient(cfg.Kite.APIKey, cfg.Kite.AccessToken, opts...)
	}

	// Paper mode fills against kite quotes when credentials are present.
	var quotes broker.Quoter
	if cfg.Live() {
		a.broker = a.kite
		quotes = a.kite
	} else {
		pb := paper.New(cfg.Trading.MaxPositionSize)
		a.broker = pb
		quotes = pb
		if a.kite != nil {
			quotes = a.kite
		}
	}

	var trend gate.TrendSource = noTrend{}
	if a.kite != nil {
		interval := kite.Interval(cfg.Trend.Interval)
		lookback := cfg.TrendLookback()
		src := gate.CandleFunc(func(ctx context.Context, symbol string) ([]market.Candle, error) {
			return a.kite.CandlesFor(ctx, symbol, interval, lookback)
		})
		trend = gate.NewCandleTrend(src, cfg.Trend.WMAPeriod, cfg.Trend.SlopePeriod)
	}

	gc, err := cfg.GateConfig()
	if err != nil {
		a.Close()
		return nil, err
	}
	windows, err := cfg.StrikeWindows()
	if err != nil {
		a.Close()
		return nil, err
	}
	hours, err := cfg.Hours()
	if err != nil {
		a.Close()
		return nil, err
	}
	hc, err := cfg.HealthConfig()
	if err != nil {
		a.Close()
		return nil, err
	}

	limits := cfg.Limits()
	a.governor = risk.NewGovernor(limits, a.broker)
	a.ledger = ledger.New(a.governor, trades, limits.MaxPositionSize)
	a.queue = execution.NewQueue(a.broker, execution.WithRecorder(db))

	a.engine = engine.New(engine.Config{
		Strategy:    cfg.Trading.Strategy,
		StopLossPct: cfg.Trading.StopLossPct,
		EstPremium:  cfg.Trading.EstPremium,
		Hours:       hours,
	}, engine.Deps{
		Gate:     gate.New(gc, trend, a.nse, gate.NewWeightedScorer(cfg.Confirm.Weights)),
		Selector: strike.NewSelector(windows, cfg.Strike.OTMSteps),
		Governor: a.governor,
		Queue:    a.queue,
		Ledger:   a.ledger,
		Quotes:   quotes,
		Notifier: a.notifier,
		Features: db,
	})

	host := health.NewHost()
	host.Path = cfg.Health.DiskPath
	a.supervisor = health.NewSupervisor(hc, health.Deps{
		Host:        host,
		Performance: a.engine,
		Data:        a.nse,
		Broker:      a.broker,
		Queue:       a.queue,
	})
	a.supervisor.AddObserver(&engine.AlertSink{Journal: db, Notifier: a.notifier})

	a.session = health.NewSessionMonitor(a.broker, cfg.SessionInterval(), a.notifier)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.csv != nil {
		errs = append(errs, a.csv.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// noTrend fails the trend gate when no candle source is configured.
type noTrend struct{}

func (noTrend) Trend(context.Context, string) (gate.Trend, error) {
	return gate.Trend{}, errors.New("no candle source: set KITE_API_KEY and KITE_ACCESS_TOKEN")
}

func logStartup(cfg *config.Config) {
	slog.Info("expiry starting",
		slog.String("mode", cfg.Mode),
		slog.Any("symbols", cfg.Symbols),
		slog.Float64("max_position_size", cfg.Trading.MaxPositionSize),
		slog.Float64("max_daily_loss", cfg.Trading.MaxDailyLoss),
		slog.Duration("cycle", cfg.CycleInterval()),
		slog.String("now", time.Now().In(market.IST).Format(time.RFC3339)))
}
