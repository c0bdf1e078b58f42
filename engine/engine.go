// Package engine runs the decision cycle: gate, strike, sizing, risk,
// submission and ledger registration.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/execution"
	"github.com/rustyeddy/expiry/gate"
	"github.com/rustyeddy/expiry/health"
	"github.com/rustyeddy/expiry/internal/id"
	"github.com/rustyeddy/expiry/ledger"
	"github.com/rustyeddy/expiry/market"
	"github.com/rustyeddy/expiry/metrics"
	"github.com/rustyeddy/expiry/notify"
	"github.com/rustyeddy/expiry/risk"
	"github.com/rustyeddy/expiry/strike"
)

// MarketData is the snapshot and volatility provider.
type MarketData = gate.MarketData

// FeatureLogger stores one record per entry. Failures are logged only.
type FeatureLogger interface {
	Append(record map[string]any) error
}

// Stages after the gate that can stop a cycle.
const (
	StageStrike = "strike"
	StageSizing = "sizing"
	StageRisk   = "risk"
	StageMargin = "margin"
	StageSubmit = "submit"
)

type CycleResult struct {
	Symbol  string
	Time    time.Time
	Entered bool
	Stage   string // stage that stopped the cycle, empty on entry
	Reason  string

	Decision      gate.Decision
	Strike        int
	Side          market.Side
	TradingSymbol string
	Premium       float64
	Quantity      int
	Exposure      float64
	Submission    execution.Result
	PositionID    string
}

type Config struct {
	Strategy    string
	StopLossPct float64 // premium stop distance as a fraction
	EstPremium  float64 // used when no quote is available
	Hours       market.Hours
}

func DefaultConfig() Config {
	return Config{
		Strategy:    "expiry-momentum",
		StopLossPct: 0.3,
		EstPremium:  10,
		Hours:       market.DefaultHours,
	}
}

// Deps wires the engine. Quotes, Notifier and Features are optional.
type Deps struct {
	Gate     *gate.Gate
	Selector *strike.Selector
	Governor *risk.Governor
	Queue    *execution.Queue
	Ledger   *ledger.Ledger
	Quotes   broker.Quoter
	Notifier notify.Notifier
	Features FeatureLogger
}

type Engine struct {
	cfg Config
	Deps

	pending *confirmer
	now     func() time.Time

	mu          sync.Mutex
	sessionDate time.Time
}

func New(cfg Config, deps Deps) *Engine {
	if deps.Notifier == nil {
		deps.Notifier = notify.Log{}
	}
	e := &Engine{
		cfg:     cfg,
		Deps:    deps,
		pending: newConfirmer(deps.Ledger),
		now:     time.Now,
	}
	deps.Queue.AddObserver(e.pending)
	return e
}

// OpenSession is the market-open event. It resets the governor's
// counters and daily realized P&L.
func (e *Engine) OpenSession(now time.Time) {
	e.mu.Lock()
	e.sessionDate = market.TradingDate(now)
	e.mu.Unlock()

	e.Governor.ResetSession(now)
	e.publish()
	slog.Info("session opened", slog.String("date", market.TradingDate(now).Format("2006-01-02")))
}

// ensureSession opens the session once per trading date while the
// market is open.
func (e *Engine) ensureSession(now time.Time) {
	if !e.cfg.Hours.IsOpen(now) {
		return
	}
	e.mu.Lock()
	open := e.sessionDate.Equal(market.TradingDate(now))
	e.mu.Unlock()
	if !open {
		e.OpenSession(now)
	}
}

func (e *Engine) stop(ctx context.Context, r CycleResult, stage, reason string) CycleResult {
	r.Stage = stage
	r.Reason = reason
	metrics.GateRejections.WithLabelValues(stage).Inc()
	slog.Info("cycle stopped",
		slog.String("symbol", r.Symbol),
		slog.String("stage", stage),
		slog.String("reason", reason))
	e.Notifier.NotifyWarning(ctx, reason)
	return r
}

// RunCycle evaluates one entry for symbol. Every failure below this
// point comes back as a stage and reason, never as an error.
func (e *Engine) RunCycle(ctx context.Context, symbol string) CycleResult {
	now := e.now()
	r := CycleResult{Symbol: symbol, Time: now}

	d := e.Gate.Evaluate(ctx, symbol, now)
	r.Decision = d
	if !d.Enter {
		return e.stop(ctx, r, d.Gate, d.Reason)
	}

	underlying := d.Snapshot.UnderlyingLast
	k, ok := e.Selector.Select(symbol, underlying, d.Direction, now)
	if !ok {
		return e.stop(ctx, r, StageStrike, fmt.Sprintf("%s: %s outside strike windows", symbol, market.ClockOf(now)))
	}
	r.Strike = k
	r.Side = d.Direction.OptionSide()
	r.TradingSymbol = market.OptionSymbol(symbol, market.TradingDate(now), k, r.Side)

	r.Premium = e.premium(ctx, r.TradingSymbol)
	stopPrice := r.Premium * (1 - e.cfg.StopLossPct)
	r.Quantity = e.Governor.DecideLots(symbol, r.Premium, stopPrice)
	if r.Quantity <= 0 {
		return e.stop(ctx, r, StageSizing, fmt.Sprintf("%s %d%s: size 0 (premium %.2f, stop %.2f, budget %.2f)",
			symbol, k, r.Side.Code(), r.Premium, stopPrice, e.Governor.Limits().Budget()))
	}
	r.Exposure = r.Premium * float64(r.Quantity)

	if lim := e.Governor.CheckLimits(symbol, r.Quantity, r.Premium); !lim.Allowed {
		return e.stop(ctx, r, StageRisk, fmt.Sprintf("%s: %s", symbol, lim.Reason()))
	}
	if err := e.Governor.CheckMargin(ctx, r.Exposure); err != nil {
		return e.stop(ctx, r, StageMargin, fmt.Sprintf("%s: %v", symbol, err))
	}
	if auth := e.Governor.Authorize(symbol, r.Exposure); !auth.Allowed {
		return e.stop(ctx, r, StageRisk, fmt.Sprintf("%s: exposure/trade cap blocks entry: %s", symbol, auth.Reason()))
	}

	meta, _ := market.Lookup(symbol)
	in := execution.Intent{
		Ref:           id.Prefixed("ORD"),
		Symbol:        symbol,
		TradingSymbol: r.TradingSymbol,
		Exchange:      meta.Exchange,
		Quantity:      r.Quantity,
		Side:          broker.Buy,
		Policy:        e.Gate.Config().Policy,
	}
	res := e.Queue.Submit(ctx, in)
	r.Submission = res

	switch res.Status {
	case execution.StatusRejected:
		e.Governor.Release(symbol, r.Exposure)
		return e.stop(ctx, r, StageSubmit, fmt.Sprintf("%s %s: order rejected: %v", symbol, r.TradingSymbol, res.Err))

	case execution.StatusQueued:
		r.PositionID = e.Ledger.Register(symbol, broker.Buy, r.Quantity, r.Premium, e.cfg.Strategy,
			ledger.WithTradingSymbol(r.TradingSymbol),
			ledger.WithEntryTime(now),
			ledger.Pending())
		e.pending.track(res.Ref, r.PositionID)
		e.Notifier.NotifyWarning(ctx, fmt.Sprintf("%s %d%s: order queued due to session; will auto-flush", symbol, k, r.Side.Code()))

	default:
		entry := r.Premium
		if res.Fill.Price > 0 {
			entry = res.Fill.Price
		}
		r.PositionID = e.Ledger.Register(symbol, broker.Buy, r.Quantity, entry, e.cfg.Strategy,
			ledger.WithTradingSymbol(r.TradingSymbol),
			ledger.WithEntryTime(now),
			ledger.WithOrderID(res.OrderID))
	}

	r.Entered = true
	metrics.Entries.WithLabelValues(market.BaseSymbol(symbol)).Inc()
	e.publish()

	e.Notifier.NotifyEntry(ctx, notify.Entry{
		Symbol:        symbol,
		TradingSymbol: r.TradingSymbol,
		Side:          r.Side,
		Strike:        k,
		Underlying:    underlying,
		Quantity:      r.Quantity,
		Premium:       r.Premium,
		OrderID:       res.OrderID,
		Status:        string(res.Status),
		Direction:     d.Direction,
	})
	e.logFeatures(r)

	slog.Info("entry",
		slog.String("symbol", symbol),
		slog.String("trading_symbol", r.TradingSymbol),
		slog.Int("quantity", r.Quantity),
		slog.Float64("premium", r.Premium),
		slog.String("status", string(res.Status)),
		slog.String("position", r.PositionID))
	return r
}

// premium is the option's last price, or the configured estimate.
func (e *Engine) premium(ctx context.Context, tradingSymbol string) float64 {
	if e.Quotes == nil {
		return e.cfg.EstPremium
	}
	prices, err := e.Quotes.LTP(ctx, tradingSymbol)
	if err != nil {
		slog.Debug("premium quote failed", slog.String("symbol", tradingSymbol), slog.String("err", err.Error()))
		return e.cfg.EstPremium
	}
	if p, ok := prices[tradingSymbol]; ok && p > 0 {
		return p
	}
	return e.cfg.EstPremium
}

func (e *Engine) logFeatures(r CycleResult) {
	if e.Features == nil {
		return
	}
	d := r.Decision
	rec := map[string]any{
		"time":           r.Time,
		"symbol":         r.Symbol,
		"side":           r.Side.Code(),
		"strike":         r.Strike,
		"trading_symbol": r.TradingSymbol,
		"underlying":     d.Snapshot.UnderlyingLast,
		"direction":      d.Direction.String(),
		"slope":          d.Trend.Slope,
		"pcr":            d.Flow.PCR,
		"ce_skew":        d.Flow.CESkew,
		"pe_skew":        d.Flow.PESkew,
		"vel_ce":         d.Flow.VelCE,
		"vel_pe":         d.Flow.VelPE,
		"vix":            d.VIX,
		"opt_score":      d.Score,
		"threshold":      d.Threshold,
		"quantity":       r.Quantity,
		"premium":        r.Premium,
		"status":         string(r.Submission.Status),
	}
	if err := e.Features.Append(rec); err != nil {
		slog.Warn("feature log failed", slog.String("err", err.Error()))
	}
}

func (e *Engine) publish() {
	ex := e.Governor.Exposure()
	metrics.GlobalExposure.Set(ex.GlobalExposure)
	metrics.DailyRealized.Set(ex.DailyRealizedPnL)
}

// Performance feeds the health supervisor.
func (e *Engine) Performance() health.Performance {
	s := e.Ledger.Summary(e.Governor.DailyRealizedPnL())
	return health.Performance{
		DailyRealized: s.DailyRealized,
		Unrealized:    s.TotalUnrealized,
		OpenPositions: s.Positions,
		Utilization:   s.RiskUtilization,
	}
}

// Run drives RunCycle for every symbol on each tick while the market is
// open, opening the session on the first open tick of a trading date.
// It returns when ctx is done.
func (e *Engine) Run(ctx context.Context, symbols []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("decision loop started", slog.Any("symbols", symbols), slog.Duration("interval", interval))
	for {
		e.tick(ctx, symbols)
		select {
		case <-ctx.Done():
			slog.Info("decision loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) tick(ctx context.Context, symbols []string) {
	now := e.now()
	if !e.cfg.Hours.IsOpen(now) {
		slog.Debug("market closed", slog.String("session", e.cfg.Hours.SessionName(now)))
		return
	}
	e.ensureSession(now)

	if e.Quotes != nil {
		e.Ledger.MarkToMarket(ctx, e.Quotes)
	}
	for _, s := range symbols {
		if ctx.Err() != nil {
			return
		}
		e.RunCycle(ctx, s)
	}
}
