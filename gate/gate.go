// Package gate runs the ordered entry checks of a decision cycle. The
// first failing check ends evaluation with a reason naming the numbers
// it compared.
package gate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/market"
)

// Gate names, in evaluation order.
const (
	GateTime    = "time"
	GateTrend   = "trend"
	GateFlow    = "flow"
	GateConfirm = "confirm"
	GatePolicy  = "policy"
)

// MarketData supplies snapshots and the volatility index. Both are
// best effort: failures come back as an empty snapshot or zero.
type MarketData interface {
	Snapshot(ctx context.Context, symbol string, band int) market.Snapshot
	VolatilityIndex(ctx context.Context) float64
}

type Config struct {
	ForceExit market.Clock
	LastEntry market.Clock

	MinSlope float64
	Flow     FlowConfig

	ConfirmMin        float64
	ConfirmMinHighVIX float64
	HighVIX           float64

	Policy broker.Policy
}

func DefaultConfig() Config {
	return Config{
		ForceExit:         market.MustClock("15:00"),
		LastEntry:         market.MustClock("14:00"),
		MinSlope:          0.5,
		Flow:              DefaultFlowConfig(),
		ConfirmMin:        0.65,
		ConfirmMinHighVIX: 0.55,
		HighVIX:           18,
		Policy:            broker.IntradayMarket,
	}
}

// Threshold is the confirmation minimum for a volatility reading.
func (c Config) Threshold(vix float64) float64 {
	if vix >= c.HighVIX {
		return c.ConfirmMinHighVIX
	}
	return c.ConfirmMin
}

// Decision is the outcome of one evaluation. Fields after Reason are
// filled as far as evaluation got.
type Decision struct {
	Enter  bool
	Gate   string // failing gate, empty on pass
	Reason string

	Direction market.Direction
	Trend     Trend
	Flow      Flow
	Snapshot  market.Snapshot
	VIX       float64
	Score     float64
	Threshold float64
}

type Gate struct {
	cfg    Config
	trend  TrendSource
	data   MarketData
	scorer Scorer
}

func New(cfg Config, trend TrendSource, data MarketData, scorer Scorer) *Gate {
	if scorer == nil {
		scorer = NewWeightedScorer(DefaultWeights())
	}
	return &Gate{cfg: cfg, trend: trend, data: data, scorer: scorer}
}

func (g *Gate) Config() Config { return g.cfg }

func reject(d Decision, gate, format string, args ...any) Decision {
	d.Enter = false
	d.Gate = gate
	d.Reason = fmt.Sprintf(format, args...)
	return d
}

// Evaluate runs the gates for symbol at now. It never returns an error;
// collaborator failures become rejections.
func (g *Gate) Evaluate(ctx context.Context, symbol string, now time.Time) Decision {
	var d Decision

	c := market.ClockOf(now)
	if c >= g.cfg.ForceExit {
		return reject(d, GateTime, "%s: after force-exit %s (now %s), manage only", symbol, g.cfg.ForceExit, c)
	}
	if c >= g.cfg.LastEntry {
		return reject(d, GateTime, "%s: no new entries after %s (now %s)", symbol, g.cfg.LastEntry, c)
	}

	tr, err := g.trend.Trend(ctx, symbol)
	if err != nil {
		return reject(d, GateTrend, "%s gate: trend unavailable: %v", symbol, err)
	}
	d.Trend = tr
	d.Direction = tr.Direction
	if math.Abs(tr.Slope) < g.cfg.MinSlope {
		return reject(d, GateTrend, "%s gate: lr slope %.2f < %.2f", symbol, math.Abs(tr.Slope), g.cfg.MinSlope)
	}

	snap := g.data.Snapshot(ctx, symbol, g.cfg.Flow.PCRBand)
	d.Snapshot = snap
	if snap.Empty() {
		return reject(d, GateFlow, "%s gate: option chain unavailable", symbol)
	}
	d.Flow = AnalyzeFlow(snap, g.cfg.Flow)
	if !d.Flow.Confirms() {
		return reject(d, GateFlow, "%s gate: OI/volume not supportive (%s)", symbol, d.Flow)
	}

	d.VIX = g.data.VolatilityIndex(ctx)
	d.Threshold = g.cfg.Threshold(d.VIX)
	d.Score = g.scorer.Score(ctx, ScoreInput{
		Symbol:    symbol,
		Direction: d.Direction,
		Trend:     tr,
		Flow:      d.Flow,
		Snapshot:  snap,
		VIX:       d.VIX,
	})
	if d.Score < d.Threshold {
		return reject(d, GateConfirm, "%s gate: option confirm %.2f < %.2f (vix %.2f)", symbol, d.Score, d.Threshold, d.VIX)
	}

	if g.cfg.Policy != broker.IntradayMarket {
		return reject(d, GatePolicy, "%s gate: policy %s not allowed, only %s", symbol, g.cfg.Policy, broker.IntradayMarket)
	}

	d.Enter = true
	return d
}
