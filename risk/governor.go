package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/expiry/market"
)

// MarginSource reports the broker's available margin.
type MarginSource interface {
	AvailableMargin(ctx context.Context) (float64, error)
}

// Exposure is a point-in-time copy of the governor's counters.
type Exposure struct {
	TradeCount       map[string]int
	GlobalExposure   float64
	DailyRealizedPnL float64
	SessionOpen      time.Time
}

// Governor owns trade counts, global exposure and daily realized P&L.
// Authorize is the only way exposure grows.
type Governor struct {
	mu     sync.Mutex
	limits Limits
	margin MarginSource

	tradeCount     map[string]int
	globalExposure float64
	dailyRealized  float64
	sessionOpen    time.Time
}

func NewGovernor(l Limits, margin MarginSource) *Governor {
	return &Governor{
		limits:     l,
		margin:     margin,
		tradeCount: make(map[string]int),
	}
}

func (g *Governor) Limits() Limits { return g.limits }

// Authorize reserves a trade slot on symbol and incremental exposure.
// Both counters move together or not at all.
func (g *Governor) Authorize(symbol string, incremental float64) Decision {
	d := Decision{Allowed: true}
	key := market.BaseSymbol(symbol)

	if math.IsNaN(incremental) || math.IsInf(incremental, 0) {
		d.add(CodeInvalidRequest, fmt.Sprintf("exposure %v is not a finite amount", incremental))
		return d
	}
	if incremental < 0 {
		d.add(CodeInvalidRequest, fmt.Sprintf("exposure %.2f must not be negative", incremental))
		return d
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if n := g.tradeCount[key]; n >= g.limits.MaxTradesPerInstrument {
		d.add(CodeTradeCap, fmt.Sprintf("%s trades %d >= max %d", key, n, g.limits.MaxTradesPerInstrument))
	}
	if next := g.globalExposure + incremental; next > g.limits.GlobalExposureCap {
		d.add(CodeExposureCap, fmt.Sprintf("exposure %.2f + %.2f > cap %.2f",
			g.globalExposure, incremental, g.limits.GlobalExposureCap))
	}
	if g.limits.MaxDailyLoss > 0 && g.dailyRealized <= -g.limits.MaxDailyLoss {
		d.add(CodeDailyLoss, fmt.Sprintf("day realized %.2f <= limit %.2f", g.dailyRealized, -g.limits.MaxDailyLoss))
	}

	if !d.Allowed {
		slog.Info("risk rejected", slog.String("symbol", key), slog.String("reason", d.Reason()))
		return d
	}

	g.tradeCount[key]++
	g.globalExposure += incremental
	return d
}

// Release returns a slot and exposure reserved by Authorize for an order
// the broker refused outright.
func (g *Governor) Release(symbol string, exposure float64) {
	key := market.BaseSymbol(symbol)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tradeCount[key] > 0 {
		g.tradeCount[key]--
	}
	g.globalExposure -= exposure
	if g.globalExposure < 0 {
		g.globalExposure = 0
	}
}

// ResetSession clears every counter. It is the market-open event and the
// only place daily realized P&L goes back to zero.
func (g *Governor) ResetSession(now time.Time) {
	g.mu.Lock()
	prev := g.dailyRealized
	g.tradeCount = make(map[string]int)
	g.globalExposure = 0
	g.dailyRealized = 0
	g.sessionOpen = now
	g.mu.Unlock()

	slog.Info("risk session reset", slog.Float64("previous_realized", prev), slog.Time("at", now))
}

// RecordRealized folds a closed position's P&L into the daily figure.
func (g *Governor) RecordRealized(pnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyRealized += pnl
}

func (g *Governor) DailyRealizedPnL() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dailyRealized
}

func (g *Governor) Exposure() Exposure {
	g.mu.Lock()
	defer g.mu.Unlock()

	counts := make(map[string]int, len(g.tradeCount))
	for k, v := range g.tradeCount {
		counts[k] = v
	}
	return Exposure{
		TradeCount:       counts,
		GlobalExposure:   g.globalExposure,
		DailyRealizedPnL: g.dailyRealized,
		SessionOpen:      g.sessionOpen,
	}
}

// CheckLimits validates a single order's value and the daily loss breaker.
func (g *Governor) CheckLimits(symbol string, qty int, price float64) Decision {
	d := Decision{Allowed: true}
	if qty <= 0 || !(price > 0) || math.IsInf(price, 0) {
		d.add(CodeInvalidRequest, fmt.Sprintf("quantity %d and price %.2f must be positive", qty, price))
		return d
	}
	value := float64(qty) * price
	if value > g.limits.MaxPositionSize {
		d.add(CodePositionValue, fmt.Sprintf("position value %.2f exceeds max %.2f", value, g.limits.MaxPositionSize))
	}
	if realized := g.DailyRealizedPnL(); g.limits.MaxDailyLoss > 0 && realized <= -g.limits.MaxDailyLoss {
		d.add(CodeDailyLoss, fmt.Sprintf("day realized %.2f <= limit %.2f", realized, -g.limits.MaxDailyLoss))
	}
	return d
}

// CheckMargin fails closed: a broker error counts as insufficient.
func (g *Governor) CheckMargin(ctx context.Context, required float64) error {
	if g.margin == nil {
		return fmt.Errorf("%w: no margin source", ErrMarginInsufficient)
	}
	avail, err := g.margin.AvailableMargin(ctx)
	if err != nil {
		return fmt.Errorf("%w: margin unavailable: %v", ErrMarginInsufficient, err)
	}
	if avail < required {
		return fmt.Errorf("%w: available %.2f < required %.2f", ErrMarginInsufficient, avail, required)
	}
	return nil
}
