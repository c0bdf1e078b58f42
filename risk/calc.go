package risk

import (
	"log/slog"
	"math"

	"github.com/rustyeddy/expiry/market"
)

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// LotsFor sizes a position so that a stop-out loses at most budget.
// The quantity is floored to whole lots. A zero stop distance gives 0.
func LotsFor(budget, entry, stop float64, lotSize int) int {
	dist := abs(entry - stop)
	if dist == 0 || budget <= 0 || lotSize <= 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		return 0
	}
	maxQty := int(math.Floor(budget / dist))
	return (maxQty / lotSize) * lotSize
}

// DecideLots sizes an entry on symbol from the governor's risk budget.
func (g *Governor) DecideLots(symbol string, entry, stop float64) int {
	lot := market.LotSize(symbol)
	budget := g.limits.Budget()

	if abs(entry-stop) == 0 {
		slog.Warn("stop loss equals entry price, sizing rejected",
			slog.String("symbol", symbol),
			slog.Float64("entry", entry))
		return 0
	}

	qty := LotsFor(budget, entry, stop, lot)
	slog.Debug("position size",
		slog.String("symbol", symbol),
		slog.Float64("budget", budget),
		slog.Int("lot", lot),
		slog.Int("quantity", qty))
	return qty
}

// ExitLevels returns a percentage stop and target around entry.
func ExitLevels(entry, riskPerTrade, targetProfit float64) (stop, target float64) {
	return entry * (1 - riskPerTrade), entry * (1 + targetProfit)
}

func RR(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}
