// Package notify delivers entry and warning messages to the operator.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/expiry/market"
)

// Notifier is fire-and-forget: delivery failures are logged, never
// returned to the caller.
type Notifier interface {
	NotifyEntry(ctx context.Context, e Entry)
	NotifyWarning(ctx context.Context, text string)
}

// Entry describes a submitted entry order.
type Entry struct {
	Symbol        string
	TradingSymbol string
	Side          market.Side
	Strike        int
	Underlying    float64
	Quantity      int
	Premium       float64
	OrderID       string
	Status        string
	Direction     market.Direction
}

func (e Entry) String() string {
	kind := "CALL"
	if e.Side == market.Put {
		kind = "PUT"
	}
	arrow := "▲"
	if e.Direction == market.Bear {
		arrow = "▼"
	}
	orderID := e.OrderID
	if orderID == "" {
		orderID = e.Status
	}
	return fmt.Sprintf("%s %s Trade Alert\nUnderlying: %.2f\nStrike: %d %s\nQty: %d @ ~%.2f\nOrder: %s\nReason: %s momentum + OI skew confirm",
		e.Symbol, kind, e.Underlying, e.Strike, e.Side.Code(), e.Quantity, e.Premium, orderID, arrow)
}

// Log writes notifications to the default logger.
type Log struct{}

func (Log) NotifyEntry(_ context.Context, e Entry) {
	slog.Info("entry",
		slog.String("symbol", e.Symbol),
		slog.String("trading_symbol", e.TradingSymbol),
		slog.Int("strike", e.Strike),
		slog.Int("quantity", e.Quantity),
		slog.Float64("premium", e.Premium),
		slog.String("order_id", e.OrderID),
		slog.String("status", e.Status))
}

func (Log) NotifyWarning(_ context.Context, text string) {
	slog.Warn("notify", slog.String("text", text))
}

// Multi fans out to every notifier.
type Multi []Notifier

func (m Multi) NotifyEntry(ctx context.Context, e Entry) {
	for _, n := range m {
		n.NotifyEntry(ctx, e)
	}
}

func (m Multi) NotifyWarning(ctx context.Context, text string) {
	for _, n := range m {
		n.NotifyWarning(ctx, text)
	}
}
