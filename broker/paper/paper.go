// Package paper is an in-memory broker for dry runs. Orders fill
// immediately at the last quote set for the trading symbol.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/internal/id"
)

type Broker struct {
	mu      sync.Mutex
	session bool
	margin  float64
	prices  map[string]float64
	orders  []broker.OrderFill
	failErr error
}

func New(margin float64) *Broker {
	return &Broker{
		session: true,
		margin:  margin,
		prices:  make(map[string]float64),
	}
}

// SetSession toggles what IsSessionValid reports.
func (b *Broker) SetSession(valid bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = valid
}

func (b *Broker) SetMargin(m float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.margin = m
}

func (b *Broker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price
}

// FailOrders makes every PlaceOrder return err until called with nil.
func (b *Broker) FailOrders(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failErr = err
}

func (b *Broker) IsSessionValid(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

func (b *Broker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderFill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.session {
		return broker.OrderFill{}, fmt.Errorf("place order %s: %w", req.TradingSymbol, broker.ErrSessionInvalid)
	}
	if b.failErr != nil {
		return broker.OrderFill{}, fmt.Errorf("place order %s: %w", req.TradingSymbol, b.failErr)
	}
	if req.Quantity <= 0 {
		return broker.OrderFill{}, fmt.Errorf("place order %s: quantity must be > 0", req.TradingSymbol)
	}

	fill := broker.OrderFill{
		OrderID:       id.Prefixed("PAPER"),
		TradingSymbol: req.TradingSymbol,
		Quantity:      req.Quantity,
		Side:          req.Side,
		Price:         b.prices[req.TradingSymbol],
	}
	b.orders = append(b.orders, fill)
	return fill, nil
}

func (b *Broker) AvailableMargin(ctx context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.margin, nil
}

// LTP returns known prices; unknown symbols are omitted.
func (b *Broker) LTP(ctx context.Context, symbols ...string) (map[string]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if p, ok := b.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

// Orders returns a copy of every filled order.
func (b *Broker) Orders() []broker.OrderFill {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broker.OrderFill(nil), b.orders...)
}
