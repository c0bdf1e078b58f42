// Package ledger tracks open positions and their profit and loss.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/internal/id"
	"github.com/rustyeddy/expiry/journal"
)

var ErrNotFound = errors.New("position not found")

type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusPending Status = "PENDING"
)

// Position is an open position. Quantity is signed: negative for SELL.
type Position struct {
	ID            string
	Symbol        string
	TradingSymbol string
	Side          broker.Side
	Quantity      int
	EntryPrice    float64
	Strategy      string
	EntryTime     time.Time
	UnrealizedPnL float64
	Status        Status
	OrderID       string
}

// PnL is the profit of the position if it were closed at price.
func (p Position) PnL(price float64) float64 {
	return (price - p.EntryPrice) * float64(p.Quantity)
}

// PnLBook receives realized P&L of every close.
type PnLBook interface {
	RecordRealized(pnl float64)
}

type Option func(*Position)

func WithID(s string) Option { return func(p *Position) { p.ID = s } }

func WithOrderID(s string) Option { return func(p *Position) { p.OrderID = s } }

// WithTradingSymbol sets the exchange symbol quoted for mark-to-market.
func WithTradingSymbol(s string) Option { return func(p *Position) { p.TradingSymbol = s } }

func WithEntryTime(t time.Time) Option { return func(p *Position) { p.EntryTime = t } }

// Pending registers the position before the broker accepted it.
func Pending() Option { return func(p *Position) { p.Status = StatusPending } }

type Ledger struct {
	mu        sync.Mutex
	positions map[string]*Position
	book      PnLBook
	journal   journal.Journal

	maxPositionSize float64
}

// New creates a ledger. book and j may be nil.
func New(book PnLBook, j journal.Journal, maxPositionSize float64) *Ledger {
	return &Ledger{
		positions:       make(map[string]*Position),
		book:            book,
		journal:         j,
		maxPositionSize: maxPositionSize,
	}
}

// Register opens a position and returns its id.
func (l *Ledger) Register(symbol string, side broker.Side, qty int, entry float64, strategy string, opts ...Option) string {
	if qty < 0 {
		qty = -qty
	}
	p := &Position{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty * side.Sign(),
		EntryPrice: entry,
		Strategy:   strategy,
		EntryTime:  time.Now(),
		Status:     StatusOpen,
	}
	for _, o := range opts {
		o(p)
	}
	if p.ID == "" {
		p.ID = id.Prefixed(symbol)
	}
	if p.TradingSymbol == "" {
		p.TradingSymbol = symbol
	}

	l.mu.Lock()
	l.positions[p.ID] = p
	l.mu.Unlock()

	slog.Info("position registered",
		slog.String("id", p.ID),
		slog.String("symbol", p.TradingSymbol),
		slog.Int("quantity", p.Quantity),
		slog.Float64("entry", entry),
		slog.String("status", string(p.Status)))
	return p.ID
}

// Confirm marks a pending position open with the broker's order id.
func (l *Ledger) Confirm(positionID, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[positionID]
	if !ok {
		return fmt.Errorf("confirm %s: %w", positionID, ErrNotFound)
	}
	p.Status = StatusOpen
	p.OrderID = orderID
	return nil
}

// Close removes the position and realizes its P&L. A second Close of the
// same id returns ErrNotFound.
func (l *Ledger) Close(positionID string, exit float64, reason string) (float64, error) {
	l.mu.Lock()
	p, ok := l.positions[positionID]
	if !ok {
		l.mu.Unlock()
		return 0, fmt.Errorf("close %s: %w", positionID, ErrNotFound)
	}
	delete(l.positions, positionID)
	pnl := p.PnL(exit)
	if l.book != nil {
		l.book.RecordRealized(pnl)
	}
	l.mu.Unlock()

	qty := p.Quantity
	if qty < 0 {
		qty = -qty
	}
	if l.journal != nil {
		rec := journal.TradeRecord{
			TradeID:       p.ID,
			Symbol:        p.Symbol,
			TradingSymbol: p.TradingSymbol,
			Side:          string(p.Side),
			Quantity:      qty,
			EntryPrice:    p.EntryPrice,
			ExitPrice:     exit,
			OpenTime:      p.EntryTime,
			CloseTime:     time.Now(),
			RealizedPnL:   pnl,
			Strategy:      p.Strategy,
			Reason:        reason,
		}
		if err := l.journal.RecordTrade(rec); err != nil {
			slog.Warn("journal trade failed", slog.String("id", p.ID), slog.String("err", err.Error()))
		}
	}

	slog.Info("position closed",
		slog.String("id", p.ID),
		slog.Float64("exit", exit),
		slog.Float64("pnl", pnl))
	return pnl, nil
}

// MarkToMarket revalues open positions from live quotes. Positions without
// a quote keep their previous value and are left out of the result.
func (l *Ledger) MarkToMarket(ctx context.Context, q broker.Quoter) map[string]float64 {
	l.mu.Lock()
	symbols := make([]string, 0, len(l.positions))
	seen := make(map[string]bool)
	for _, p := range l.positions {
		if !seen[p.TradingSymbol] {
			seen[p.TradingSymbol] = true
			symbols = append(symbols, p.TradingSymbol)
		}
	}
	l.mu.Unlock()

	out := make(map[string]float64)
	if len(symbols) == 0 || q == nil {
		return out
	}

	// Quotes are fetched outside the lock; positions closed meanwhile are skipped.
	prices, err := q.LTP(ctx, symbols...)
	if err != nil {
		slog.Warn("mark to market quotes failed", slog.String("err", err.Error()))
		return out
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.positions {
		price, ok := prices[p.TradingSymbol]
		if !ok {
			continue
		}
		p.UnrealizedPnL = p.PnL(price)
		out[p.ID] = p.UnrealizedPnL
	}
	return out
}

// Get returns a copy of one position.
func (l *Ledger) Get(positionID string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[positionID]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of the open positions ordered by entry time.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}

type Summary struct {
	Positions        int
	Pending          int
	TotalUnrealized  float64
	DailyRealized    float64
	NetPnL           float64
	RiskUtilization  float64 // percent of max position size
	OpenPositionList []Position
}

// Summary reports the book. dailyRealized comes from the P&L owner.
func (l *Ledger) Summary(dailyRealized float64) Summary {
	positions := l.Positions()
	s := Summary{
		Positions:        len(positions),
		DailyRealized:    dailyRealized,
		OpenPositionList: positions,
	}
	committed := 0.0
	for _, p := range positions {
		s.TotalUnrealized += p.UnrealizedPnL
		if p.Status == StatusPending {
			s.Pending++
		}
		qty := float64(p.Quantity)
		if qty < 0 {
			qty = -qty
		}
		committed += qty * p.EntryPrice
	}
	s.NetPnL = s.DailyRealized + s.TotalUnrealized
	if l.maxPositionSize > 0 {
		s.RiskUtilization = committed / l.maxPositionSize * 100
	}
	return s
}
