// Package execution submits orders through the broker and parks them in
// a queue while the broker session is invalid.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/internal/id"
	"github.com/rustyeddy/expiry/internal/observer"
	"github.com/rustyeddy/expiry/journal"
	"github.com/rustyeddy/expiry/metrics"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusQueued   Status = "queued"
	StatusRejected Status = "rejected"
)

// Intent is an order the decision cycle wants placed.
type Intent struct {
	Ref           string // caller reference, generated when empty
	Symbol        string // underlying, e.g. NIFTY
	TradingSymbol string // exchange symbol, e.g. NIFTY24OCT1018500CE
	Exchange      string
	Quantity      int
	Side          broker.Side
	Policy        broker.Policy
}

func (in Intent) request() broker.OrderRequest {
	return broker.OrderRequest{
		TradingSymbol: in.TradingSymbol,
		Exchange:      in.Exchange,
		Quantity:      in.Quantity,
		Side:          in.Side,
		Policy:        in.Policy,
	}
}

func (in Intent) validate() error {
	if in.TradingSymbol == "" {
		return errors.New("trading symbol is required")
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("quantity must be > 0, got %d", in.Quantity)
	}
	if in.Side != broker.Buy && in.Side != broker.Sell {
		return fmt.Errorf("invalid side %q", in.Side)
	}
	return nil
}

type Result struct {
	Status  Status
	Ref     string
	OrderID string
	Fill    broker.OrderFill
	Err     error
}

// QueuedOrder waits for a valid session. It is never modified while queued.
type QueuedOrder struct {
	Intent
	QueuedAt time.Time
}

type FlushResult struct {
	Placed    int
	Failed    int
	Remaining int
}

// PlacedObserver is told about queued orders a flush managed to place.
type PlacedObserver interface {
	OnPlaced(order QueuedOrder, fill broker.OrderFill)
}

// OrderRecorder persists order attempts.
type OrderRecorder interface {
	RecordOrder(journal.OrderRecord) error
}

type Queue struct {
	broker   broker.Broker
	recorder OrderRecorder

	mu      sync.Mutex
	pending []QueuedOrder

	observers observer.Registry[PlacedObserver]

	// flushMu keeps flushes from overlapping.
	flushMu sync.Mutex
}

type Option func(*Queue)

func WithRecorder(r OrderRecorder) Option { return func(q *Queue) { q.recorder = r } }

func NewQueue(b broker.Broker, opts ...Option) *Queue {
	q := &Queue{broker: b}
	for _, o := range opts {
		o(q)
	}
	return q
}

// AddObserver registers o. The returned id removes it again.
func (q *Queue) AddObserver(o PlacedObserver) observer.ID {
	return q.observers.Add(o)
}

func (q *Queue) RemoveObserver(id observer.ID) bool {
	return q.observers.Remove(id)
}

// Submit places the order, or queues it when the session is invalid. It
// never re-authenticates.
func (q *Queue) Submit(ctx context.Context, in Intent) Result {
	if in.Ref == "" {
		in.Ref = id.Prefixed("ORD")
	}
	res := Result{Ref: in.Ref}

	if err := in.validate(); err != nil {
		res.Status = StatusRejected
		res.Err = fmt.Errorf("submit %s: %w", in.Ref, err)
		q.finish(in, res)
		return res
	}

	if !q.broker.IsSessionValid(ctx) {
		q.enqueue(in)
		res.Status = StatusQueued
		res.Err = broker.ErrSessionInvalid
		q.finish(in, res)
		return res
	}

	fill, err := q.broker.PlaceOrder(ctx, in.request())
	switch {
	case err == nil:
		res.Status = StatusOK
		res.Fill = fill
		res.OrderID = fill.OrderID
	case errors.Is(err, broker.ErrSessionInvalid):
		// The session died between the probe and the order.
		q.enqueue(in)
		res.Status = StatusQueued
		res.Err = err
	default:
		res.Status = StatusRejected
		res.Err = err
	}
	q.finish(in, res)
	return res
}

func (q *Queue) enqueue(in Intent) {
	q.mu.Lock()
	q.pending = append(q.pending, QueuedOrder{Intent: in, QueuedAt: time.Now()})
	n := len(q.pending)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(n))
	slog.Warn("order queued, broker session invalid",
		slog.String("ref", in.Ref),
		slog.String("symbol", in.TradingSymbol),
		slog.Int("quantity", in.Quantity),
		slog.Int("queue", n))
}

func (q *Queue) finish(in Intent, res Result) {
	metrics.OrdersSubmitted.WithLabelValues(string(res.Status)).Inc()

	attrs := []any{
		slog.String("ref", res.Ref),
		slog.String("symbol", in.TradingSymbol),
		slog.Int("quantity", in.Quantity),
		slog.String("status", string(res.Status)),
	}
	if res.Status == StatusRejected {
		slog.Error("order rejected", append(attrs, slog.String("err", res.Err.Error()))...)
	} else if res.Status == StatusOK {
		slog.Info("order placed", append(attrs, slog.String("order_id", res.OrderID))...)
	}
	q.record(in, res.Status, res.OrderID, res.Err)
}

func (q *Queue) record(in Intent, status Status, orderID string, err error) {
	if q.recorder == nil {
		return
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	rec := journal.OrderRecord{
		Ref:           in.Ref,
		OrderID:       orderID,
		Symbol:        in.Symbol,
		TradingSymbol: in.TradingSymbol,
		Side:          string(in.Side),
		Quantity:      in.Quantity,
		Product:       in.Policy.Product,
		OrderType:     in.Policy.OrderType,
		Status:        string(status),
		Detail:        detail,
		Time:          time.Now(),
	}
	if err := q.recorder.RecordOrder(rec); err != nil {
		slog.Warn("record order failed", slog.String("ref", in.Ref), slog.String("err", err.Error()))
	}
}

// Flush retries the orders queued when it starts. Orders that still fail
// go back to the front of the queue unchanged; orders queued during the
// flush wait for the next one.
func (q *Queue) Flush(ctx context.Context) FlushResult {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	var res FlushResult
	if len(batch) == 0 {
		return res
	}

	var failed []QueuedOrder
	for _, order := range batch {
		if !q.broker.IsSessionValid(ctx) {
			failed = append(failed, order)
			continue
		}
		fill, err := q.broker.PlaceOrder(ctx, order.request())
		if err != nil {
			slog.Warn("queued order retry failed", slog.String("ref", order.Ref), slog.String("err", err.Error()))
			failed = append(failed, order)
			q.record(order.Intent, StatusQueued, "", err)
			continue
		}
		res.Placed++
		q.record(order.Intent, StatusOK, fill.OrderID, nil)
		q.notify(order, fill)
	}
	res.Failed = len(failed)

	q.mu.Lock()
	q.pending = append(failed, q.pending...)
	res.Remaining = len(q.pending)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(res.Remaining))
	metrics.OrdersFlushed.WithLabelValues("placed").Add(float64(res.Placed))
	metrics.OrdersFlushed.WithLabelValues("failed").Add(float64(res.Failed))
	slog.Info("order queue flushed",
		slog.Int("placed", res.Placed),
		slog.Int("failed", res.Failed),
		slog.Int("remaining", res.Remaining))
	return res
}

func (q *Queue) notify(order QueuedOrder, fill broker.OrderFill) {
	for _, o := range q.observers.Snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("placed observer panicked", slog.String("ref", order.Ref), slog.Any("panic", r))
				}
			}()
			o.OnPlaced(order, fill)
		}()
	}
}

// Pending returns a copy of the queue, oldest first.
func (q *Queue) Pending() []QueuedOrder {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]QueuedOrder(nil), q.pending...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
