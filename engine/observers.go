package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/execution"
	"github.com/rustyeddy/expiry/health"
	"github.com/rustyeddy/expiry/journal"
	"github.com/rustyeddy/expiry/ledger"
	"github.com/rustyeddy/expiry/notify"
)

// confirmer opens pending positions once their queued order is placed.
// A flush can place an order before the cycle has registered its
// position, so early placements are parked until track is called.
type confirmer struct {
	ledger *ledger.Ledger

	mu      sync.Mutex
	byRef   map[string]string // order ref -> position id
	earlyID map[string]string // order ref -> broker order id
}

func newConfirmer(l *ledger.Ledger) *confirmer {
	return &confirmer{
		ledger:  l,
		byRef:   make(map[string]string),
		earlyID: make(map[string]string),
	}
}

func (c *confirmer) track(ref, positionID string) {
	c.mu.Lock()
	orderID, placed := c.earlyID[ref]
	if placed {
		delete(c.earlyID, ref)
	} else {
		c.byRef[ref] = positionID
	}
	c.mu.Unlock()

	if placed {
		c.confirm(positionID, orderID)
	}
}

func (c *confirmer) OnPlaced(order execution.QueuedOrder, fill broker.OrderFill) {
	c.mu.Lock()
	positionID, ok := c.byRef[order.Ref]
	if ok {
		delete(c.byRef, order.Ref)
	} else {
		c.earlyID[order.Ref] = fill.OrderID
	}
	c.mu.Unlock()

	if ok {
		c.confirm(positionID, fill.OrderID)
	}
}

func (c *confirmer) confirm(positionID, orderID string) {
	if err := c.ledger.Confirm(positionID, orderID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			slog.Warn("placed order has no pending position", slog.String("position", positionID))
			return
		}
		slog.Error("confirm position", slog.String("err", err.Error()))
		return
	}
	slog.Info("pending position confirmed", slog.String("position", positionID), slog.String("order_id", orderID))
}

type alertRecorder interface {
	RecordAlert(journal.AlertRecord) error
}

// AlertSink journals every alert and forwards critical ones to the
// notifier.
type AlertSink struct {
	Journal  alertRecorder
	Notifier notify.Notifier
}

func (s *AlertSink) OnAlert(a health.Alert) {
	if s.Journal != nil {
		rec := journal.AlertRecord{Time: a.Time, Category: a.Category, Severity: a.Severity, Message: a.Message}
		if err := s.Journal.RecordAlert(rec); err != nil {
			slog.Warn("record alert failed", slog.String("err", err.Error()))
		}
	}
	if s.Notifier != nil && a.Severity == health.SeverityCritical {
		s.Notifier.NotifyWarning(context.Background(), fmt.Sprintf("[%s] %s", a.Category, a.Message))
	}
}
