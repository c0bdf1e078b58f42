package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/internal/observer"
	"github.com/rustyeddy/expiry/metrics"
)

// SessionObserver is told when a probe finds the session invalid and
// when a valid session is seen again.
type SessionObserver interface {
	OnSession(valid bool)
}

type SessionFunc func(valid bool)

func (f SessionFunc) OnSession(valid bool) { f(valid) }

// Warner delivers operator warnings.
type Warner interface {
	NotifyWarning(ctx context.Context, text string)
}

type SessionStatus struct {
	Valid     bool
	Checked   bool
	LastCheck time.Time
	Running   bool
	Interval  time.Duration
	Observers int
}

// SessionMonitor probes the broker session periodically. It reports an
// invalid session but never re-authenticates.
type SessionMonitor struct {
	broker   broker.Broker
	warner   Warner
	interval time.Duration
	grace    time.Duration

	mu        sync.Mutex
	checked   bool
	valid     bool
	lastCheck time.Time

	observers observer.Registry[SessionObserver]

	loop runner
}

func NewSessionMonitor(b broker.Broker, interval time.Duration, w Warner) *SessionMonitor {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	return &SessionMonitor{
		broker:   b,
		warner:   w,
		interval: interval,
		grace:    5 * time.Second,
	}
}

// AddObserver registers o. The returned id removes it again.
func (m *SessionMonitor) AddObserver(o SessionObserver) observer.ID {
	return m.observers.Add(o)
}

func (m *SessionMonitor) RemoveObserver(id observer.ID) bool {
	return m.observers.Remove(id)
}

func (m *SessionMonitor) Start(ctx context.Context) {
	if m.loop.start(ctx, "session", m.interval, func(ctx context.Context) { m.ForceCheck(ctx) }) {
		slog.Info("session monitor started", slog.Duration("interval", m.interval))
	}
}

func (m *SessionMonitor) Stop() {
	m.loop.stop(m.grace)
}

// ForceCheck probes the session now and returns its validity.
func (m *SessionMonitor) ForceCheck(ctx context.Context) bool {
	valid := m.broker.IsSessionValid(ctx)
	metrics.SessionValid.Set(metrics.Bool(valid))

	m.mu.Lock()
	changed := !m.checked || m.valid != valid
	m.checked = true
	m.valid = valid
	m.lastCheck = time.Now()
	m.mu.Unlock()

	if valid {
		if changed {
			slog.Info("broker session valid")
		}
	} else {
		slog.Warn("broker session invalid, manual login required")
		if changed && m.warner != nil {
			m.warner.NotifyWarning(ctx, "Broker session invalid. Orders will queue until a new access token is supplied.")
		}
	}

	// Observers hear every invalid probe and the first valid one after.
	if !valid || changed {
		for _, o := range m.observers.Snapshot() {
			func() {
				defer func() {
					if r := recover(); r != nil {
						slog.Error("session observer panicked", slog.Any("panic", r))
					}
				}()
				o.OnSession(valid)
			}()
		}
	}
	return valid
}

func (m *SessionMonitor) Status() SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SessionStatus{
		Valid:     m.valid,
		Checked:   m.checked,
		LastCheck: m.lastCheck,
		Running:   m.loop.running(),
		Interval:  m.interval,
		Observers: m.observers.Len(),
	}
}
