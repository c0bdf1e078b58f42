package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/broker/paper"
	"github.com/rustyeddy/expiry/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	u   HostUsage
	err error
}

func (h fakeHost) Sample(context.Context) (HostUsage, error) { return h.u, h.err }

type fakePinger struct {
	d   time.Duration
	err error
}

func (p fakePinger) Ping(context.Context) (time.Duration, error) { return p.d, p.err }

// countingFlusher never drains: queued orders stay queued.
type countingFlusher struct {
	n      int32
	queued int
}

func (f *countingFlusher) Flush(context.Context) execution.FlushResult {
	atomic.AddInt32(&f.n, 1)
	return execution.FlushResult{Failed: f.queued, Remaining: f.queued}
}

func (f *countingFlusher) Len() int { return f.queued }

func TestOverall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		system, trading, api State
		want                 State
	}{
		{Healthy, Idle, Connected, Healthy},
		{Healthy, Active, NotAuthenticated, Healthy},
		{Degraded, Active, Connected, Degraded},
		{Unknown, Idle, Connected, Degraded},
		{Degraded, Error, Connected, Error},
		{Healthy, Idle, Error, Error},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Overall(tt.system, tt.trading, tt.api), "%s/%s/%s", tt.system, tt.trading, tt.api)
	}
}

func newSupervisor(deps Deps) *Supervisor {
	cfg := DefaultConfig()
	cfg.Thresholds.APITimeout = time.Second
	return NewSupervisor(cfg, deps)
}

func TestCheckHealthy(t *testing.T) {
	pb := paper.New(50000)
	s := newSupervisor(Deps{
		Host:        fakeHost{u: HostUsage{CPU: 10, Memory: 20, Disk: 30}},
		Performance: PerformanceFunc(func() Performance { return Performance{OpenPositions: 1} }),
		Data:        fakePinger{d: 10 * time.Millisecond},
		Broker:      pb,
	})

	sample := s.Check(context.Background())
	assert.Equal(t, Healthy, sample.System)
	assert.Equal(t, Active, sample.Trading)
	assert.Equal(t, Connected, sample.API)
	assert.Equal(t, Healthy, sample.Overall)
	assert.Empty(t, s.RecentAlerts(time.Hour))

	sum := s.Summary()
	assert.Equal(t, Healthy, sum.Overall)
	assert.False(t, sum.LastCheck.IsZero())
	assert.False(t, sum.Running)
}

func TestCheckResourceBreaches(t *testing.T) {
	s := newSupervisor(Deps{
		Host: fakeHost{u: HostUsage{CPU: 95, Memory: 50, Disk: 99}},
	})

	sample := s.Check(context.Background())
	assert.Equal(t, Degraded, sample.System)
	assert.Equal(t, Degraded, sample.Overall)

	alerts := s.RecentAlerts(time.Hour)
	require.Len(t, alerts, 2)
	assert.Equal(t, CategorySystem, alerts[0].Category)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)
	assert.Equal(t, SeverityCritical, alerts[1].Severity)

	s = newSupervisor(Deps{Host: fakeHost{err: errors.New("no proc")}})
	assert.Equal(t, Error, s.Check(context.Background()).System)
}

func TestCheckTradingLossAndUtilization(t *testing.T) {
	s := newSupervisor(Deps{
		Performance: PerformanceFunc(func() Performance {
			return Performance{DailyRealized: -6000, Utilization: 95}
		}),
	})

	sample := s.Check(context.Background())
	assert.Equal(t, Error, sample.Trading)
	assert.Equal(t, Error, sample.Overall)

	alerts := s.RecentAlerts(time.Hour)
	require.Len(t, alerts, 2)
	assert.Contains(t, alerts[0].Message, "-6000.00")
	assert.Contains(t, alerts[1].Message, "95.0%")
}

func TestCheckAPIStates(t *testing.T) {
	ctx := context.Background()

	pb := paper.New(0)
	pb.SetSession(false)
	s := newSupervisor(Deps{Data: fakePinger{}, Broker: pb})
	assert.Equal(t, NotAuthenticated, s.Check(ctx).API)

	s = newSupervisor(Deps{Data: fakePinger{err: broker.ErrNetwork}, Broker: paper.New(0)})
	assert.Equal(t, Error, s.Check(ctx).API)

	// Slow but answering raises a warning only.
	s = newSupervisor(Deps{Data: fakePinger{d: 3 * time.Second}})
	sample := s.Check(ctx)
	assert.Equal(t, Connected, sample.API)
	require.Len(t, s.RecentAlerts(time.Hour), 1)
	assert.Equal(t, CategoryAPI, s.RecentAlerts(time.Hour)[0].Category)
}

func TestFlushOnReconnect(t *testing.T) {
	ctx := context.Background()
	pb := paper.New(0)
	q := execution.NewQueue(pb)

	pb.SetSession(false)
	q.Submit(ctx, execution.Intent{
		Symbol: "NIFTY", TradingSymbol: "NIFTY24OCT1018500CE", Quantity: 50,
		Side: broker.Buy, Policy: broker.IntradayMarket,
	})
	require.Equal(t, 1, q.Len())

	s := newSupervisor(Deps{Broker: pb, Queue: q})
	sample := s.Check(ctx)
	assert.Equal(t, NotAuthenticated, sample.API)
	assert.Nil(t, sample.Flushed)
	assert.Equal(t, 1, q.Len())

	pb.SetSession(true)
	sample = s.Check(ctx)
	assert.Equal(t, Connected, sample.API)
	require.NotNil(t, sample.Flushed)
	assert.Equal(t, 1, sample.Flushed.Placed)
	assert.Zero(t, q.Len())

	// Staying connected does not flush again.
	assert.Nil(t, s.Check(ctx).Flushed)
}

func niftyIntent() execution.Intent {
	return execution.Intent{
		Symbol: "NIFTY", TradingSymbol: "NIFTY24OCT1018500CE", Quantity: 50,
		Side: broker.Buy, Policy: broker.IntradayMarket,
	}
}

func TestFlushAfterBlipShorterThanInterval(t *testing.T) {
	ctx := context.Background()
	pb := paper.New(0)
	q := execution.NewQueue(pb)
	s := newSupervisor(Deps{Broker: pb, Queue: q})

	require.Equal(t, Connected, s.Check(ctx).API)

	// The session drops and recovers between two ticks.
	pb.SetSession(false)
	require.Equal(t, execution.StatusQueued, q.Submit(ctx, niftyIntent()).Status)
	pb.SetSession(true)

	sample := s.Check(ctx)
	assert.Equal(t, Connected, sample.API)
	require.NotNil(t, sample.Flushed)
	assert.Equal(t, 1, sample.Flushed.Placed)
	assert.Zero(t, q.Len())
	assert.Len(t, pb.Orders(), 1)
}

func TestFlushRetriedAfterFailedFlush(t *testing.T) {
	ctx := context.Background()
	pb := paper.New(0)
	q := execution.NewQueue(pb)
	s := newSupervisor(Deps{Broker: pb, Queue: q})

	pb.SetSession(false)
	q.Submit(ctx, niftyIntent())
	require.Equal(t, NotAuthenticated, s.Check(ctx).API)

	pb.SetSession(true)
	pb.FailOrders(errors.New("503 gateway"))
	sample := s.Check(ctx)
	require.NotNil(t, sample.Flushed)
	assert.Equal(t, 1, sample.Flushed.Failed)
	assert.Equal(t, 1, q.Len())

	pb.FailOrders(nil)
	sample = s.Check(ctx)
	assert.Equal(t, Connected, sample.API)
	require.NotNil(t, sample.Flushed)
	assert.Equal(t, 1, sample.Flushed.Placed)
	assert.Zero(t, q.Len())
}

func TestFlushOnEveryConnectedTickWhileQueued(t *testing.T) {
	ctx := context.Background()
	pb := paper.New(0)

	f := &countingFlusher{}
	s := newSupervisor(Deps{Broker: pb, Queue: f})
	s.Check(ctx)
	assert.Zero(t, atomic.LoadInt32(&f.n), "empty queue is not flushed")

	f.queued = 1
	for i := 0; i < 3; i++ {
		s.Check(ctx)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&f.n))

	pb.SetSession(false)
	s.Check(ctx)
	assert.EqualValues(t, 3, atomic.LoadInt32(&f.n), "not flushed without a session")
}

func TestAlertObservers(t *testing.T) {
	s := newSupervisor(Deps{Host: fakeHost{u: HostUsage{CPU: 99}}})

	var got []Alert
	good := AlertFunc(func(a Alert) { got = append(got, a) })
	s.AddObserver(AlertFunc(func(Alert) { panic("boom") }))
	s.AddObserver(good)

	assert.NotPanics(t, func() { s.Check(context.Background()) })
	require.Len(t, got, 1)
	assert.Equal(t, "High CPU usage: 99.0%", got[0].Message)
}

func TestAlertHistoryBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAlerts = 3
	s := NewSupervisor(cfg, Deps{Host: fakeHost{u: HostUsage{CPU: 99}}})

	for i := 0; i < 5; i++ {
		s.Check(context.Background())
	}
	assert.Len(t, s.RecentAlerts(time.Hour), 3)
	assert.Equal(t, 3, s.Summary().TotalAlerts)

	s.ClearAlerts()
	assert.Empty(t, s.RecentAlerts(time.Hour))
	assert.Zero(t, s.Summary().RecentAlerts)
}

func TestSupervisorStartStop(t *testing.T) {
	f := &countingFlusher{}
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	s := NewSupervisor(cfg, Deps{Broker: paper.New(0), Queue: f})

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return s.Summary().API == Connected }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Summary().Running)

	s.Stop()
	assert.False(t, s.Summary().Running)
	assert.Zero(t, atomic.LoadInt32(&f.n))
}

func TestRunningFalseAfterContextCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	s := NewSupervisor(cfg, Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.True(t, s.Summary().Running)

	cancel()
	assert.Eventually(t, func() bool { return !s.Summary().Running }, time.Second, 5*time.Millisecond)

	// A stopped-by-context loop can be started again.
	s.Start(context.Background())
	assert.True(t, s.Summary().Running)
	s.Stop()
	assert.False(t, s.Summary().Running)
}

func TestRemoveFuncObservers(t *testing.T) {
	ctx := context.Background()

	s := newSupervisor(Deps{Host: fakeHost{u: HostUsage{CPU: 99}}})
	var alerts int
	id := s.AddObserver(AlertFunc(func(Alert) { alerts++ }))
	s.Check(ctx)
	require.Equal(t, 1, alerts)

	assert.NotPanics(t, func() { assert.True(t, s.RemoveObserver(id)) })
	assert.False(t, s.RemoveObserver(id))
	s.Check(ctx)
	assert.Equal(t, 1, alerts)

	pb := paper.New(0)
	pb.SetSession(false)
	m := NewSessionMonitor(pb, 0, nil)
	var probes int
	sid := m.AddObserver(SessionFunc(func(bool) { probes++ }))
	m.ForceCheck(ctx)
	require.Equal(t, 1, probes)

	assert.True(t, m.RemoveObserver(sid))
	m.ForceCheck(ctx)
	assert.Equal(t, 1, probes)
	assert.Zero(t, m.Status().Observers)
}

type recordingWarner struct {
	mu    sync.Mutex
	texts []string
}

func (w *recordingWarner) NotifyWarning(_ context.Context, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.texts = append(w.texts, text)
}

func TestSessionMonitor(t *testing.T) {
	ctx := context.Background()
	pb := paper.New(0)
	w := &recordingWarner{}
	m := NewSessionMonitor(pb, 0, w)
	assert.Equal(t, 300*time.Second, m.Status().Interval)

	var seen []bool
	m.AddObserver(SessionFunc(func(valid bool) { seen = append(seen, valid) }))

	assert.True(t, m.ForceCheck(ctx))
	pb.SetSession(false)
	assert.False(t, m.ForceCheck(ctx))
	assert.False(t, m.ForceCheck(ctx))
	pb.SetSession(true)
	assert.True(t, m.ForceCheck(ctx))
	assert.True(t, m.ForceCheck(ctx))

	assert.Equal(t, []bool{true, false, false, true}, seen)
	assert.Len(t, w.texts, 1)

	st := m.Status()
	assert.True(t, st.Valid)
	assert.True(t, st.Checked)
	assert.Equal(t, 1, st.Observers)

	// The monitor never touches the session itself.
	assert.True(t, pb.IsSessionValid(ctx))
}

func TestSessionMonitorLoop(t *testing.T) {
	pb := paper.New(0)
	pb.SetSession(false)
	m := NewSessionMonitor(pb, 10*time.Millisecond, nil)

	var n int32
	m.AddObserver(SessionFunc(func(bool) { atomic.AddInt32(&n, 1) }))

	m.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&n) >= 2 }, time.Second, 5*time.Millisecond)
	m.Stop()
	assert.False(t, m.Status().Running)
	assert.False(t, m.Status().Valid)
}
