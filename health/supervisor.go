package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/execution"
	"github.com/rustyeddy/expiry/internal/observer"
	"github.com/rustyeddy/expiry/metrics"
)

// Performance is the trading figure set checked each tick.
type Performance struct {
	DailyRealized float64
	Unrealized    float64
	OpenPositions int
	Utilization   float64 // percent of max position size
}

type PerformanceSource interface {
	Performance() Performance
}

type PerformanceFunc func() Performance

func (f PerformanceFunc) Performance() Performance { return f() }

// Pinger probes the market data provider.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

type Flusher interface {
	Flush(ctx context.Context) execution.FlushResult
	Len() int
}

// Thresholds are percentages except MaxDailyLoss (rupees, positive) and
// APITimeout.
type Thresholds struct {
	CPU            float64
	Memory         float64
	Disk           float64
	MaxDailyLoss   float64
	MaxUtilization float64
	APITimeout     time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CPU:            80,
		Memory:         80,
		Disk:           90,
		MaxDailyLoss:   5000,
		MaxUtilization: 90,
		APITimeout:     30 * time.Second,
	}
}

type Config struct {
	Interval   time.Duration
	Grace      time.Duration
	MaxAlerts  int
	Thresholds Thresholds
}

func DefaultConfig() Config {
	return Config{
		Interval:   60 * time.Second,
		Grace:      5 * time.Second,
		MaxAlerts:  500,
		Thresholds: DefaultThresholds(),
	}
}

// Deps are the collaborators sampled each tick. A nil Host skips the
// resource check and a nil Queue disables flushing.
type Deps struct {
	Host        HostSampler
	Performance PerformanceSource
	Data        Pinger
	Broker      broker.Broker
	Queue       Flusher
}

// Sample is the result of one supervisor tick.
type Sample struct {
	Time          time.Time
	System        State
	Trading       State
	API           State
	Overall       State
	Host          HostUsage
	Performance   Performance
	DataLatency   time.Duration
	BrokerLatency time.Duration
	Flushed       *execution.FlushResult
}

// Status is the read-only summary shown to operators.
type Status struct {
	Overall      State
	System       State
	Trading      State
	API          State
	LastCheck    time.Time
	Running      bool
	RecentAlerts int // last hour
	TotalAlerts  int
}

type Supervisor struct {
	cfg  Config
	deps Deps

	// checkMu serializes ticks.
	checkMu sync.Mutex

	mu        sync.Mutex
	system    State
	trading   State
	api       State
	lastCheck time.Time
	alerts    []Alert

	observers observer.Registry[AlertObserver]

	loop runner
}

func NewSupervisor(cfg Config, deps Deps) *Supervisor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultConfig().Grace
	}
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = DefaultConfig().MaxAlerts
	}
	return &Supervisor{
		cfg:     cfg,
		deps:    deps,
		system:  Unknown,
		trading: Unknown,
		api:     Unknown,
	}
}

// AddObserver registers o. The returned id removes it again.
func (s *Supervisor) AddObserver(o AlertObserver) observer.ID {
	return s.observers.Add(o)
}

func (s *Supervisor) RemoveObserver(id observer.ID) bool {
	return s.observers.Remove(id)
}

// Start runs Check every interval until Stop or ctx is done.
func (s *Supervisor) Start(ctx context.Context) {
	if s.loop.start(ctx, "supervisor", s.cfg.Interval, func(ctx context.Context) { s.Check(ctx) }) {
		slog.Info("supervisor started", slog.Duration("interval", s.cfg.Interval))
	}
}

func (s *Supervisor) Stop() {
	s.loop.stop(s.cfg.Grace)
}

// Check samples every axis once. It never fails; problems become alerts
// and axis states.
func (s *Supervisor) Check(ctx context.Context) Sample {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	sample := Sample{Time: time.Now()}
	sample.System, sample.Host = s.checkSystem(ctx)
	sample.Trading, sample.Performance = s.checkTrading()
	sample.API, sample.DataLatency, sample.BrokerLatency = s.checkAPI(ctx)
	sample.Overall = Overall(sample.System, sample.Trading, sample.API)

	s.mu.Lock()
	prevAPI := s.api
	s.system, s.trading, s.api = sample.System, sample.Trading, sample.API
	s.lastCheck = sample.Time
	s.mu.Unlock()

	metrics.HealthState.WithLabelValues("system").Set(sample.System.level())
	metrics.HealthState.WithLabelValues("trading").Set(sample.Trading.level())
	metrics.HealthState.WithLabelValues("api").Set(sample.API.level())

	// Queued orders are retried on every connected tick.
	if sample.API == Connected && s.deps.Queue != nil && s.deps.Queue.Len() > 0 {
		res := s.deps.Queue.Flush(ctx)
		sample.Flushed = &res
		slog.Info("broker connected, queue flushed",
			slog.Bool("reconnected", prevAPI != Connected),
			slog.Int("placed", res.Placed),
			slog.Int("failed", res.Failed),
			slog.Int("remaining", res.Remaining))
	}

	slog.Debug("health check",
		slog.String("overall", string(sample.Overall)),
		slog.String("system", string(sample.System)),
		slog.String("trading", string(sample.Trading)),
		slog.String("api", string(sample.API)))
	return sample
}

func (s *Supervisor) checkSystem(ctx context.Context) (State, HostUsage) {
	if s.deps.Host == nil {
		return Healthy, HostUsage{}
	}
	u, err := s.deps.Host.Sample(ctx)
	if err != nil {
		slog.Error("resource sample failed", slog.String("err", err.Error()))
		return Error, u
	}

	th := s.cfg.Thresholds
	state := Healthy
	if u.CPU > th.CPU {
		s.raise(CategorySystem, SeverityWarning, fmt.Sprintf("High CPU usage: %.1f%%", u.CPU))
		state = Degraded
	}
	if u.Memory > th.Memory {
		s.raise(CategorySystem, SeverityWarning, fmt.Sprintf("High memory usage: %.1f%%", u.Memory))
		state = Degraded
	}
	if u.Disk > th.Disk {
		s.raise(CategorySystem, SeverityCritical, fmt.Sprintf("High disk usage: %.1f%%", u.Disk))
		state = Degraded
	}
	return state, u
}

func (s *Supervisor) checkTrading() (State, Performance) {
	if s.deps.Performance == nil {
		return Idle, Performance{}
	}
	p := s.deps.Performance.Performance()
	th := s.cfg.Thresholds

	state := Idle
	if p.OpenPositions > 0 {
		state = Active
	}
	if th.MaxDailyLoss > 0 && p.DailyRealized <= -th.MaxDailyLoss {
		s.raise(CategoryTrading, SeverityCritical,
			fmt.Sprintf("Daily loss threshold breached: %.2f (limit %.2f)", p.DailyRealized, -th.MaxDailyLoss))
		state = Error
	}
	if th.MaxUtilization > 0 && p.Utilization > th.MaxUtilization {
		s.raise(CategoryTrading, SeverityWarning,
			fmt.Sprintf("High risk utilization: %.1f%% (ceiling %.1f%%)", p.Utilization, th.MaxUtilization))
	}
	return state, p
}

func (s *Supervisor) checkAPI(ctx context.Context) (State, time.Duration, time.Duration) {
	timeout := s.cfg.Thresholds.APITimeout
	state := Connected

	var dataLatency time.Duration
	if s.deps.Data != nil {
		d, err := s.deps.Data.Ping(ctx)
		dataLatency = d
		if err != nil {
			slog.Warn("market data probe failed", slog.String("err", err.Error()))
			s.raise(CategoryAPI, SeverityWarning, "Market data API unreachable: "+err.Error())
			state = Error
		} else if timeout > 0 && d > timeout {
			s.raise(CategoryAPI, SeverityWarning, fmt.Sprintf("Slow market data API response: %.2fs", d.Seconds()))
		}
	}

	if s.deps.Broker == nil {
		return state, dataLatency, 0
	}
	if !s.deps.Broker.IsSessionValid(ctx) {
		if state == Error {
			return Error, dataLatency, 0
		}
		return NotAuthenticated, dataLatency, 0
	}

	start := time.Now()
	_, err := s.deps.Broker.AvailableMargin(ctx)
	brokerLatency := time.Since(start)
	if err != nil {
		slog.Warn("broker margin probe failed", slog.String("err", err.Error()))
		s.raise(CategoryAPI, SeverityWarning, "Broker API error: "+err.Error())
		return Error, dataLatency, brokerLatency
	}
	if timeout > 0 && brokerLatency > timeout {
		s.raise(CategoryAPI, SeverityWarning, fmt.Sprintf("Slow broker API response: %.2fs", brokerLatency.Seconds()))
	}
	return state, dataLatency, brokerLatency
}

// raise records an alert and fans it out. Observer panics are logged and
// swallowed.
func (s *Supervisor) raise(category, severity, msg string) {
	a := Alert{Time: time.Now(), Category: category, Severity: severity, Message: msg}

	s.mu.Lock()
	s.alerts = append(s.alerts, a)
	if over := len(s.alerts) - s.cfg.MaxAlerts; over > 0 {
		s.alerts = append([]Alert(nil), s.alerts[over:]...)
	}
	s.mu.Unlock()

	metrics.Alerts.WithLabelValues(category, severity).Inc()
	slog.Warn("alert",
		slog.String("category", category),
		slog.String("severity", severity),
		slog.String("message", msg))

	for _, o := range s.observers.Snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("alert observer panicked", slog.Any("panic", r))
				}
			}()
			o.OnAlert(a)
		}()
	}
}

// RecentAlerts returns alerts newer than window, oldest first.
func (s *Supervisor) RecentAlerts(window time.Duration) []Alert {
	cutoff := time.Now().Add(-window)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Alert
	for _, a := range s.alerts {
		if a.Time.After(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Supervisor) ClearAlerts() {
	s.mu.Lock()
	s.alerts = nil
	s.mu.Unlock()
	slog.Info("alerts cleared")
}

func (s *Supervisor) Summary() Status {
	recent := len(s.RecentAlerts(time.Hour))

	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Overall:      Overall(s.system, s.trading, s.api),
		System:       s.system,
		Trading:      s.trading,
		API:          s.api,
		LastCheck:    s.lastCheck,
		Running:      s.loop.running(),
		RecentAlerts: recent,
		TotalAlerts:  len(s.alerts),
	}
}
