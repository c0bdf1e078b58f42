// Package health runs the supervisor and broker session monitor loops.
package health

import "time"

// State is the value of one health axis or of the overall status.
type State string

const (
	Unknown          State = "UNKNOWN"
	Healthy          State = "HEALTHY"
	Degraded         State = "DEGRADED"
	Error            State = "ERROR"
	Active           State = "ACTIVE"
	Idle             State = "IDLE"
	Connected        State = "CONNECTED"
	NotAuthenticated State = "NOT_AUTHENTICATED"
)

func (s State) good() bool {
	switch s {
	case Healthy, Active, Idle, Connected, NotAuthenticated:
		return true
	}
	return false
}

// level maps a state to the expiry_health_state gauge.
func (s State) level() float64 {
	switch {
	case s == Error:
		return 2
	case s.good():
		return 0
	}
	return 1
}

// Overall folds the three axes: HEALTHY when all are good, ERROR when any
// is ERROR, DEGRADED otherwise.
func Overall(system, trading, api State) State {
	axes := []State{system, trading, api}
	all := true
	for _, s := range axes {
		if s == Error {
			return Error
		}
		all = all && s.good()
	}
	if all {
		return Healthy
	}
	return Degraded
}

const (
	CategorySystem  = "SYSTEM"
	CategoryTrading = "TRADING"
	CategoryAPI     = "API"
	CategorySession = "SESSION"

	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

type Alert struct {
	Time     time.Time
	Category string
	Severity string
	Message  string
}

// AlertObserver receives every alert the supervisor raises.
type AlertObserver interface {
	OnAlert(Alert)
}

type AlertFunc func(Alert)

func (f AlertFunc) OnAlert(a Alert) { f(a) }
