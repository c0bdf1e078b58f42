package market

import (
	"fmt"
	"time"
)

// IST is Indian Standard Time. All session times are expressed in it.
var IST = loadIST()

func loadIST() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}

// Clock is a time of day in minutes after midnight.
type Clock int

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse clock %q: out of range", s)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for literals.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the IST time of day of t.
func ClockOf(t time.Time) Clock {
	t = t.In(IST)
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is a half-open time-of-day interval [Start, End).
type Window struct {
	Start Clock
	End   Clock
}

func (w Window) Contains(c Clock) bool {
	return c >= w.Start && c < w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Session names, as reported by the status command.
const (
	SessionPreMarket  = "PRE_MARKET"
	SessionOpen       = "MARKET_HOURS"
	SessionPostMarket = "POST_MARKET_CLOSED"
	SessionPreClosed  = "PRE_MARKET_CLOSED"
	SessionWeekend    = "WEEKEND_CLOSED"
)

// Hours is the regular trading session.
type Hours struct {
	PreOpen Clock
	Open    Clock
	Close   Clock
}

// DefaultHours is the NSE cash/derivatives session.
var DefaultHours = Hours{
	PreOpen: MustClock("09:00"),
	Open:    MustClock("09:15"),
	Close:   MustClock("15:30"),
}

func IsTradingDay(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (h Hours) IsOpen(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	c := ClockOf(t)
	return c >= h.Open && c <= h.Close
}

func (h Hours) SessionName(t time.Time) string {
	if !IsTradingDay(t) {
		return SessionWeekend
	}
	c := ClockOf(t)
	switch {
	case c >= h.PreOpen && c < h.Open:
		return SessionPreMarket
	case c >= h.Open && c <= h.Close:
		return SessionOpen
	case c > h.Close:
		return SessionPostMarket
	default:
		return SessionPreClosed
	}
}

// TradingDate returns the IST calendar date of t at midnight.
func TradingDate(t time.Time) time.Time {
	y, m, d := t.In(IST).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, IST)
}
