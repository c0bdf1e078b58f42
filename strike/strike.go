// Package strike maps an underlying price, a direction and the time of day
// to an option strike.
package strike

import (
	"time"

	"github.com/rustyeddy/expiry/market"
)

// Windows partitions the session. They must not overlap.
type Windows struct {
	Morning   market.Window
	Midday    market.Window
	Afternoon market.Window
}

func DefaultWindows() Windows {
	return Windows{
		Morning:   market.Window{Start: market.MustClock("09:15"), End: market.MustClock("11:30")},
		Midday:    market.Window{Start: market.MustClock("11:30"), End: market.MustClock("13:30")},
		Afternoon: market.Window{Start: market.MustClock("13:30"), End: market.MustClock("15:00")},
	}
}

// Overlaps reports whether any two windows intersect.
func (w Windows) Overlaps() bool {
	ws := []market.Window{w.Morning, w.Midday, w.Afternoon}
	for i := 0; i < len(ws); i++ {
		for j := i + 1; j < len(ws); j++ {
			if ws[i].Start < ws[j].End && ws[j].Start < ws[i].End {
				return true
			}
		}
	}
	return false
}

type Selector struct {
	Windows Windows
	// OTMSteps is how many extra steps out of the money the morning
	// window goes.
	OTMSteps int
}

func NewSelector(w Windows, otmSteps int) *Selector {
	if otmSteps < 1 {
		otmSteps = 1
	}
	return &Selector{Windows: w, OTMSteps: otmSteps}
}

// Window names the window containing now, or "" outside all of them.
func (s *Selector) Window(now time.Time) string {
	c := market.ClockOf(now)
	switch {
	case s.Windows.Morning.Contains(c):
		return "morning"
	case s.Windows.Midday.Contains(c):
		return "midday"
	case s.Windows.Afternoon.Contains(c):
		return "afternoon"
	}
	return ""
}

// Select returns the strike for symbol, or false outside every window.
//
// Morning goes OTMSteps further out of the money than the first OTM
// strike, midday takes the nearest strike, afternoon the first strike in
// the money.
func (s *Selector) Select(symbol string, underlying float64, dir market.Direction, now time.Time) (int, bool) {
	if underlying <= 0 {
		return 0, false
	}
	step := market.StrikeStep(symbol)

	switch s.Window(now) {
	case "morning":
		extra := s.OTMSteps * step
		if dir == market.Bull {
			return market.CeilStrike(underlying, step) + extra, true
		}
		return market.FloorStrike(underlying, step) - extra, true
	case "midday":
		return market.RoundStrike(underlying, step), true
	case "afternoon":
		if dir == market.Bull {
			return market.FloorStrike(underlying, step), true
		}
		return market.CeilStrike(underlying, step), true
	}
	return 0, false
}
