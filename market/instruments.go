// market/instruments.go
package market

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// InstrumentMeta describes the derivative contract parameters of an index.
type InstrumentMeta struct {
	Name       string
	LotSize    int
	StrikeStep int
	Exchange   string
}

var Instruments = map[string]InstrumentMeta{
	"NIFTY": {
		Name:       "NIFTY",
		LotSize:    50,
		StrikeStep: 50,
		Exchange:   "NFO",
	},
	"BANKNIFTY": {
		Name:       "BANKNIFTY",
		LotSize:    15,
		StrikeStep: 100,
		Exchange:   "NFO",
	},
	"FINNIFTY": {
		Name:       "FINNIFTY",
		LotSize:    40,
		StrikeStep: 50,
		Exchange:   "NFO",
	},
	"MIDCPNIFTY": {
		Name:       "MIDCPNIFTY",
		LotSize:    75,
		StrikeStep: 25,
		Exchange:   "NFO",
	},
	"SENSEX": {
		Name:       "SENSEX",
		LotSize:    10,
		StrikeStep: 100,
		Exchange:   "BFO",
	},
	"BANKEX": {
		Name:       "BANKEX",
		LotSize:    15,
		StrikeStep: 100,
		Exchange:   "BFO",
	},
}

const (
	defaultLotSize    = 1
	defaultStrikeStep = 50
)

// BaseSymbol strips any "_suffix" and upper-cases the symbol.
func BaseSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[:i]
	}
	return s
}

// Lookup returns the instrument metadata for symbol. Unknown symbols get a
// lot size of 1 and a 50 point strike step.
func Lookup(symbol string) (InstrumentMeta, bool) {
	base := BaseSymbol(symbol)
	meta, ok := Instruments[base]
	if !ok {
		return InstrumentMeta{Name: base, LotSize: defaultLotSize, StrikeStep: defaultStrikeStep, Exchange: "NFO"}, false
	}
	return meta, true
}

func LotSize(symbol string) int {
	m, _ := Lookup(symbol)
	return m.LotSize
}

func StrikeStep(symbol string) int {
	m, _ := Lookup(symbol)
	return m.StrikeStep
}

// RoundStrike rounds price to the nearest multiple of step.
func RoundStrike(price float64, step int) int {
	s := float64(step)
	return int(math.Round(price/s) * s)
}

// CeilStrike returns the smallest multiple of step that is >= price.
func CeilStrike(price float64, step int) int {
	s := float64(step)
	return int(math.Ceil(price/s) * s)
}

// FloorStrike returns the largest multiple of step that is <= price.
func FloorStrike(price float64, step int) int {
	s := float64(step)
	return int(math.Floor(price/s) * s)
}

var monthNames = [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// OptionSymbol builds an exchange trading symbol such as NIFTY24OCT1018500CE.
func OptionSymbol(underlying string, expiry time.Time, strike int, side Side) string {
	return fmt.Sprintf("%s%02d%s%02d%d%s",
		BaseSymbol(underlying),
		expiry.Year()%100,
		monthNames[expiry.Month()-1],
		expiry.Day(),
		strike,
		side.Code(),
	)
}
