package market

import (
	"fmt"
	"math"
	"strings"
)

// Side is the option type of a strike level.
type Side int

const (
	Call Side = iota
	Put
)

func (s Side) String() string {
	switch s {
	case Call:
		return "CALL"
	case Put:
		return "PUT"
	default:
		return "UNKNOWN"
	}
}

// Code returns the exchange suffix, CE or PE.
func (s Side) Code() string {
	if s == Put {
		return "PE"
	}
	return "CE"
}

func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "CE", "C":
		return Call, nil
	case "PUT", "PE", "P":
		return Put, nil
	}
	return Call, fmt.Errorf("unknown option side %q", s)
}

// Direction is the directional bias of a trade.
type Direction int

const (
	Bull Direction = iota
	Bear
)

func (d Direction) String() string {
	if d == Bear {
		return "BEAR"
	}
	return "BULL"
}

// OptionSide is the option bought to express the direction.
func (d Direction) OptionSide() Side {
	if d == Bear {
		return Put
	}
	return Call
}

// StrikeLevel is the open interest and traded volume of one side of a strike.
type StrikeLevel struct {
	Strike       int
	Side         Side
	OpenInterest float64
	Volume       float64
}

// Snapshot is an option chain cut around the at-the-money strike. It is
// never mutated after the data provider builds it.
type Snapshot struct {
	Symbol         string
	UnderlyingLast float64
	ATM            int
	Step           int
	Strikes        []StrikeLevel
}

// Empty reports whether the snapshot carries no usable chain.
func (s Snapshot) Empty() bool {
	return s.ATM == 0 || s.UnderlyingLast <= 0 || len(s.Strikes) == 0
}

// Band returns the levels of side whose strike is within band steps of ATM.
func (s Snapshot) Band(band int, side Side) []StrikeLevel {
	step := s.Step
	if step <= 0 {
		step = StrikeStep(s.Symbol)
	}
	limit := float64(band * step)
	var out []StrikeLevel
	for _, lvl := range s.Strikes {
		if lvl.Side != side {
			continue
		}
		if math.Abs(float64(lvl.Strike-s.ATM)) <= limit {
			out = append(out, lvl)
		}
	}
	return out
}

// BandOI sums open interest of side within band steps of ATM.
func (s Snapshot) BandOI(band int, side Side) float64 {
	total := 0.0
	for _, lvl := range s.Band(band, side) {
		total += lvl.OpenInterest
	}
	return total
}

// BandVolume sums traded volume of side within band steps of ATM.
func (s Snapshot) BandVolume(band int, side Side) float64 {
	total := 0.0
	for _, lvl := range s.Band(band, side) {
		total += lvl.Volume
	}
	return total
}
