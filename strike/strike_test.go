package strike

import (
	"testing"
	"time"

	"github.com/rustyeddy/expiry/market"
	"github.com/stretchr/testify/assert"
)

func at(h, m int) time.Time {
	return time.Date(2024, time.October, 10, h, m, 0, 0, market.IST)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	s := NewSelector(DefaultWindows(), 1)

	tests := []struct {
		name       string
		symbol     string
		underlying float64
		dir        market.Direction
		now        time.Time
		want       int
		ok         bool
	}{
		{"morning bull extra otm", "NIFTY", 18487, market.Bull, at(10, 0), 18550, true},
		{"morning bear extra otm", "NIFTY", 18487, market.Bear, at(10, 0), 18400, true},
		{"midday atm", "NIFTY", 18487, market.Bull, at(12, 0), 18500, true},
		{"midday atm bear", "NIFTY", 18462, market.Bear, at(12, 0), 18450, true},
		{"afternoon bull itm", "NIFTY", 18487, market.Bull, at(14, 0), 18450, true},
		{"afternoon bear itm", "NIFTY", 18487, market.Bear, at(14, 0), 18500, true},
		{"banknifty step", "BANKNIFTY", 44321, market.Bull, at(10, 0), 44500, true},
		{"midcp step", "MIDCPNIFTY", 9012, market.Bull, at(14, 0), 9000, true},
		{"window boundary is afternoon", "NIFTY", 18487, market.Bull, at(13, 30), 18450, true},
		{"before open", "NIFTY", 18487, market.Bull, at(9, 0), 0, false},
		{"after afternoon", "NIFTY", 18487, market.Bull, at(15, 0), 0, false},
		{"no price", "NIFTY", 0, market.Bull, at(10, 0), 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := s.Select(tt.symbol, tt.underlying, tt.dir, tt.now)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMorningIsBeyondCeilAfternoonAtOrBelowFloor(t *testing.T) {
	t.Parallel()

	s := NewSelector(DefaultWindows(), 1)

	morning, ok := s.Select("NIFTY", 18487, market.Bull, at(9, 30))
	assert.True(t, ok)
	assert.Greater(t, morning, market.CeilStrike(18487, 50))

	afternoon, ok := s.Select("NIFTY", 18487, market.Bull, at(14, 30))
	assert.True(t, ok)
	assert.LessOrEqual(t, afternoon, market.FloorStrike(18487, 50))
}

func TestOTMSteps(t *testing.T) {
	t.Parallel()

	s := NewSelector(DefaultWindows(), 2)
	got, _ := s.Select("NIFTY", 18487, market.Bull, at(10, 0))
	assert.Equal(t, 18600, got)

	assert.Equal(t, 1, NewSelector(DefaultWindows(), 0).OTMSteps)
}

func TestWindows(t *testing.T) {
	t.Parallel()

	w := DefaultWindows()
	assert.False(t, w.Overlaps())

	w.Midday.Start = market.MustClock("11:00")
	assert.True(t, w.Overlaps())

	s := NewSelector(DefaultWindows(), 1)
	assert.Equal(t, "morning", s.Window(at(9, 15)))
	assert.Equal(t, "midday", s.Window(at(11, 30)))
	assert.Equal(t, "", s.Window(at(15, 10)))
}
