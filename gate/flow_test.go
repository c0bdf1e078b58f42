package gate

import (
	"testing"

	"github.com/rustyeddy/expiry/market"
	"github.com/stretchr/testify/assert"
)

func TestAnalyzeFlow(t *testing.T) {
	t.Parallel()

	cfg := DefaultFlowConfig()

	bull := AnalyzeFlow(bullSnapshot(), cfg)
	assert.InDelta(t, 500.0/1600.0, bull.PCR, 1e-9)
	assert.InDelta(t, 500.0/1600.0, bull.PESkew, 1e-9)
	assert.InDelta(t, 1400.0/1600.0, bull.VelCE, 1e-9)
	assert.True(t, bull.Bull)
	assert.False(t, bull.Bear)
	side, ok := bull.Side()
	assert.True(t, ok)
	assert.Equal(t, market.Bull, side)

	bear := AnalyzeFlow(bearSnapshot(), cfg)
	assert.True(t, bear.Bear)
	assert.False(t, bear.Bull)
	assert.InDelta(t, 1600.0/500.0, bear.PCR, 1e-9)

	neutral := AnalyzeFlow(neutralSnapshot(), cfg)
	assert.False(t, neutral.Confirms())
	_, ok = neutral.Side()
	assert.False(t, ok)
}

func TestAnalyzeFlowEmptyAndOneSided(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Flow{}, AnalyzeFlow(market.Snapshot{}, DefaultFlowConfig()))

	// No calls at all: ratios with a zero denominator are zero, not Inf.
	snap := market.Snapshot{
		Symbol: "NIFTY", UnderlyingLast: 18500, ATM: 18500, Step: 50,
		Strikes: []market.StrikeLevel{lvl(18500, market.Put, 100)},
	}
	f := AnalyzeFlow(snap, DefaultFlowConfig())
	assert.Equal(t, 0.0, f.PCR)
	assert.Equal(t, 0.0, f.PESkew)
	assert.Equal(t, 0.0, f.VelCE)
	assert.InDelta(t, 1.0, f.VelPE, 1e-9)
	assert.False(t, f.Confirms())
}
