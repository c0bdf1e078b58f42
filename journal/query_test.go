package journal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	open := time.Date(2024, 10, 10, 4, 0, 0, 0, time.UTC)
	close := time.Date(2024, 10, 10, 6, 30, 0, 0, time.UTC)

	expected := TradeRecord{
		TradeID:       "T123",
		Symbol:        "NIFTY",
		TradingSymbol: "NIFTY24OCT1018500CE",
		Side:          "BUY",
		Quantity:      50,
		EntryPrice:    18500,
		ExitPrice:     18600,
		OpenTime:      open,
		CloseTime:     close,
		RealizedPnL:   5000,
		Strategy:      "expiry-momentum",
		Reason:        "target",
	}
	require.NoError(t, j.RecordTrade(expected))

	actual, err := j.GetTrade("T123")
	require.NoError(t, err)

	assert.Equal(t, expected.TradeID, actual.TradeID)
	assert.Equal(t, expected.TradingSymbol, actual.TradingSymbol)
	assert.Equal(t, expected.Quantity, actual.Quantity)
	assert.InDelta(t, expected.EntryPrice, actual.EntryPrice, 1e-9)
	assert.InDelta(t, expected.ExitPrice, actual.ExitPrice, 1e-9)
	assert.True(t, actual.OpenTime.Equal(expected.OpenTime))
	assert.True(t, actual.CloseTime.Equal(expected.CloseTime))
	assert.InDelta(t, expected.RealizedPnL, actual.RealizedPnL, 1e-6)
	assert.Equal(t, expected.Strategy, actual.Strategy)
}

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.GetTrade("nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"A", "B", "C"} {
		ct := base.Add(time.Duration(i*12) * time.Hour)
		require.NoError(t, j.RecordTrade(TradeRecord{TradeID: id, Symbol: "NIFTY", OpenTime: ct, CloseTime: ct}))
	}

	got, err := j.ListTradesClosedBetween(base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].TradeID)
	assert.Equal(t, "B", got[1].TradeID)

	// End is exclusive.
	got, err = j.ListTradesClosedBetween(base, base.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize(time.Time{}, []TradeRecord{
		{RealizedPnL: 5000},
		{RealizedPnL: -2000},
		{RealizedPnL: 1000},
		{RealizedPnL: 0},
	})

	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 4000.0, s.NetPnL, 1e-9)
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
	assert.InDelta(t, 3.0, s.ProfitFactor, 1e-9)

	empty := Summarize(time.Time{}, nil)
	assert.Equal(t, 0.0, empty.WinRate)
	assert.Equal(t, 0.0, empty.ProfitFactor)
}

func TestDay(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	ist := time.FixedZone("IST", 19800)
	in := time.Date(2024, 10, 10, 10, 0, 0, 0, ist)
	late := time.Date(2024, 10, 10, 23, 59, 0, 0, ist)
	next := time.Date(2024, 10, 11, 0, 1, 0, 0, ist)

	require.NoError(t, j.RecordTrade(TradeRecord{TradeID: "1", OpenTime: in, CloseTime: in, RealizedPnL: 100}))
	require.NoError(t, j.RecordTrade(TradeRecord{TradeID: "2", OpenTime: late, CloseTime: late, RealizedPnL: -40}))
	require.NoError(t, j.RecordTrade(TradeRecord{TradeID: "3", OpenTime: next, CloseTime: next, RealizedPnL: 7}))

	s, err := j.Day(in, ist)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Trades)
	assert.InDelta(t, 60.0, s.NetPnL, 1e-9)
}
