package journal

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDayReport(t *testing.T) {
	t.Parallel()

	ist := time.FixedZone("IST", 19800)
	open := time.Date(2024, 10, 10, 10, 5, 0, 0, ist)
	close := open.Add(30 * time.Minute)

	s := Summarize(time.Date(2024, 10, 10, 0, 0, 0, 0, ist), []TradeRecord{{
		TradeID: "T1", TradingSymbol: "NIFTY24OCT1018500CE", Side: "BUY", Quantity: 50,
		EntryPrice: 100, ExitPrice: 120, OpenTime: open, CloseTime: close, RealizedPnL: 1000, Reason: "target",
	}})

	var buf bytes.Buffer
	require.NoError(t, WriteDayReport(&buf, s, ist))
	out := buf.String()

	assert.Contains(t, out, "* DAY 2024-10-10 Thu")
	assert.Contains(t, out, ":TRADES:      1")
	assert.Contains(t, out, ":NET_PNL:     1000.00")
	assert.Contains(t, out, ":PROFIT_FAC:  -")
	assert.Contains(t, out, "| T1 | NIFTY24OCT1018500CE | BUY | 50 | 100.00 | 120.00 | 10:05 | 10:35 | 1000.00 | target |")
}

func TestWriteDayReportEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteDayReport(&buf, Summarize(time.Date(2024, 10, 12, 0, 0, 0, 0, time.UTC), nil), nil))
	assert.Contains(t, buf.String(), ":TRADES:      0")
	assert.NotContains(t, buf.String(), "| id |")
}
