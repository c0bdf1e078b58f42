package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rustyeddy/expiry/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryString(t *testing.T) {
	e := Entry{
		Symbol:     "NIFTY",
		Side:       market.Call,
		Strike:     18550,
		Underlying: 18487.25,
		Quantity:   100,
		Premium:    42.5,
		OrderID:    "K1",
		Direction:  market.Bull,
	}
	s := e.String()
	assert.Contains(t, s, "NIFTY CALL Trade Alert")
	assert.Contains(t, s, "Strike: 18550 CE")
	assert.Contains(t, s, "Qty: 100 @ ~42.50")
	assert.Contains(t, s, "Order: K1")
	assert.Contains(t, s, "▲")

	e.Side, e.Direction, e.OrderID, e.Status = market.Put, market.Bear, "", "queued"
	s = e.String()
	assert.Contains(t, s, "PUT")
	assert.Contains(t, s, "Order: queued")
	assert.Contains(t, s, "▼")
}

func TestTelegramSend(t *testing.T) {
	var got struct{ path, chat, text string }
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got.path = r.URL.Path
		got.chat = r.PostForm.Get("chat_id")
		got.text = r.PostForm.Get("text")
	}))
	defer server.Close()

	tg := NewTelegram("tok", "42")
	tg.BaseURL = server.URL

	require.NoError(t, tg.Send(context.Background(), "hello"))
	assert.Equal(t, "/bottok/sendMessage", got.path)
	assert.Equal(t, "42", got.chat)
	assert.Equal(t, "hello", got.text)

	tg.NotifyWarning(context.Background(), "session invalid")
	assert.Equal(t, "⚠️ session invalid", got.text)
}

func TestTelegramFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tg := NewTelegram("bad", "42")
	tg.BaseURL = server.URL
	assert.Error(t, tg.Send(context.Background(), "x"))
	assert.NotPanics(t, func() { tg.NotifyEntry(context.Background(), Entry{Symbol: "NIFTY"}) })

	assert.Error(t, NewTelegram("", "").Send(context.Background(), "x"))
}

type captured struct{ warnings []string }

func (c *captured) NotifyEntry(context.Context, Entry) {}
func (c *captured) NotifyWarning(_ context.Context, s string) {
	c.warnings = append(c.warnings, s)
}

func TestMulti(t *testing.T) {
	a, b := &captured{}, &captured{}
	m := Multi{a, Log{}, b}
	m.NotifyWarning(context.Background(), "w")
	m.NotifyEntry(context.Background(), Entry{})
	assert.Equal(t, []string{"w"}, a.warnings)
	assert.Equal(t, []string{"w"}, b.warnings)
}
