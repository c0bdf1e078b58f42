package kite

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient("key", "tok", WithBaseURL(server.URL), WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))
}

func TestNewClient(t *testing.T) {
	c := NewClient("key", "tok")
	assert.Equal(t, BaseURL, c.baseURL)
	assert.Equal(t, "NFO", c.exchange)
	assert.NotNil(t, c.httpClient)

	c = NewClient("key", "tok", WithExchange("BFO"), WithBaseURL("http://x/"))
	assert.Equal(t, "BFO", c.exchange)
	assert.Equal(t, "http://x", c.baseURL)
}

func TestLoginURLAndChecksum(t *testing.T) {
	u := LoginURL("abc")
	assert.True(t, strings.HasPrefix(u, LoginBaseURL+"?"))
	assert.Contains(t, u, "api_key=abc")
	assert.Contains(t, u, "v=3")

	sum := Checksum("k", "r", "s")
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, Checksum("k", "r", "s"))
	assert.NotEqual(t, sum, Checksum("k", "r", "x"))
}

func TestIsSessionValid(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/user/profile", r.URL.Path)
			assert.Equal(t, "token key:tok", r.Header.Get("Authorization"))
			assert.Equal(t, "3", r.Header.Get("X-Kite-Version"))
			w.Write([]byte(`{"status":"success","data":{"user_id":"AB1234"}}`))
		})
		assert.True(t, c.IsSessionValid(context.Background()))
	})

	t.Run("token exception", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"status":"error","message":"Incorrect api_key or access_token.","error_type":"TokenException"}`))
		})
		assert.False(t, c.IsSessionValid(context.Background()))

		_, err := c.Profile(context.Background())
		assert.True(t, errors.Is(err, broker.ErrSessionInvalid))
	})

	t.Run("empty token", func(t *testing.T) {
		c := NewClient("key", "")
		assert.False(t, c.IsSessionValid(context.Background()))
	})
}

func TestPlaceOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/regular", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "NIFTY24OCT1018500CE", r.PostForm.Get("tradingsymbol"))
		assert.Equal(t, "NFO", r.PostForm.Get("exchange"))
		assert.Equal(t, "BUY", r.PostForm.Get("transaction_type"))
		assert.Equal(t, "50", r.PostForm.Get("quantity"))
		assert.Equal(t, "MIS", r.PostForm.Get("product"))
		assert.Equal(t, "MARKET", r.PostForm.Get("order_type"))
		w.Write([]byte(`{"status":"success","data":{"order_id":"151220000000000"}}`))
	})

	fill, err := c.PlaceOrder(context.Background(), broker.OrderRequest{
		TradingSymbol: "NIFTY24OCT1018500CE",
		Quantity:      50,
		Side:          broker.Buy,
		Policy:        broker.IntradayMarket,
	})
	require.NoError(t, err)
	assert.Equal(t, "151220000000000", fill.OrderID)
	assert.Equal(t, 50, fill.Quantity)
}

func TestPlaceOrder_Validation(t *testing.T) {
	c := NewClient("key", "tok")
	_, err := c.PlaceOrder(context.Background(), broker.OrderRequest{Quantity: 1})
	assert.Error(t, err)
	_, err = c.PlaceOrder(context.Background(), broker.OrderRequest{TradingSymbol: "X"})
	assert.Error(t, err)
}

func TestPlaceOrder_InputException(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","message":"Invalid quantity","error_type":"InputException"}`))
	})

	_, err := c.PlaceOrder(context.Background(), broker.OrderRequest{
		TradingSymbol: "NIFTY24OCT1018500CE", Quantity: 7, Side: broker.Buy, Policy: broker.IntradayMarket,
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, broker.ErrSessionInvalid))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "InputException", apiErr.ErrorType)
}

func TestAvailableMargin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/margins", r.URL.Path)
		w.Write([]byte(`{"status":"success","data":{
			"equity":{"enabled":true,"available":{"cash":90000,"live_balance":85000.5}},
			"commodity":{"enabled":true,"available":{"cash":0,"live_balance":1000}}}}`))
	})

	m, err := c.AvailableMargin(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 86000.5, m, 1e-9)
}

func TestLTP(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/ltp", r.URL.Path)
		assert.ElementsMatch(t, []string{"NFO:NIFTY24OCT1018500CE", "NSE:NIFTY 50"}, r.URL.Query()["i"])
		w.Write([]byte(`{"status":"success","data":{
			"NFO:NIFTY24OCT1018500CE":{"instrument_token":1,"last_price":112.5},
			"NSE:NIFTY 50":{"instrument_token":256265,"last_price":18487.2}}}`))
	})

	prices, err := c.LTP(context.Background(), "NIFTY24OCT1018500CE", "NSE:NIFTY 50")
	require.NoError(t, err)
	assert.InDelta(t, 112.5, prices["NIFTY24OCT1018500CE"], 1e-9)
	assert.InDelta(t, 18487.2, prices["NSE:NIFTY 50"], 1e-9)
}

func TestCandles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instruments/historical/256265/5minute", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		w.Write([]byte(`{"status":"success","data":{"candles":[
			["2024-10-10T09:15:00+0530",18450,18490,18440,18480,0],
			["2024-10-10T09:20:00+0530",18480,18500,18470,18495,0]]}}`))
	})

	candles, err := c.CandlesFor(context.Background(), "NIFTY", Minute5, time.Hour)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.InDelta(t, 18495.0, candles[1].Close, 1e-9)
	assert.Equal(t, 9, candles[0].Time.In(time.FixedZone("IST", 19800)).Hour())

	_, err = c.CandlesFor(context.Background(), "RELIANCE", Minute5, time.Hour)
	assert.Error(t, err)
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient("key", "tok", WithBaseURL(url))
	_, err := c.AvailableMargin(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, broker.ErrNetwork))
}
