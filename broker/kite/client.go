package kite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/market"
)

const (
	// BaseURL is the Kite Connect REST endpoint.
	BaseURL = "https://api.kite.trade"
	// LoginBaseURL is where the user completes the manual login.
	LoginBaseURL = "https://kite.zerodha.com/connect/login"

	apiVersion = "3"
)

// Interval is a historical candle interval.
type Interval string

const (
	Minute   Interval = "minute"
	Minute3  Interval = "3minute"
	Minute5  Interval = "5minute"
	Minute15 Interval = "15minute"
	Hour     Interval = "60minute"
	Day      Interval = "day"
)

// IndexTokens maps index names to their instrument tokens for historical data.
var IndexTokens = map[string]int{
	"NIFTY":      256265,
	"BANKNIFTY":  260105,
	"FINNIFTY":   257801,
	"MIDCPNIFTY": 288009,
	"SENSEX":     265,
	"BANKEX":     274441,
}

// Client is a Kite Connect API client. It never performs the login
// handshake; the access token is supplied by the operator.
type Client struct {
	baseURL     string
	apiKey      string
	accessToken string
	exchange    string
	httpClient  *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

// WithExchange sets the exchange used for symbols given without a prefix.
func WithExchange(ex string) Option { return func(c *Client) { c.exchange = ex } }

// NewClient creates a Kite client for apiKey and accessToken.
func NewClient(apiKey, accessToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:     BaseURL,
		apiKey:      apiKey,
		accessToken: accessToken,
		exchange:    "NFO",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LoginURL returns the URL the operator opens to obtain a request token.
func LoginURL(apiKey string) string {
	q := url.Values{}
	q.Set("v", apiVersion)
	q.Set("api_key", apiKey)
	return LoginBaseURL + "?" + q.Encode()
}

// Checksum is the session token exchange checksum.
func Checksum(apiKey, requestToken, apiSecret string) string {
	sum := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(sum[:])
}

// envelope is the standard Kite response wrapper.
type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

// APIError is a non-success Kite response.
type APIError struct {
	StatusCode int
	ErrorType  string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kite API error (status %d, %s): %s", e.StatusCode, e.ErrorType, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	apiURL := c.baseURL + path

	var body io.Reader
	if method == http.MethodPost && form != nil {
		body = strings.NewReader(form.Encode())
	} else if form != nil {
		apiURL += "?" + form.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Kite-Version", apiVersion)
	req.Header.Set("Authorization", "token "+c.apiKey+":"+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, broker.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w: %v", method, path, broker.ErrNetwork, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || env.Status != "success" {
		apiErr := &APIError{StatusCode: resp.StatusCode, ErrorType: env.ErrorType, Message: env.Message}
		if env.ErrorType == "TokenException" || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", broker.ErrSessionInvalid, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// Profile is the subset of /user/profile used for session probing.
type Profile struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Broker   string `json:"broker"`
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/user/profile", nil, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// IsSessionValid probes the profile endpoint. Any failure counts as invalid.
func (c *Client) IsSessionValid(ctx context.Context) bool {
	if c.accessToken == "" {
		return false
	}
	if _, err := c.Profile(ctx); err != nil {
		slog.Debug("kite session probe failed", slog.String("err", err.Error()))
		return false
	}
	return true
}

// PlaceOrder places a regular DAY order.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderFill, error) {
	if req.TradingSymbol == "" {
		return broker.OrderFill{}, fmt.Errorf("place order: trading symbol is required")
	}
	if req.Quantity <= 0 {
		return broker.OrderFill{}, fmt.Errorf("place order: quantity must be > 0, got %d", req.Quantity)
	}
	exchange := req.Exchange
	if exchange == "" {
		exchange = c.exchange
	}

	form := url.Values{}
	form.Set("tradingsymbol", req.TradingSymbol)
	form.Set("exchange", exchange)
	form.Set("transaction_type", string(req.Side))
	form.Set("quantity", strconv.Itoa(req.Quantity))
	form.Set("product", req.Product)
	form.Set("order_type", req.OrderType)
	form.Set("validity", "DAY")

	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders/regular", form, &out); err != nil {
		return broker.OrderFill{}, fmt.Errorf("place order %s: %w", req.TradingSymbol, err)
	}

	return broker.OrderFill{
		OrderID:       out.OrderID,
		TradingSymbol: req.TradingSymbol,
		Quantity:      req.Quantity,
		Side:          req.Side,
	}, nil
}

type segmentMargin struct {
	Enabled   bool    `json:"enabled"`
	Net       float64 `json:"net"`
	Available struct {
		Cash        float64 `json:"cash"`
		LiveBalance float64 `json:"live_balance"`
	} `json:"available"`
}

// AvailableMargin returns the live balance across equity and commodity segments.
func (c *Client) AvailableMargin(ctx context.Context) (float64, error) {
	var out map[string]segmentMargin
	if err := c.do(ctx, http.MethodGet, "/user/margins", nil, &out); err != nil {
		return 0, fmt.Errorf("margins: %w", err)
	}
	total := 0.0
	for _, seg := range []string{"equity", "commodity"} {
		if m, ok := out[seg]; ok {
			total += m.Available.LiveBalance
		}
	}
	return total, nil
}

func (c *Client) qualify(symbol string) string {
	if strings.Contains(symbol, ":") {
		return symbol
	}
	return c.exchange + ":" + symbol
}

// LTP returns last traded prices keyed by the symbols as given.
func (c *Client) LTP(ctx context.Context, symbols ...string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}
	q := url.Values{}
	for _, s := range symbols {
		q.Add("i", c.qualify(s))
	}

	var out map[string]struct {
		InstrumentToken int     `json:"instrument_token"`
		LastPrice       float64 `json:"last_price"`
	}
	if err := c.do(ctx, http.MethodGet, "/quote/ltp", q, &out); err != nil {
		return nil, fmt.Errorf("ltp: %w", err)
	}

	prices := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if v, ok := out[c.qualify(s)]; ok {
			prices[s] = v.LastPrice
		}
	}
	return prices, nil
}

// CandlesRequest selects a historical candle range.
type CandlesRequest struct {
	InstrumentToken int
	Interval        Interval
	From            time.Time
	To              time.Time
}

const kiteTimeLayout = "2006-01-02T15:04:05-0700"

// Candles fetches historical candles. Rows are [time, o, h, l, c, volume].
func (c *Client) Candles(ctx context.Context, req CandlesRequest) ([]market.Candle, error) {
	if req.InstrumentToken == 0 {
		return nil, fmt.Errorf("instrument token is required")
	}
	if req.Interval == "" {
		req.Interval = Minute5
	}
	if req.To.IsZero() {
		req.To = time.Now()
	}
	if req.From.IsZero() {
		req.From = req.To.Add(-24 * time.Hour)
	}

	q := url.Values{}
	q.Set("from", req.From.In(market.IST).Format("2006-01-02 15:04:05"))
	q.Set("to", req.To.In(market.IST).Format("2006-01-02 15:04:05"))

	var out struct {
		Candles [][]any `json:"candles"`
	}
	path := fmt.Sprintf("/instruments/historical/%d/%s", req.InstrumentToken, req.Interval)
	if err := c.do(ctx, http.MethodGet, path, q, &out); err != nil {
		return nil, fmt.Errorf("candles: %w", err)
	}

	candles := make([]market.Candle, 0, len(out.Candles))
	for i, row := range out.Candles {
		cd, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		candles = append(candles, cd)
	}
	return candles, nil
}

// CandlesFor resolves symbol through IndexTokens.
func (c *Client) CandlesFor(ctx context.Context, symbol string, interval Interval, lookback time.Duration) ([]market.Candle, error) {
	token, ok := IndexTokens[market.BaseSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("no instrument token for %q", symbol)
	}
	now := time.Now()
	return c.Candles(ctx, CandlesRequest{
		InstrumentToken: token,
		Interval:        interval,
		From:            now.Add(-lookback),
		To:              now,
	})
}

var errCandleShape = errors.New("unexpected candle row")

func parseCandle(row []any) (market.Candle, error) {
	if len(row) < 5 {
		return market.Candle{}, errCandleShape
	}
	ts, ok := row[0].(string)
	if !ok {
		return market.Candle{}, errCandleShape
	}
	t, err := time.Parse(kiteTimeLayout, ts)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parse time %s: %w", ts, err)
	}

	var vals [5]float64
	for i := 1; i < len(row) && i <= 5; i++ {
		f, ok := row[i].(float64)
		if !ok {
			return market.Candle{}, errCandleShape
		}
		vals[i-1] = f
	}
	return market.Candle{
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
		Time:   t,
	}, nil
}
