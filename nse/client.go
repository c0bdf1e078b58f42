// Package nse reads the public NSE India option chain and index feeds.
package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/market"
)

const (
	BaseURL = "https://www.nseindia.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	vixIndexName = "INDIA VIX"
)

// Client fetches NSE data. NSE hands out session cookies from its home
// page, so the first request primes the cookie jar.
type Client struct {
	baseURL    string
	httpClient *http.Client

	primeOnce sync.Once
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

func WithTimeout(d time.Duration) Option { return func(c *Client) { c.httpClient.Timeout = d } }

func NewClient(opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: BaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Jar:     jar,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) prime(ctx context.Context) {
	c.primeOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
		if err != nil {
			return
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			slog.Debug("nse prime failed", slog.String("err", err.Error()))
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	})
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	c.prime(ctx)

	apiURL := c.baseURL + path
	if len(q) > 0 {
		apiURL += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w: %v", path, broker.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type legData struct {
	OpenInterest      float64 `json:"openInterest"`
	TotalTradedVolume float64 `json:"totalTradedVolume"`
}

type chainRow struct {
	StrikePrice float64  `json:"strikePrice"`
	ExpiryDate  string   `json:"expiryDate"`
	CE          *legData `json:"CE"`
	PE          *legData `json:"PE"`
}

type chainResponse struct {
	Records struct {
		ExpiryDates     []string   `json:"expiryDates"`
		UnderlyingValue float64    `json:"underlyingValue"`
		Data            []chainRow `json:"data"`
	} `json:"records"`
}

func chainPath(symbol string) string {
	if _, ok := market.Instruments[symbol]; ok {
		return "/api/option-chain-indices"
	}
	return "/api/option-chain-equities"
}

// Snapshot builds a chain cut of band strike steps either side of ATM for
// the nearest expiry. Failures are logged and yield an empty snapshot.
func (c *Client) Snapshot(ctx context.Context, symbol string, band int) market.Snapshot {
	snap, err := c.FetchSnapshot(ctx, symbol, band)
	if err != nil {
		slog.Warn("nse snapshot failed", slog.String("symbol", symbol), slog.String("err", err.Error()))
		return market.Snapshot{Symbol: market.BaseSymbol(symbol)}
	}
	return snap
}

// FetchSnapshot is Snapshot with the error returned.
func (c *Client) FetchSnapshot(ctx context.Context, symbol string, band int) (market.Snapshot, error) {
	base := market.BaseSymbol(symbol)
	q := url.Values{}
	q.Set("symbol", base)

	var resp chainResponse
	if err := c.getJSON(ctx, chainPath(base), q, &resp); err != nil {
		return market.Snapshot{}, fmt.Errorf("option chain %s: %w", base, err)
	}
	return buildSnapshot(base, resp.Records.UnderlyingValue, resp.Records.Data, band), nil
}

// buildSnapshot filters rows to the first listed expiry and to strikes
// within band steps of the at-the-money strike.
func buildSnapshot(symbol string, underlying float64, rows []chainRow, band int) market.Snapshot {
	step := market.StrikeStep(symbol)
	snap := market.Snapshot{Symbol: symbol, UnderlyingLast: underlying, Step: step}
	if underlying <= 0 {
		return snap
	}
	snap.ATM = market.RoundStrike(underlying, step)

	var expiry string
	if len(rows) > 0 {
		expiry = rows[0].ExpiryDate
	}
	limit := band * step
	for _, row := range rows {
		if expiry != "" && row.ExpiryDate != expiry {
			continue
		}
		sp := int(row.StrikePrice)
		d := sp - snap.ATM
		if d < 0 {
			d = -d
		}
		if d > limit {
			continue
		}
		if row.CE != nil {
			snap.Strikes = append(snap.Strikes, market.StrikeLevel{
				Strike: sp, Side: market.Call, OpenInterest: row.CE.OpenInterest, Volume: row.CE.TotalTradedVolume,
			})
		}
		if row.PE != nil {
			snap.Strikes = append(snap.Strikes, market.StrikeLevel{
				Strike: sp, Side: market.Put, OpenInterest: row.PE.OpenInterest, Volume: row.PE.TotalTradedVolume,
			})
		}
	}
	return snap
}

type indexRow struct {
	Index         string  `json:"index"`
	IndexSymbol   string  `json:"indexSymbol"`
	Last          float64 `json:"last"`
	PercentChange float64 `json:"percentChange"`
}

// Indices returns the last value of every index keyed by index name.
func (c *Client) Indices(ctx context.Context) (map[string]float64, error) {
	var resp struct {
		Data []indexRow `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/allIndices", nil, &resp); err != nil {
		return nil, fmt.Errorf("all indices: %w", err)
	}
	out := make(map[string]float64, len(resp.Data))
	for _, r := range resp.Data {
		out[strings.ToUpper(r.Index)] = r.Last
	}
	return out, nil
}

// VolatilityIndex returns India VIX, or 0 when it cannot be read.
func (c *Client) VolatilityIndex(ctx context.Context) float64 {
	idx, err := c.Indices(ctx)
	if err != nil {
		slog.Warn("india vix unavailable", slog.String("err", err.Error()))
		return 0
	}
	return idx[vixIndexName]
}

// MarketStatus reports whether NSE lists any market segment as open.
func (c *Client) MarketStatus(ctx context.Context) (bool, error) {
	var resp struct {
		MarketState []struct {
			Market       string `json:"market"`
			MarketStatus string `json:"marketStatus"`
		} `json:"marketState"`
	}
	if err := c.getJSON(ctx, "/api/marketStatus", nil, &resp); err != nil {
		return false, fmt.Errorf("market status: %w", err)
	}
	for _, m := range resp.MarketState {
		if strings.EqualFold(m.MarketStatus, "Open") {
			return true, nil
		}
	}
	return false, nil
}

// Ping measures a round trip to the market status endpoint.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := c.MarketStatus(ctx)
	return time.Since(start), err
}
