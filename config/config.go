// Package config loads the controller configuration from YAML (or JSON),
// a .env file and environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/gate"
	"github.com/rustyeddy/expiry/health"
	"github.com/rustyeddy/expiry/market"
	"github.com/rustyeddy/expiry/risk"
	"github.com/rustyeddy/expiry/strike"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

type Config struct {
	Mode    string   `json:"mode" yaml:"mode"`
	Symbols []string `json:"symbols" yaml:"symbols"`

	Market   MarketConfig    `json:"market" yaml:"market"`
	Windows  WindowsConfig   `json:"windows" yaml:"windows"`
	Trading  TradingConfig   `json:"trading" yaml:"trading"`
	Risk     RiskConfig      `json:"risk" yaml:"risk"`
	Trend    TrendConfig     `json:"trend" yaml:"trend"`
	Flow     gate.FlowConfig `json:"flow" yaml:"flow"`
	Confirm  ConfirmConfig   `json:"confirm" yaml:"confirm"`
	Policy   broker.Policy   `json:"policy" yaml:"policy"`
	Strike   StrikeConfig    `json:"strike" yaml:"strike"`
	Health   HealthConfig    `json:"health" yaml:"health"`
	Session  SessionConfig   `json:"session" yaml:"session"`
	Kite     KiteConfig      `json:"kite" yaml:"kite"`
	NSE      NSEConfig       `json:"nse" yaml:"nse"`
	Telegram TelegramConfig  `json:"telegram" yaml:"telegram"`
	Journal  JournalConfig   `json:"journal" yaml:"journal"`
	Metrics  MetricsConfig   `json:"metrics" yaml:"metrics"`
	Cycle    CycleConfig     `json:"cycle" yaml:"cycle"`
}

// MarketConfig holds IST times of day as "HH:MM".
type MarketConfig struct {
	Open      string `json:"open" yaml:"open"`
	Close     string `json:"close" yaml:"close"`
	ForceExit string `json:"force_exit" yaml:"force_exit"`
	LastEntry string `json:"last_entry" yaml:"last_entry"`
}

// WindowsConfig holds strike windows as "HH:MM-HH:MM".
type WindowsConfig struct {
	Morning   string `json:"morning" yaml:"morning"`
	Midday    string `json:"midday" yaml:"midday"`
	Afternoon string `json:"afternoon" yaml:"afternoon"`
}

type TradingConfig struct {
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size"`
	RiskPerTrade    float64 `json:"risk_per_trade" yaml:"risk_per_trade"`
	MaxDailyLoss    float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	EstPremium      float64 `json:"est_premium" yaml:"est_premium"`
	Strategy        string  `json:"strategy" yaml:"strategy"`
}

type RiskConfig struct {
	MaxTradesPerInstrument int     `json:"max_trades_per_instrument" yaml:"max_trades_per_instrument"`
	GlobalExposureCap      float64 `json:"global_exposure_cap" yaml:"global_exposure_cap"`
	MaxUtilizationPct      float64 `json:"max_utilization_pct" yaml:"max_utilization_pct"`
}

type TrendConfig struct {
	Interval    string  `json:"interval" yaml:"interval"` // kite candle interval
	Lookback    string  `json:"lookback" yaml:"lookback"`
	WMAPeriod   int     `json:"wma_period" yaml:"wma_period"`
	SlopePeriod int     `json:"slope_period" yaml:"slope_period"`
	MinSlope    float64 `json:"min_slope" yaml:"min_slope"`
}

type ConfirmConfig struct {
	Min        float64      `json:"min" yaml:"min"`
	MinHighVIX float64      `json:"min_high_vix" yaml:"min_high_vix"`
	HighVIX    float64      `json:"high_vix" yaml:"high_vix"`
	Weights    gate.Weights `json:"weights" yaml:"weights"`
}

type StrikeConfig struct {
	OTMSteps int `json:"otm_steps" yaml:"otm_steps"`
}

type HealthConfig struct {
	Interval          string  `json:"interval" yaml:"interval"`
	APITimeout        string  `json:"api_timeout" yaml:"api_timeout"`
	CPUPct            float64 `json:"cpu_pct" yaml:"cpu_pct"`
	MemoryPct         float64 `json:"memory_pct" yaml:"memory_pct"`
	DiskPct           float64 `json:"disk_pct" yaml:"disk_pct"`
	DiskPath          string  `json:"disk_path" yaml:"disk_path"`
	MaxUtilizationPct float64 `json:"max_utilization_pct" yaml:"max_utilization_pct"`
	MaxAlerts         int     `json:"max_alerts" yaml:"max_alerts"`
}

type SessionConfig struct {
	Interval string `json:"interval" yaml:"interval"`
}

type KiteConfig struct {
	APIKey      string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APISecret   string `json:"api_secret,omitempty" yaml:"api_secret,omitempty"`
	AccessToken string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Exchange    string `json:"exchange" yaml:"exchange"`
}

type NSEConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Timeout string `json:"timeout" yaml:"timeout"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token,omitempty" yaml:"bot_token,omitempty"`
	ChatID   string `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
}

type JournalConfig struct {
	DBPath    string `json:"db_path" yaml:"db_path"`
	TradesCSV string `json:"trades_csv,omitempty" yaml:"trades_csv,omitempty"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

type CycleConfig struct {
	Interval string `json:"interval" yaml:"interval"`
}

// Default returns the shipped configuration.
func Default() *Config {
	return &Config{
		Mode:    ModePaper,
		Symbols: []string{"NIFTY"},
		Market: MarketConfig{
			Open:      "09:15",
			Close:     "15:30",
			ForceExit: "15:00",
			LastEntry: "14:00",
		},
		Windows: WindowsConfig{
			Morning:   "09:15-11:30",
			Midday:    "11:30-13:30",
			Afternoon: "13:30-15:00",
		},
		Trading: TradingConfig{
			MaxPositionSize: 100000,
			RiskPerTrade:    0.02,
			MaxDailyLoss:    5000,
			StopLossPct:     0.3,
			EstPremium:      10,
			Strategy:        "expiry-momentum",
		},
		Risk: RiskConfig{
			MaxTradesPerInstrument: 3,
			GlobalExposureCap:      200000,
			MaxUtilizationPct:      80,
		},
		Trend: TrendConfig{
			Interval:    "3minute",
			Lookback:    "24h",
			WMAPeriod:   20,
			SlopePeriod: 20,
			MinSlope:    0.5,
		},
		Flow: gate.DefaultFlowConfig(),
		Confirm: ConfirmConfig{
			Min:        0.65,
			MinHighVIX: 0.55,
			HighVIX:    18,
			Weights:    gate.DefaultWeights(),
		},
		Policy: broker.IntradayMarket,
		Strike: StrikeConfig{OTMSteps: 1},
		Health: HealthConfig{
			Interval:          "60s",
			APITimeout:        "30s",
			CPUPct:            80,
			MemoryPct:         80,
			DiskPct:           90,
			DiskPath:          "/",
			MaxUtilizationPct: 90,
			MaxAlerts:         500,
		},
		Session: SessionConfig{Interval: "300s"},
		Kite:    KiteConfig{Exchange: "NFO"},
		NSE:     NSEConfig{Timeout: "10s"},
		Journal: JournalConfig{DBPath: "./expiry.db"},
		Cycle:   CycleConfig{Interval: "60s"},
	}
}

// LoadEnv loads .env style files into the process environment. Missing
// files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env %s: %w", p, err)
		}
	}
	return nil
}

// Load reads path over the defaults (or uses defaults when path is
// empty), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Try YAML first, fall back to JSON
		if err := yaml.Unmarshal(data, cfg); err != nil {
			cfg = Default()
			if jerr := json.Unmarshal(data, cfg); jerr != nil {
				return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
			}
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and risk parameters from the environment.
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, key, v)
		}
		*dst = f
		return nil
	}

	str("EXPIRY_MODE", &c.Mode)
	str("KITE_API_KEY", &c.Kite.APIKey)
	str("KITE_API_SECRET", &c.Kite.APISecret)
	str("KITE_ACCESS_TOKEN", &c.Kite.AccessToken)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)

	if err := num("MAX_POSITION_SIZE", &c.Trading.MaxPositionSize); err != nil {
		return err
	}
	if err := num("RISK_PER_TRADE", &c.Trading.RiskPerTrade); err != nil {
		return err
	}
	return num("MAX_DAILY_LOSS", &c.Trading.MaxDailyLoss)
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) Live() bool { return c.Mode == ModeLive }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the configuration. The error wraps ErrInvalid.
func (c *Config) Validate() error {
	if c.Mode != ModePaper && c.Mode != ModeLive {
		return invalid("mode must be %q or %q, got %q", ModePaper, ModeLive, c.Mode)
	}
	if len(c.Symbols) == 0 {
		return invalid("at least one symbol is required")
	}
	for _, s := range c.Symbols {
		if _, ok := market.Lookup(s); !ok {
			return invalid("unknown symbol: %s", s)
		}
	}

	hours, err := c.Hours()
	if err != nil {
		return err
	}
	gc, err := c.GateConfig()
	if err != nil {
		return err
	}
	if gc.LastEntry > gc.ForceExit {
		return invalid("market.last_entry %s is after force_exit %s", gc.LastEntry, gc.ForceExit)
	}
	if gc.ForceExit > hours.Close {
		return invalid("market.force_exit %s is after close %s", gc.ForceExit, hours.Close)
	}
	w, err := c.StrikeWindows()
	if err != nil {
		return err
	}
	if w.Overlaps() {
		return invalid("strike windows overlap")
	}

	t := c.Trading
	if t.MaxPositionSize <= 0 {
		return invalid("trading.max_position_size must be positive")
	}
	if t.RiskPerTrade <= 0 || t.RiskPerTrade > 1 {
		return invalid("trading.risk_per_trade must be between 0 and 1")
	}
	if t.MaxDailyLoss <= 0 {
		return invalid("trading.max_daily_loss must be positive")
	}
	if t.StopLossPct <= 0 || t.StopLossPct >= 1 {
		return invalid("trading.stop_loss_pct must be between 0 and 1")
	}
	if t.EstPremium <= 0 {
		return invalid("trading.est_premium must be positive")
	}

	r := c.Risk
	if r.MaxTradesPerInstrument <= 0 {
		return invalid("risk.max_trades_per_instrument must be positive")
	}
	if r.GlobalExposureCap <= 0 {
		return invalid("risk.global_exposure_cap must be positive")
	}
	if r.MaxUtilizationPct <= 0 || r.MaxUtilizationPct > 100 {
		return invalid("risk.max_utilization_pct must be in (0, 100]")
	}

	if c.Trend.WMAPeriod <= 0 || c.Trend.SlopePeriod < 2 {
		return invalid("trend.wma_period must be positive and trend.slope_period at least 2")
	}
	if c.Trend.Interval == "" {
		return invalid("trend.interval is required")
	}
	for _, v := range []float64{c.Confirm.Min, c.Confirm.MinHighVIX} {
		if v < 0 || v > 1 {
			return invalid("confirm thresholds must be between 0 and 1")
		}
	}
	if c.Flow.PCRBand <= 0 || c.Flow.SkewBand <= 0 || c.Flow.NearBand <= 0 || c.Flow.MidBand <= 0 {
		return invalid("flow bands must be positive")
	}

	switch c.Policy.Product {
	case broker.ProductMIS, broker.ProductNRML:
	default:
		return invalid("policy.product must be MIS or NRML, got %q", c.Policy.Product)
	}
	switch c.Policy.OrderType {
	case broker.OrderMarket, broker.OrderLimit:
	default:
		return invalid("policy.order_type must be MARKET or LIMIT, got %q", c.Policy.OrderType)
	}

	for name, v := range map[string]string{
		"trend.lookback":     c.Trend.Lookback,
		"health.interval":    c.Health.Interval,
		"health.api_timeout": c.Health.APITimeout,
		"session.interval":   c.Session.Interval,
		"nse.timeout":        c.NSE.Timeout,
		"cycle.interval":     c.Cycle.Interval,
	} {
		if _, err := duration(name, v); err != nil {
			return err
		}
	}

	if c.Journal.DBPath == "" {
		return invalid("journal.db_path is required")
	}

	if c.Live() {
		if c.Kite.APIKey == "" {
			return invalid("kite api key is required in live mode (KITE_API_KEY)")
		}
		if c.Kite.AccessToken == "" {
			return invalid("kite access token is required in live mode (KITE_ACCESS_TOKEN)")
		}
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return invalid("telegram chat id is required with a bot token (TELEGRAM_CHAT_ID)")
	}
	return nil
}

func duration(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, invalid("%s: %v", name, err)
	}
	if d <= 0 {
		return 0, invalid("%s must be positive", name)
	}
	return d, nil
}

func clock(name, s string) (market.Clock, error) {
	c, err := market.ParseClock(s)
	if err != nil {
		return 0, invalid("%s: %v", name, err)
	}
	return c, nil
}

func window(name, s string) (market.Window, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return market.Window{}, invalid("%s: want HH:MM-HH:MM, got %q", name, s)
	}
	a, err := clock(name, strings.TrimSpace(start))
	if err != nil {
		return market.Window{}, err
	}
	b, err := clock(name, strings.TrimSpace(end))
	if err != nil {
		return market.Window{}, err
	}
	if b <= a {
		return market.Window{}, invalid("%s: end %s is not after start %s", name, b, a)
	}
	return market.Window{Start: a, End: b}, nil
}

func (c *Config) Hours() (market.Hours, error) {
	open, err := clock("market.open", c.Market.Open)
	if err != nil {
		return market.Hours{}, err
	}
	closing, err := clock("market.close", c.Market.Close)
	if err != nil {
		return market.Hours{}, err
	}
	if closing <= open {
		return market.Hours{}, invalid("market.close %s is not after open %s", closing, open)
	}
	return market.Hours{PreOpen: market.DefaultHours.PreOpen, Open: open, Close: closing}, nil
}

func (c *Config) Limits() risk.Limits {
	return risk.Limits{
		MaxPositionSize:        c.Trading.MaxPositionSize,
		RiskPerTrade:           c.Trading.RiskPerTrade,
		MaxDailyLoss:           c.Trading.MaxDailyLoss,
		MaxTradesPerInstrument: c.Risk.MaxTradesPerInstrument,
		GlobalExposureCap:      c.Risk.GlobalExposureCap,
		MaxUtilizationPct:      c.Risk.MaxUtilizationPct,
	}
}

func (c *Config) GateConfig() (gate.Config, error) {
	forceExit, err := clock("market.force_exit", c.Market.ForceExit)
	if err != nil {
		return gate.Config{}, err
	}
	lastEntry, err := clock("market.last_entry", c.Market.LastEntry)
	if err != nil {
		return gate.Config{}, err
	}
	return gate.Config{
		ForceExit:         forceExit,
		LastEntry:         lastEntry,
		MinSlope:          c.Trend.MinSlope,
		Flow:              c.Flow,
		ConfirmMin:        c.Confirm.Min,
		ConfirmMinHighVIX: c.Confirm.MinHighVIX,
		HighVIX:           c.Confirm.HighVIX,
		Policy:            c.Policy,
	}, nil
}

func (c *Config) StrikeWindows() (strike.Windows, error) {
	var w strike.Windows
	var err error
	if w.Morning, err = window("windows.morning", c.Windows.Morning); err != nil {
		return w, err
	}
	if w.Midday, err = window("windows.midday", c.Windows.Midday); err != nil {
		return w, err
	}
	if w.Afternoon, err = window("windows.afternoon", c.Windows.Afternoon); err != nil {
		return w, err
	}
	return w, nil
}

func (c *Config) HealthConfig() (health.Config, error) {
	interval, err := duration("health.interval", c.Health.Interval)
	if err != nil {
		return health.Config{}, err
	}
	timeout, err := duration("health.api_timeout", c.Health.APITimeout)
	if err != nil {
		return health.Config{}, err
	}
	hc := health.DefaultConfig()
	hc.Interval = interval
	hc.MaxAlerts = c.Health.MaxAlerts
	hc.Thresholds = health.Thresholds{
		CPU:            c.Health.CPUPct,
		Memory:         c.Health.MemoryPct,
		Disk:           c.Health.DiskPct,
		MaxDailyLoss:   c.Trading.MaxDailyLoss,
		MaxUtilization: c.Health.MaxUtilizationPct,
		APITimeout:     timeout,
	}
	return hc, nil
}

func (c *Config) SessionInterval() time.Duration {
	d, _ := duration("session.interval", c.Session.Interval)
	return d
}

func (c *Config) CycleInterval() time.Duration {
	d, _ := duration("cycle.interval", c.Cycle.Interval)
	return d
}

func (c *Config) TrendLookback() time.Duration {
	d, _ := duration("trend.lookback", c.Trend.Lookback)
	return d
}

func (c *Config) NSETimeout() time.Duration {
	d, _ := duration("nse.timeout", c.NSE.Timeout)
	return d
}
