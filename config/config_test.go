package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/expiry/broker"
	"github.com/rustyeddy/expiry/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Live())

	l := cfg.Limits()
	assert.InDelta(t, 2000.0, l.Budget(), 1e-9)
	assert.Equal(t, 3, l.MaxTradesPerInstrument)

	gc, err := cfg.GateConfig()
	require.NoError(t, err)
	assert.Equal(t, market.MustClock("15:00"), gc.ForceExit)
	assert.Equal(t, market.MustClock("14:00"), gc.LastEntry)
	assert.Equal(t, broker.IntradayMarket, gc.Policy)

	w, err := cfg.StrikeWindows()
	require.NoError(t, err)
	assert.Equal(t, "09:15-11:30", w.Morning.String())

	hc, err := cfg.HealthConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, hc.Interval)
	assert.InDelta(t, 5000.0, hc.Thresholds.MaxDailyLoss, 1e-9)

	assert.Equal(t, 300*time.Second, cfg.SessionInterval())
	assert.Equal(t, time.Minute, cfg.CycleInterval())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"mode", func(c *Config) { c.Mode = "yolo" }},
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"unknown symbol", func(c *Config) { c.Symbols = []string{"DOGE"} }},
		{"bad clock", func(c *Config) { c.Market.ForceExit = "25:00" }},
		{"last entry after force exit", func(c *Config) { c.Market.LastEntry = "15:10" }},
		{"window shape", func(c *Config) { c.Windows.Midday = "11:30" }},
		{"window overlap", func(c *Config) { c.Windows.Midday = "11:00-13:30" }},
		{"risk per trade", func(c *Config) { c.Trading.RiskPerTrade = 1.5 }},
		{"stop loss", func(c *Config) { c.Trading.StopLossPct = 0 }},
		{"trade cap", func(c *Config) { c.Risk.MaxTradesPerInstrument = 0 }},
		{"utilization", func(c *Config) { c.Risk.MaxUtilizationPct = 120 }},
		{"slope period", func(c *Config) { c.Trend.SlopePeriod = 1 }},
		{"confirm", func(c *Config) { c.Confirm.Min = 2 }},
		{"product", func(c *Config) { c.Policy.Product = "CNC" }},
		{"duration", func(c *Config) { c.Health.Interval = "soon" }},
		{"live without key", func(c *Config) { c.Mode = ModeLive }},
		{"telegram without chat", func(c *Config) { c.Telegram.BotToken = "t" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), err.Error())
		})
	}
}

func TestLiveWithCredentials(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeLive
	cfg.Kite.APIKey = "k"
	cfg.Kite.AccessToken = "a"
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expiry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: paper
symbols: [NIFTY, BANKNIFTY]
trading:
  max_position_size: 50000
market:
  last_entry: "13:45"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NIFTY", "BANKNIFTY"}, cfg.Symbols)
	assert.InDelta(t, 50000.0, cfg.Trading.MaxPositionSize, 1e-9)
	// untouched keys keep their defaults
	assert.InDelta(t, 0.02, cfg.Trading.RiskPerTrade, 1e-9)
	assert.Equal(t, "15:00", cfg.Market.ForceExit)
	assert.Equal(t, "13:45", cfg.Market.LastEntry)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expiry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"symbols":["FINNIFTY"],"strike":{"otm_steps":2}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"FINNIFTY"}, cfg.Symbols)
	assert.Equal(t, 2, cfg.Strike.OTMSteps)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  max_utilization_pct: 400\n"), 0644))
	_, err = Load(path)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EXPIRY_MODE", "live")
	t.Setenv("KITE_API_KEY", "key")
	t.Setenv("KITE_ACCESS_TOKEN", "tok")
	t.Setenv("MAX_DAILY_LOSS", "2500")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Live())
	assert.Equal(t, "key", cfg.Kite.APIKey)
	assert.InDelta(t, 2500.0, cfg.Limits().MaxDailyLoss, 1e-9)

	t.Setenv("RISK_PER_TRADE", "lots")
	_, err = Load("")
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("TELEGRAM_CHAT_ID=777\n"), 0644))
	t.Setenv("TELEGRAM_CHAT_ID", "")
	os.Unsetenv("TELEGRAM_CHAT_ID")

	require.NoError(t, LoadEnv(envPath, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "777", os.Getenv("TELEGRAM_CHAT_ID"))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.yaml", "out.json"} {
		cfg := Default()
		cfg.Symbols = []string{"SENSEX"}
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveToFile(path))

		got, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, cfg.Symbols, got.Symbols)
		assert.Equal(t, cfg.Windows, got.Windows)
	}
}
