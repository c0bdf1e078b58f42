package gate

import (
	"context"
	"fmt"

	"github.com/rustyeddy/expiry/indicators"
	"github.com/rustyeddy/expiry/market"
)

// Trend is the directional bias of an underlying.
type Trend struct {
	Direction market.Direction
	Slope     float64
	Last      float64
	Average   float64
	Closes    []float64
}

type TrendSource interface {
	Trend(ctx context.Context, symbol string) (Trend, error)
}

// CandleSource loads recent candles of an underlying, oldest first.
type CandleSource interface {
	Candles(ctx context.Context, symbol string) ([]market.Candle, error)
}

// CandleFunc adapts a function to CandleSource.
type CandleFunc func(ctx context.Context, symbol string) ([]market.Candle, error)

func (f CandleFunc) Candles(ctx context.Context, symbol string) ([]market.Candle, error) {
	return f(ctx, symbol)
}

// CandleTrend derives bias from price against a long WMA and slope from a
// linear regression over the most recent closes.
type CandleTrend struct {
	Source      CandleSource
	WMAPeriod   int
	SlopePeriod int
}

func NewCandleTrend(src CandleSource, wmaPeriod, slopePeriod int) *CandleTrend {
	return &CandleTrend{Source: src, WMAPeriod: wmaPeriod, SlopePeriod: slopePeriod}
}

func (c *CandleTrend) Trend(ctx context.Context, symbol string) (Trend, error) {
	candles, err := c.Source.Candles(ctx, symbol)
	if err != nil {
		return Trend{}, fmt.Errorf("trend %s: %w", symbol, err)
	}
	closes := market.Closes(candles)

	avg, err := indicators.WMA(closes, c.WMAPeriod)
	if err != nil {
		return Trend{}, fmt.Errorf("trend %s wma: %w", symbol, err)
	}
	slope, err := indicators.LinRegSlope(closes, c.SlopePeriod)
	if err != nil {
		return Trend{}, fmt.Errorf("trend %s slope: %w", symbol, err)
	}

	last := closes[len(closes)-1]
	dir := market.Bear
	if last > avg {
		dir = market.Bull
	}
	return Trend{Direction: dir, Slope: slope, Last: last, Average: avg, Closes: closes}, nil
}
