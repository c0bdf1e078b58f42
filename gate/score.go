package gate

import (
	"context"

	"github.com/rustyeddy/expiry/indicators"
	"github.com/rustyeddy/expiry/market"
)

// ScoreInput is everything the confirmation scorer may look at.
type ScoreInput struct {
	Symbol    string
	Direction market.Direction
	Trend     Trend
	Flow      Flow
	Snapshot  market.Snapshot
	VIX       float64
}

// Scorer returns a confirmation score in [0, 1].
type Scorer interface {
	Score(ctx context.Context, in ScoreInput) float64
}

type ScorerFunc func(ctx context.Context, in ScoreInput) float64

func (f ScorerFunc) Score(ctx context.Context, in ScoreInput) float64 { return f(ctx, in) }

// Fixed always scores v.
func Fixed(v float64) Scorer {
	return ScorerFunc(func(context.Context, ScoreInput) float64 { return v })
}

// Weights of the WeightedScorer components.
type Weights struct {
	MAStack float64 `yaml:"ma_stack" json:"ma_stack"`
	RSI     float64 `yaml:"rsi" json:"rsi"`
	Slope   float64 `yaml:"slope" json:"slope"`
	Flow    float64 `yaml:"flow" json:"flow"`
}

func DefaultWeights() Weights {
	return Weights{MAStack: 0.3, RSI: 0.2, Slope: 0.2, Flow: 0.3}
}

// WeightedScorer scores agreement of a fast/slow EMA stack, RSI, slope
// sign and order flow with the trade direction.
type WeightedScorer struct {
	Weights   Weights
	FastEMA   int
	SlowEMA   int
	RSIPeriod int
}

func NewWeightedScorer(w Weights) *WeightedScorer {
	return &WeightedScorer{Weights: w, FastEMA: 9, SlowEMA: 21, RSIPeriod: 14}
}

func (s *WeightedScorer) Score(_ context.Context, in ScoreInput) float64 {
	bull := in.Direction == market.Bull
	closes := in.Trend.Closes

	var ma, rsi, slope, flow float64

	fast, errF := indicators.EMA(closes, s.FastEMA)
	slow, errS := indicators.EMA(closes, s.SlowEMA)
	if errF == nil && errS == nil && (fast > slow) == bull && fast != slow {
		ma = 1
	}

	if r, err := indicators.RSI(closes, s.RSIPeriod); err == nil {
		if !bull {
			r = 100 - r
		}
		switch {
		case r >= 55:
			rsi = 1
		case r >= 50:
			rsi = 0.5
		}
	}

	if in.Trend.Slope != 0 && (in.Trend.Slope > 0) == bull {
		slope = 1
	}

	if side, ok := in.Flow.Side(); ok {
		if side == in.Direction {
			flow = 1
		} else {
			flow = 0.25
		}
	}

	w := s.Weights
	total := w.MAStack + w.RSI + w.Slope + w.Flow
	if total <= 0 {
		return 0
	}
	return (w.MAStack*ma + w.RSI*rsi + w.Slope*slope + w.Flow*flow) / total
}
