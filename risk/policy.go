package risk

// Limits are the configured risk parameters of a trading day.
type Limits struct {
	// Sizing
	MaxPositionSize float64 // rupees, e.g. 100000
	RiskPerTrade    float64 // fraction of MaxPositionSize, e.g. 0.02

	// Circuit breaker
	MaxDailyLoss float64 // rupees, e.g. 5000

	// Exposure
	MaxTradesPerInstrument int     // e.g. 3
	GlobalExposureCap      float64 // rupees of premium outstanding, e.g. 200000
	MaxUtilizationPct      float64 // e.g. 80
}

// DefaultLimits mirrors the shipped config defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:        100000,
		RiskPerTrade:           0.02,
		MaxDailyLoss:           5000,
		MaxTradesPerInstrument: 3,
		GlobalExposureCap:      200000,
		MaxUtilizationPct:      80,
	}
}

// Budget is the rupee amount one trade may lose.
func (l Limits) Budget() float64 {
	return l.MaxPositionSize * l.RiskPerTrade
}
