// Package indicators computes the price studies the entry gates read.
// Every function takes closes oldest first.
package indicators

import (
	"fmt"
)

func checkPeriod(n, period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if n < period {
		return fmt.Errorf("not enough data: need %d, got %d", period, n)
	}
	return nil
}

// SMA calculates the simple moving average of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if err := checkPeriod(len(closes), period); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period), nil
}

// EMA calculates the exponential moving average, seeded with the SMA of
// the first period closes.
func EMA(closes []float64, period int) (float64, error) {
	if err := checkPeriod(len(closes), period); err != nil {
		return 0, err
	}

	multiplier := 2.0 / float64(period+1)

	ema := 0.0
	for i := 0; i < period; i++ {
		ema += closes[i]
	}
	ema /= float64(period)

	for i := period; i < len(closes); i++ {
		ema = (closes[i]-ema)*multiplier + ema
	}
	return ema, nil
}

// WMA calculates the linearly weighted moving average of the last period
// closes. The newest close has weight period.
func WMA(closes []float64, period int) (float64, error) {
	if err := checkPeriod(len(closes), period); err != nil {
		return 0, err
	}
	start := len(closes) - period
	num, den := 0.0, 0.0
	for i := 0; i < period; i++ {
		w := float64(i + 1)
		num += closes[start+i] * w
		den += w
	}
	return num / den, nil
}
