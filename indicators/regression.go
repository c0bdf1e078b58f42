package indicators

// LinRegSlope is the least-squares slope of the last period closes per bar.
func LinRegSlope(closes []float64, period int) (float64, error) {
	if err := checkPeriod(len(closes), period); err != nil {
		return 0, err
	}
	if period < 2 {
		return 0, nil
	}

	start := len(closes) - period
	n := float64(period)
	sumX, sumY, sumXY, sumXX := 0.0, 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		x := float64(i)
		y := closes[start+i]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, nil
	}
	return (n*sumXY - sumX*sumY) / den, nil
}
