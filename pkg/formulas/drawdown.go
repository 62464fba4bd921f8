package formulas

// CalculateMaxDrawdown calculates the maximum drawdown from a value series.
//
//	Drawdown = (Peak Value - Current Value) / Peak Value
//
// Returns the maximum drawdown as a positive fraction (0.25 = 25% loss from
// peak) or nil when fewer than two values are given.
func CalculateMaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}

// EquityCurve compounds periodic returns (in units of scale) into a value
// series starting at 1.
func EquityCurve(returns []float64, scale float64) []float64 {
	if scale <= 0 {
		scale = 1
	}
	curve := make([]float64, len(returns)+1)
	curve[0] = 1
	for i, r := range returns {
		curve[i+1] = curve[i] * (1 + r/scale)
	}
	return curve
}

// MaxDrawdownFromReturns is CalculateMaxDrawdown over the equity curve of returns.
func MaxDrawdownFromReturns(returns []float64, scale float64) *float64 {
	if len(returns) == 0 {
		return nil
	}
	return CalculateMaxDrawdown(EquityCurve(returns, scale))
}
