package formulas

import "math"

// CalculateSharpeRatio calculates the Sharpe ratio of a periodic return series.
//
//	Sharpe = (mean(returns) - riskFree/periodsPerYear) / stddev(returns) * sqrt(periodsPerYear)
//
// riskFreeRate is annual and in the same units as returns. periodsPerYear <= 0
// leaves the ratio un-annualized. Returns nil when fewer than two returns are
// given or the series has no dispersion.
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	stdDev := StdDev(returns)
	if stdDev == 0 || math.IsNaN(stdDev) {
		return nil
	}

	periods := 1.0
	if periodsPerYear > 0 {
		periods = float64(periodsPerYear)
	}

	sharpe := (Mean(returns) - riskFreeRate/periods) / stdDev * math.Sqrt(periods)
	return &sharpe
}
