package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (N-1 denominator)
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance (N-1 denominator)
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance calculates the sample covariance between two series of equal length
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// LogReturn returns scale·ln(curr/prev), or NaN when either price is not positive.
func LogReturn(prev, curr, scale float64) float64 {
	if !(prev > 0) || !(curr > 0) {
		return math.NaN()
	}
	return scale * math.Log(curr/prev)
}

// LogReturns converts a price series to scaled log returns.
// Returns[i] = scale * ln(Price[i+1] / Price[i])
func LogReturns(prices []float64, scale float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = LogReturn(prices[i-1], prices[i], scale)
	}
	return returns
}

// CumulativeReturn compounds simple periodic returns expressed in units of scale
// (scale=100 for percent) and returns the total in the same units.
func CumulativeReturn(returns []float64, scale float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	if scale <= 0 {
		scale = 1
	}

	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r/scale
	}
	return scale * (growth - 1)
}
