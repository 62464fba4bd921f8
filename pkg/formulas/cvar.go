package formulas

import (
	"math"
	"sort"
)

// CalculateCVaR calculates historical Conditional Value at Risk at the given
// confidence level: the mean of the worst ceil(n*(1-confidence)) returns.
// The result is negative when the tail holds losses.
func CalculateCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	if len(returns) == 1 {
		return returns[0]
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	tailCount := int(math.Ceil(float64(len(sorted)) * (1.0 - confidence)))
	if tailCount < 1 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	sum := 0.0
	for _, r := range sorted[:tailCount] {
		sum += r
	}
	return sum / float64(tailCount)
}
