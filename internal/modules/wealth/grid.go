package wealth

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// tailWidth bounds the standard deviations integrated on either side of
	// the mean; the mass beyond is below 1e-15.
	tailWidth = 8.0
	// maxGridMultiple caps the grid at this multiple of the wealth goal.
	maxGridMultiple = 10.0
)

// buildGrid returns Grid[0] = {initial wealth} and, for every later step, a
// uniform grid from zero with the goal as an exact node, extended to cover
// an optimistic three-sigma wealth path.
func buildGrid(cfg GoalConfig, portfolios []Portfolio) [][]float64 {
	var maxMean, maxStd float64
	for _, p := range portfolios {
		maxMean = math.Max(maxMean, p.Mean)
		maxStd = math.Max(maxStd, p.StdDev)
	}

	upper := cfg.InitialWealth
	for t := 0; t < cfg.Horizon; t++ {
		upper = upper*(1+maxMean+3*maxStd) + cfg.CashInjection
	}
	upper = math.Min(math.Max(upper, cfg.WealthGoal), maxGridMultiple*cfg.WealthGoal)

	res := float64(cfg.GridResolution)
	nodes := int(math.Ceil(upper/cfg.WealthGoal*res)) + 1

	grid := make([][]float64, cfg.Horizon+1)
	grid[0] = []float64{cfg.InitialWealth}
	for t := 1; t <= cfg.Horizon; t++ {
		level := make([]float64, nodes)
		for j := range level {
			level[j] = cfg.WealthGoal * float64(j) / res
		}
		level[cfg.GridResolution] = cfg.WealthGoal
		grid[t] = level
	}
	return grid
}

// nodeIndex returns the index of the grid node whose bin [g_j, g_{j+1})
// holds w. Wealth below the first node maps to node 0.
func nodeIndex(grid []float64, w float64) int {
	i := sort.SearchFloat64s(grid, w)
	if i < len(grid) && grid[i] == w {
		return i
	}
	if i == 0 {
		return 0
	}
	return i - 1
}

// GaussianExpectation returns E[v(W)] for W ~ N(mean, std²), where v is the
// step function taking values[j] on [grid[j], grid[j+1]). The first bin
// extends to -∞ and the last to +∞, so bin probabilities sum to one. A
// non-positive std is a point mass at mean.
func GaussianExpectation(mean, std float64, grid, values []float64) float64 {
	n := len(grid)
	if n == 0 {
		return 0
	}
	if !(std > 0) {
		return values[nodeIndex(grid, mean)]
	}

	lo := sort.SearchFloat64s(grid, mean-tailWidth*std)
	hi := sort.SearchFloat64s(grid, mean+tailWidth*std)
	normal := distuv.Normal{Mu: mean, Sigma: std}

	// cdf at the lower edge of bin j
	cdf := func(j int) float64 {
		switch {
		case j == 0 || j < lo:
			return 0
		case j >= n || j >= hi:
			return 1
		default:
			return normal.CDF(grid[j])
		}
	}

	start := lo - 1
	if start < 0 {
		start = 0
	}
	end := hi
	if end > n-1 {
		end = n - 1
	}

	sum := 0.0
	lower := cdf(start)
	for j := start; j <= end; j++ {
		upper := cdf(j + 1)
		sum += values[j] * (upper - lower)
		lower = upper
	}
	return sum
}
