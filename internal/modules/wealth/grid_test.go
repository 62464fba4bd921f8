package wealth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat/distuv"
)

func stepGrid(n int) []float64 {
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = float64(i)
	}
	return grid
}

func TestGaussianExpectation_GoalIndicator(t *testing.T) {
	grid := stepGrid(11)
	values := make([]float64, len(grid))
	for i := 6; i < len(values); i++ {
		values[i] = 1
	}

	got := GaussianExpectation(5, 2, grid, values)
	assert.InDelta(t, distuv.UnitNormal.Survival(0.5), got, 1e-12)
}

func TestGaussianExpectation_ConstantIsOne(t *testing.T) {
	grid := stepGrid(5)
	values := []float64{1, 1, 1, 1, 1}

	for _, mean := range []float64{-100, 0, 2.5, 4, 1e6} {
		assert.InDelta(t, 1.0, GaussianExpectation(mean, 3, grid, values), 1e-12)
	}
}

func TestGaussianExpectation_BinProbabilities(t *testing.T) {
	grid := []float64{0, 1, 2}
	values := []float64{10, 20, 30}
	normal := distuv.Normal{Mu: 1.2, Sigma: 0.7}

	want := 10*normal.CDF(1) + 20*(normal.CDF(2)-normal.CDF(1)) + 30*normal.Survival(2)
	assert.InDelta(t, want, GaussianExpectation(1.2, 0.7, grid, values), 1e-12)
}

func TestGaussianExpectation_PointMass(t *testing.T) {
	grid := stepGrid(11)
	values := stepGrid(11)

	assert.Equal(t, 6.0, GaussianExpectation(6.5, 0, grid, values))
	assert.Equal(t, 6.0, GaussianExpectation(6, 0, grid, values))
	assert.Equal(t, 0.0, GaussianExpectation(-1, 0, grid, values))
	assert.Equal(t, 10.0, GaussianExpectation(100, 0, grid, values))
}

func TestNodeIndex(t *testing.T) {
	grid := []float64{0, 2, 4, 6}

	assert.Equal(t, 0, nodeIndex(grid, -3))
	assert.Equal(t, 0, nodeIndex(grid, 1.9))
	assert.Equal(t, 1, nodeIndex(grid, 2))
	assert.Equal(t, 3, nodeIndex(grid, 6))
	assert.Equal(t, 3, nodeIndex(grid, 60))
}

func TestBuildGrid(t *testing.T) {
	cfg := GoalConfig{
		InitialWealth:  100,
		WealthGoal:     200,
		CashInjection:  10,
		Horizon:        3,
		GridResolution: 100,
	}

	grid := buildGrid(cfg, []Portfolio{{Mean: 0.01, StdDev: 0.02}})
	assert.Len(t, grid, 4)
	assert.Equal(t, []float64{100}, grid[0])

	for t1 := 1; t1 <= 3; t1++ {
		assert.Equal(t, 0.0, grid[t1][0])
		assert.Equal(t, 200.0, grid[t1][100])
		assert.InDelta(t, 2.0, grid[t1][1], 1e-12)
	}
	// The three-sigma path stays below the goal, so the grid ends at it.
	assert.Len(t, grid[1], 101)

	capped := buildGrid(cfg, []Portfolio{{Mean: 5, StdDev: 5}})
	assert.Equal(t, 2000.0, capped[1][len(capped[1])-1])
}
