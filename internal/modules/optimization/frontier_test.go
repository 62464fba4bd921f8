package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestEfficientFrontier(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	mean := []float64{0.06, 0.10, 0.14}
	cov := mat.NewSymDense(3, []float64{
		0.04, 0.05, 0.01,
		0.05, 0.09, 0.02,
		0.01, 0.02, 0.16,
	})

	frontier, err := allocator.EfficientFrontier(mean, cov, 6, StaticOptions{})
	require.NoError(t, err)
	require.Len(t, frontier, 6)

	mvp, err := allocator.MinimumVariance(cov, StaticOptions{})
	require.NoError(t, err)
	assert.InDeltaSlice(t, mvp.Weights, frontier[0].Weights, 1e-9)

	for i, alloc := range frontier {
		assert.InDelta(t, 1.0, floats.Sum(alloc.Weights), 1e-9)
		if i > 0 {
			assert.GreaterOrEqual(t, alloc.Return, frontier[i-1].Return-1e-9)
			assert.GreaterOrEqual(t, alloc.Variance, frontier[i-1].Variance-1e-9)
		}
	}
	assert.InDeltaSlice(t, []float64{0, 0, 1}, frontier[5].Weights, 1e-6)
}

func TestEfficientFrontier_SinglePortfolio(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	moments, err := NewMomentEstimator(PercentScale, zerolog.Nop()).Estimate(fixturePanel())
	require.NoError(t, err)

	frontier, err := allocator.EfficientFrontier(moments.Mean, moments.Cov, 1, StaticOptions{LongShort: true})
	require.NoError(t, err)
	require.Len(t, frontier, 1)
	assert.InDeltaSlice(t, fixtureMinVarWeights, frontier[0].Weights, 1e-6)
	assert.InDelta(t, 0.83009, frontier[0].Return, 1e-4)
}

func TestEfficientFrontier_InvalidCount(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	_, err := allocator.EfficientFrontier([]float64{0.1, 0.2}, cov, 0, StaticOptions{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = allocator.EfficientFrontier([]float64{0.1}, cov, 3, StaticOptions{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
