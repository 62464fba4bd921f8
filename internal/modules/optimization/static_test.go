package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestStaticAllocator_MinimumVarianceFixture(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	moments, err := NewMomentEstimator(PercentScale, zerolog.Nop()).Estimate(fixturePanel())
	require.NoError(t, err)

	for _, longShort := range []bool{true, false} {
		alloc, err := allocator.MinimumVariance(moments.Cov, StaticOptions{LongShort: longShort})
		require.NoError(t, err)

		assert.InDeltaSlice(t, fixtureMinVarWeights, alloc.Weights, 1e-6)
		assert.InDelta(t, fixtureMinVarVariance, alloc.Variance, 1e-6)
		assert.InDelta(t, 1.0, floats.Sum(alloc.Weights), 1e-6)
	}
}

func TestStaticAllocator_MeanVarianceTargetFixture(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	moments, err := NewMomentEstimator(PercentScale, zerolog.Nop()).Estimate(fixturePanel())
	require.NoError(t, err)

	alloc, err := allocator.MeanVarianceTarget(moments.Mean, moments.Cov, 0.3, StaticOptions{LongShort: true})
	require.NoError(t, err)

	assert.InDeltaSlice(t, fixtureMinVarWeights, alloc.Weights, 1e-6)
	assert.InDelta(t, fixtureMinVarVariance, alloc.Variance, 1e-6)
	assert.InDelta(t, floats.Dot(fixtureMean, alloc.Weights), alloc.Return, 1e-12)
}

func TestStaticAllocator_LongOnlyCorner(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	cov := mat.NewSymDense(2, []float64{
		0.04, 0.05,
		0.05, 0.09,
	})

	longOnly, err := allocator.MinimumVariance(cov, StaticOptions{})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, longOnly.Weights, 1e-9)
	assert.InDelta(t, 0.04, longOnly.Variance, 1e-9)

	longShort, err := allocator.MinimumVariance(cov, StaticOptions{LongShort: true})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4.0 / 3.0, -1.0 / 3.0}, longShort.Weights, 1e-9)
	assert.InDelta(t, 0.0011/0.03, longShort.Variance, 1e-9)
}

func TestStaticAllocator_Targets(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	mean := []float64{0.12, 0.08}
	cov := mat.NewSymDense(2, []float64{
		0.04, 0.01,
		0.01, 0.03,
	})

	tests := []struct {
		name      string
		target    float64
		longShort bool
		weights   []float64
		variance  float64
		wantErr   error
	}{
		{"non-binding target", 0.05, false, []float64{0.4, 0.6}, 0.0204, nil},
		{"binding long-only", 0.10, false, []float64{0.5, 0.5}, 0.0225, nil},
		{"binding long-short", 0.10, true, []float64{0.5, 0.5}, 0.0225, nil},
		{"best asset exactly", 0.12, false, []float64{1, 0}, 0.04, nil},
		{"within tolerance of best asset", 0.12 + 5e-9, false, []float64{1, 0}, 0.04, nil},
		{"beyond best asset long-short", 0.13, true, []float64{1.25, -0.25}, 0.058125, nil},
		{"beyond best asset long-only", 0.13, false, nil, 0, ErrInfeasibleTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc, err := allocator.MeanVarianceTarget(mean, cov, tt.target, StaticOptions{LongShort: tt.longShort})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, alloc)
				return
			}
			require.NoError(t, err)

			assert.InDeltaSlice(t, tt.weights, alloc.Weights, 1e-8)
			assert.InDelta(t, tt.variance, alloc.Variance, 1e-8)
			assert.GreaterOrEqual(t, alloc.Return, tt.target-1e-8)
		})
	}
}

func TestStaticAllocator_CollinearReturnsInfeasible(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	cov := mat.NewSymDense(2, []float64{
		0.04, 0.01,
		0.01, 0.03,
	})

	_, err := allocator.MeanVarianceTarget([]float64{0.05, 0.05}, cov, 0.06, StaticOptions{LongShort: true})
	assert.ErrorIs(t, err, ErrInfeasibleTarget)
}

func TestStaticAllocator_LongOnlyBeatsGrid(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	mean := []float64{0.06, 0.10, 0.14}
	cov := mat.NewSymDense(3, []float64{
		0.04, 0.05, 0.01,
		0.05, 0.09, 0.02,
		0.01, 0.02, 0.16,
	})

	for _, target := range []float64{0.0, 0.09, 0.12} {
		alloc, err := allocator.MeanVarianceTarget(mean, cov, target, StaticOptions{})
		require.NoError(t, err)

		assert.InDelta(t, 1.0, floats.Sum(alloc.Weights), 1e-9)
		for _, w := range alloc.Weights {
			assert.GreaterOrEqual(t, w, 0.0)
		}
		assert.GreaterOrEqual(t, floats.Dot(mean, alloc.Weights), target-1e-9)

		const steps = 200
		for i := 0; i <= steps; i++ {
			for j := 0; i+j <= steps; j++ {
				w := []float64{float64(i) / steps, float64(j) / steps, float64(steps-i-j) / steps}
				if floats.Dot(mean, w) < target {
					continue
				}
				assert.LessOrEqual(t, alloc.Variance, quadForm(cov, w)+1e-10)
			}
		}
	}
}

func TestStaticAllocator_RepairsIndefiniteCovariance(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	cov := mat.NewSymDense(2, []float64{
		1, 2,
		2, 1,
	})

	alloc, err := allocator.MinimumVariance(cov, StaticOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, floats.Sum(alloc.Weights), 1e-9)
	assert.Greater(t, alloc.Variance, 0.0)
}

func TestStaticAllocator_Smoothing(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	cov := mat.NewSymDense(2, []float64{
		0.01, 0,
		0, 0.04,
	})

	plain, err := allocator.MinimumVariance(cov, StaticOptions{})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.8, 0.2}, plain.Weights, 1e-9)

	smooth, err := allocator.MinimumVariance(cov, StaticOptions{Smoothing: 1e6})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, smooth.Weights, 1e-3)
	assert.InDelta(t, quadForm(cov, smooth.Weights), smooth.Variance, 1e-12)

	_, err = allocator.MinimumVariance(cov, StaticOptions{Smoothing: -1})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestStaticAllocator_DimensionMismatch(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	_, err := allocator.MeanVarianceTarget([]float64{0.1, 0.2, 0.3}, cov, 0.1, StaticOptions{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
