package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestHierarchicalRiskParity_TwoAssetsInverseVariance(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	cov := mat.NewSymDense(2, []float64{
		0.01, 0,
		0, 0.04,
	})

	alloc, err := allocator.HierarchicalRiskParity(cov, LinkageSingle)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.8, 0.2}, alloc.Weights, 1e-12)
	assert.InDelta(t, 0.64*0.01+0.04*0.04, alloc.Variance, 1e-12)
}

func TestHierarchicalRiskParity_Linkages(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	// Two correlated pairs: {0,1} and {2,3}.
	cov := mat.NewSymDense(4, []float64{
		0.040, 0.030, 0.002, 0.001,
		0.030, 0.050, 0.001, 0.002,
		0.002, 0.001, 0.090, 0.060,
		0.001, 0.002, 0.060, 0.080,
	})

	for _, linkage := range []Linkage{LinkageSingle, LinkageComplete, LinkageAverage, ""} {
		t.Run(string(linkage), func(t *testing.T) {
			alloc, err := allocator.HierarchicalRiskParity(cov, linkage)
			require.NoError(t, err)

			assert.InDelta(t, 1.0, floats.Sum(alloc.Weights), 1e-12)
			for _, w := range alloc.Weights {
				assert.Greater(t, w, 0.0)
			}
			// The low-variance pair receives more capital.
			assert.Greater(t, alloc.Weights[0]+alloc.Weights[1], alloc.Weights[2]+alloc.Weights[3])
		})
	}
}

func TestHierarchicalRiskParity_Degenerate(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())

	single, err := allocator.HierarchicalRiskParity(mat.NewSymDense(1, []float64{0.02}), LinkageSingle)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, single.Weights)

	_, err = allocator.HierarchicalRiskParity(mat.NewSymDense(2, []float64{0, 0, 0, 0.01}), LinkageSingle)
	assert.Error(t, err)
}

func TestHierarchicalRiskParity_UnknownLinkage(t *testing.T) {
	allocator := NewStaticAllocator(zerolog.Nop())
	cov := mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.09})

	_, err := allocator.HierarchicalRiskParity(cov, "ward")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
