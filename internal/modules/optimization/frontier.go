package optimization

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// EfficientFrontier returns count allocations whose return targets are evenly
// spaced from the minimum-variance portfolio's return up to the best single
// asset return. The first entry is the minimum-variance portfolio.
func (s *StaticAllocator) EfficientFrontier(mean []float64, cov mat.Symmetric, count int, opts StaticOptions) ([]*Allocation, error) {
	if count < 1 {
		return nil, fmt.Errorf("frontier of %d portfolios: %w", count, ErrInvalidOptions)
	}
	if len(mean) != cov.SymmetricDim() {
		return nil, fmt.Errorf("mean has %d assets, covariance %d: %w", len(mean), cov.SymmetricDim(), ErrDimensionMismatch)
	}

	mvp, err := s.MinimumVariance(cov, opts)
	if err != nil {
		return nil, fmt.Errorf("frontier minimum variance: %w", err)
	}
	mvp.Return = floats.Dot(mean, mvp.Weights)

	frontier := make([]*Allocation, 0, count)
	frontier = append(frontier, mvp)

	lo, hi := mvp.Return, floats.Max(mean)
	for i := 1; i < count; i++ {
		target := lo + (hi-lo)*float64(i)/float64(count-1)
		alloc, err := s.MeanVarianceTarget(mean, cov, target, opts)
		if err != nil {
			return nil, fmt.Errorf("frontier point %d (target %v): %w", i, target, err)
		}
		frontier = append(frontier, alloc)
	}

	s.log.Debug().
		Int("portfolios", count).
		Float64("min_return", lo).
		Float64("max_return", hi).
		Msg("Efficient frontier built")

	return frontier, nil
}
