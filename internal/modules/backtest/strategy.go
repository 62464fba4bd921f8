package backtest

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/allocator/internal/modules/optimization"
)

// Strategy names a static allocator the backtester can drive.
type Strategy string

const (
	StrategyMinimumVariance        Strategy = "minimumVariancePortfolio"
	StrategyMeanVarianceTarget     Strategy = "meanVariancePortfolioReturnsTarget"
	StrategyHierarchicalRiskParity Strategy = "hierarchicalRiskParity"
)

// ShrinkMethod selects the covariance shrinkage applied before solving.
type ShrinkMethod string

const (
	ShrinkDiagonal ShrinkMethod = "diagonal"
	ShrinkConstant ShrinkMethod = "constant"

	// ShrinkLedoitWolf estimates its own intensity from the window and
	// ignores Options.Shrinkage.
	ShrinkLedoitWolf ShrinkMethod = "ledoit_wolf"
)

// Strategies lists the supported strategies.
func Strategies() []Strategy {
	return []Strategy{StrategyMinimumVariance, StrategyMeanVarianceTarget, StrategyHierarchicalRiskParity}
}

// ParseStrategy maps a name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for _, s := range Strategies() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnknownStrategy)
}

func (b *Backtester) allocate(strategy Strategy, moments *optimization.Moments, opts Options) ([]float64, error) {
	cov, err := shrink(moments, opts)
	if err != nil {
		return nil, err
	}

	static := optimization.StaticOptions{
		LongShort: opts.LongShort,
		Smoothing: opts.Smoothing,
	}

	var alloc *optimization.Allocation
	switch strategy {
	case StrategyMinimumVariance:
		alloc, err = b.allocator.MinimumVariance(cov, static)
	case StrategyMeanVarianceTarget:
		alloc, err = b.allocator.MeanVarianceTarget(moments.Mean, cov, opts.RetTarget, static)
	case StrategyHierarchicalRiskParity:
		linkage := opts.Linkage
		if linkage == "" {
			linkage = optimization.LinkageSingle
		}
		alloc, err = b.allocator.HierarchicalRiskParity(cov, linkage)
	default:
		return nil, fmt.Errorf("%q: %w", strategy, ErrUnknownStrategy)
	}
	if err != nil {
		return nil, err
	}
	return alloc.Weights, nil
}

func shrink(moments *optimization.Moments, opts Options) (*mat.SymDense, error) {
	if opts.ShrinkMethod == ShrinkLedoitWolf {
		shrunk, _, err := optimization.ShrinkLedoitWolf(moments.Returns.Values)
		return shrunk, err
	}

	cov := moments.Cov
	if opts.Shrinkage == 0 {
		return cov, nil
	}
	switch opts.ShrinkMethod {
	case "", ShrinkDiagonal:
		return optimization.ShrinkDiagonal(cov, opts.Shrinkage)
	case ShrinkConstant:
		return optimization.ShrinkConstantCovariance(cov, opts.Shrinkage)
	default:
		return nil, fmt.Errorf("shrink method %q: %w", opts.ShrinkMethod, ErrInvalidOptions)
	}
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}
