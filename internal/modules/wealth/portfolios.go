package wealth

import (
	"fmt"
	"math"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/pkg/logger"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Portfolio is one candidate action: frontier weights with their per-period
// return mean and standard deviation.
type Portfolio struct {
	Weights []float64 `json:"weights"`
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"std_dev"`
}

// Allocator solves the wealth-goal problem by dynamic programming or
// Q-learning over a fixed set of frontier portfolios. Returns are assumed
// approximately Gaussian; this is not checked.
type Allocator struct {
	static *optimization.StaticAllocator
	log    zerolog.Logger
}

// NewAllocator creates a new wealth-goal allocator.
func NewAllocator(log zerolog.Logger) *Allocator {
	return &Allocator{
		static: optimization.NewStaticAllocator(log),
		log:    logger.Component(log, "wealth_allocator"),
	}
}

// Candidates spans the efficient frontier of the shrunk covariance with
// cfg.NumPortfolios portfolios, scaled to one time step.
func (a *Allocator) Candidates(mean []float64, cov mat.Symmetric, cfg GoalConfig) ([]Portfolio, error) {
	shrunk, err := optimization.ShrinkDiagonal(cov, cfg.Shrinkage)
	if err != nil {
		return nil, err
	}

	frontier, err := a.static.EfficientFrontier(mean, shrunk, cfg.NumPortfolios, optimization.StaticOptions{LongShort: cfg.LongShort})
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate portfolios: %w", err)
	}

	portfolios := make([]Portfolio, len(frontier))
	for i, alloc := range frontier {
		portfolios[i] = Portfolio{
			Weights: alloc.Weights,
			Mean:    alloc.Return * cfg.TimeStep,
			StdDev:  alloc.StdDev() * math.Sqrt(cfg.TimeStep),
		}
	}
	return portfolios, nil
}

func (a *Allocator) prepare(mean []float64, cov mat.Symmetric, cfg GoalConfig) (GoalConfig, []Portfolio, [][]float64, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, nil, nil, err
	}
	portfolios, err := a.Candidates(mean, cov, cfg)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, portfolios, buildGrid(cfg, portfolios), nil
}
