package optimization

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/allocator/pkg/logger"
)

// StaticOptions configure the single-period allocators.
type StaticOptions struct {
	LongShort bool    `json:"long_short" yaml:"long_short"`
	Smoothing float64 `json:"smoothing" yaml:"smoothing"` // weight of ‖D₁w‖² added to the objective
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// Allocation is an optimal weight vector with its risk and expected return.
// Return is zero when no mean vector was supplied.
type Allocation struct {
	Weights  []float64 `json:"weights"`
	Variance float64   `json:"variance"`
	Return   float64   `json:"return"`
}

// StdDev returns the square root of the portfolio variance.
func (a *Allocation) StdDev() float64 {
	return math.Sqrt(math.Max(a.Variance, 0))
}

// StaticAllocator solves the minimum-variance and target-return quadratic
// programs on a conditioned covariance matrix.
type StaticAllocator struct {
	log zerolog.Logger
}

// NewStaticAllocator creates a new static allocator.
func NewStaticAllocator(log zerolog.Logger) *StaticAllocator {
	return &StaticAllocator{
		log: logger.Component(log, "static_allocator"),
	}
}

// MinimumVariance minimizes wᵀΣw subject to Σwᵢ = 1 (and w ≥ 0 unless long-short).
func (s *StaticAllocator) MinimumVariance(cov mat.Symmetric, opts StaticOptions) (*Allocation, error) {
	return s.solve(nil, cov, nil, opts)
}

// MeanVarianceTarget minimizes wᵀΣw subject to Σwᵢ = 1 and μᵀw ≥ target.
func (s *StaticAllocator) MeanVarianceTarget(mean []float64, cov mat.Symmetric, target float64, opts StaticOptions) (*Allocation, error) {
	if mean == nil {
		return nil, fmt.Errorf("mean vector required: %w", ErrDimensionMismatch)
	}
	return s.solve(mean, cov, &target, opts)
}

func (s *StaticAllocator) solve(mean []float64, cov mat.Symmetric, target *float64, opts StaticOptions) (*Allocation, error) {
	n := cov.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix: %w", ErrDimensionMismatch)
	}
	if mean != nil && len(mean) != n {
		return nil, fmt.Errorf("mean has %d assets, covariance %d: %w", len(mean), n, ErrDimensionMismatch)
	}
	if opts.Smoothing < 0 || math.IsNaN(opts.Smoothing) {
		return nil, fmt.Errorf("smoothing %v: %w", opts.Smoothing, ErrInvalidOptions)
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	repair, err := NearestSPD(cov, tol)
	if err != nil {
		return nil, fmt.Errorf("failed to condition covariance: %w", err)
	}
	if repair.Repaired {
		s.log.Warn().
			Float64("min_eigenvalue", repair.Values[0]).
			Int("assets", n).
			Msg("Covariance matrix was not SPD, repaired")
	}
	sigma := repair.Matrix

	qp, err := newPortfolioProgram(sigma, opts.Smoothing, tol)
	if err != nil {
		return nil, err
	}

	var weights []float64
	if opts.LongShort {
		weights, err = s.solveLongShort(qp, mean, target)
	} else {
		weights, err = s.solveLongOnly(qp, mean, target)
	}
	if err != nil {
		return nil, err
	}

	alloc := &Allocation{
		Weights:  weights,
		Variance: quadForm(sigma, weights),
	}
	if mean != nil {
		alloc.Return = floats.Dot(mean, weights)
	}

	event := s.log.Debug().
		Int("assets", n).
		Bool("long_short", opts.LongShort).
		Float64("variance", alloc.Variance)
	if target != nil {
		event = event.Float64("target", *target)
	}
	event.Msg("Static allocation solved")

	return alloc, nil
}

// newPortfolioProgram builds P = 2(Σ + λD₁ᵀD₁) with the budget constraint.
func newPortfolioProgram(sigma *mat.SymDense, smoothing, tol float64) (*quadProgram, error) {
	n := sigma.SymmetricDim()

	P := mat.NewSymDense(n, nil)
	P.ScaleSym(2, sigma)
	if smoothing > 0 && n > 1 {
		d, err := DifferenceMatrix(n, 1)
		if err != nil {
			return nil, err
		}
		var dtd mat.SymDense
		dtd.SymOuterK(2*smoothing, d.T())
		P.AddSym(P, &dtd)
	}

	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}

	return &quadProgram{
		P:   P,
		eq:  [][]float64{ones},
		beq: []float64{1},
		tol: tol,
	}, nil
}

// solveLongShort uses the closed-form KKT solution. A target is imposed as an
// equality only when the budget-only optimum misses it.
func (s *StaticAllocator) solveLongShort(qp *quadProgram, mean []float64, target *float64) ([]float64, error) {
	weights, err := qp.solveEquality()
	if err != nil {
		return nil, fmt.Errorf("minimum variance system: %w", err)
	}
	if target == nil || floats.Dot(mean, weights) >= *target-qp.tol {
		return weights, nil
	}

	qp.eq = append(qp.eq, mean)
	qp.beq = append(qp.beq, *target)
	weights, err = qp.solveEquality()
	if errors.Is(err, errSingular) {
		return nil, fmt.Errorf("target %v with collinear returns: %w", *target, ErrInfeasibleTarget)
	}
	if err != nil {
		return nil, err
	}
	return weights, nil
}

// solveLongOnly adds w ≥ 0 (and μᵀw ≥ target) and runs the active-set method.
func (s *StaticAllocator) solveLongOnly(qp *quadProgram, mean []float64, target *float64) ([]float64, error) {
	n := qp.P.SymmetricDim()

	identity, err := DifferenceMatrix(n, 0)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		qp.ineq = append(qp.ineq, mat.Row(nil, i, identity))
		qp.h = append(qp.h, 0)
	}

	start := make([]float64, n)
	for i := range start {
		start[i] = 1 / float64(n)
	}
	var working []int

	if target != nil {
		best := floats.MaxIdx(mean)
		if *target > mean[best]+qp.tol {
			return nil, fmt.Errorf("target %v above best asset return %v: %w", *target, mean[best], ErrInfeasibleTarget)
		}
		// A target within tol of the best asset is met by holding that asset alone.
		bound := math.Min(*target, mean[best])
		qp.ineq = append(qp.ineq, mean)
		qp.h = append(qp.h, bound)

		if floats.Dot(mean, start) < bound {
			// Start from the best single asset, every other weight pinned at zero.
			for i := range start {
				start[i] = 0
				if i != best {
					working = append(working, i)
				}
			}
			start[best] = 1
		}
	}

	weights, err := qp.solveActiveSet(start, working)
	if err != nil {
		return nil, err
	}

	for i, w := range weights {
		if w < 0 {
			weights[i] = 0
		}
	}
	sum := floats.Sum(weights)
	if sum <= 0 {
		return nil, fmt.Errorf("degenerate long-only solution: %w", ErrNotConverged)
	}
	floats.Scale(1/sum, weights)
	return weights, nil
}

func quadForm(a mat.Symmetric, x []float64) float64 {
	v := mat.NewVecDense(len(x), x)
	return mat.Inner(v, a, v)
}
