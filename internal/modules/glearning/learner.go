package glearning

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/pkg/logger"
)

// Learner runs entropy-regularized G-learning one period at a time.
// The learner itself is stateless; everything that carries over between
// periods lives in State.
type Learner struct {
	log zerolog.Logger
}

// NewLearner creates a learner.
func NewLearner(log zerolog.Logger) *Learner {
	return &Learner{
		log: logger.Component(log, "g_learner"),
	}
}

// Step consumes period t. expReturns and cov describe the expected one-period
// simple returns, realized holds the returns actually observed over the
// period. It returns the target weights for the period and the state for
// period t+1. state is not modified.
func (l *Learner) Step(t int, state *State, expReturns []float64, cov mat.Symmetric, realized []float64) ([]float64, *State, error) {
	if state == nil {
		return nil, nil, fmt.Errorf("nil learner state: %w", ErrInvalidParams)
	}
	if err := state.validate(); err != nil {
		return nil, nil, err
	}
	if state.Step >= state.NumSteps {
		return nil, nil, fmt.Errorf("step %d of %d: %w", t, state.NumSteps, ErrHorizonExhausted)
	}
	if t != state.Step {
		return nil, nil, fmt.Errorf("got step %d, want %d: %w", t, state.Step, ErrOutOfOrder)
	}

	n := state.NumAssets
	if len(expReturns) != n || len(realized) != n || cov == nil || cov.SymmetricDim() != n {
		return nil, nil, fmt.Errorf("inputs do not match %d assets: %w", n, ErrDimensionMismatch)
	}

	p := state.Params
	x := mat.NewVecDense(n, clone(state.Holdings))

	gross := make([]float64, n)
	for i, r := range expReturns {
		gross[i] = 1 + r
	}
	g := mat.NewVecDense(n, gross)

	// Second moment of gross returns.
	m := mat.NewSymDense(n, nil)
	m.SymOuterK(1, g)
	m.AddSym(m, cov)

	fxx := mat.NewSymDense(n, clone(state.Fxx))

	// Reward plus discounted continuation, as a function of post-trade
	// holdings y: yᵀQy + (qc + Bx)ᵀy + const.
	q := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			mij := m.At(i, j)
			q.SetSym(i, j, -p.Lambda*mij+p.Gamma*fxx.At(i, j)*mij)
		}
	}
	qc := make([]float64, n)
	for i := range qc {
		qc[i] = p.Gamma * state.Fx[i] * gross[i]
	}
	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, 2*p.Lambda*p.Eta*gross[i])
		}
	}

	priorCov := mat.NewSymDense(n, clone(state.PriorCov))
	var priorChol mat.Cholesky
	if ok := priorChol.Factorize(priorCov); !ok {
		return nil, nil, fmt.Errorf("prior covariance is not positive definite: %w", ErrInvalidParams)
	}
	priorPrec := mat.NewSymDense(n, nil)
	if err := priorChol.InverseTo(priorPrec); err != nil {
		return nil, nil, fmt.Errorf("failed to invert prior covariance: %w", err)
	}

	// Policy precision.
	prec := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			prec.SetSym(i, j, priorPrec.At(i, j)-2*p.Beta*q.At(i, j))
		}
	}
	repair, err := optimization.NearestSPD(prec, optimization.DefaultTolerance)
	if err != nil {
		return nil, nil, err
	}
	if repair.Repaired {
		l.log.Warn().Int("step", t).Msg("Policy precision was not positive definite, repaired")
	}
	var precChol mat.Cholesky
	if ok := precChol.Factorize(repair.Matrix); !ok {
		return nil, nil, fmt.Errorf("policy precision factorization failed at step %d", t)
	}
	policyCov := mat.NewSymDense(n, nil)
	if err := precChol.InverseTo(policyCov); err != nil {
		return nil, nil, fmt.Errorf("failed to invert policy precision: %w", err)
	}

	// Linear term of the policy exponent: h0 + Hx.
	priorMean := mat.NewVecDense(n, clone(state.PriorMean))
	h0 := mat.NewVecDense(n, nil)
	h0.MulVec(priorPrec, priorMean)
	h0.AddScaledVec(h0, p.Beta, mat.NewVecDense(n, qc))

	h := mat.NewDense(n, n, nil)
	h.Scale(2, q)
	h.Add(h, b)
	h.Scale(p.Beta, h)

	lin := mat.NewVecDense(n, nil)
	lin.MulVec(h, x)
	lin.AddVec(lin, h0)

	policyMean := mat.NewVecDense(n, nil)
	if err := precChol.SolveVecTo(policyMean, lin); err != nil {
		return nil, nil, fmt.Errorf("failed to solve for policy mean: %w", err)
	}

	// Free energy F(x) = (1/β) log E_prior[exp(βG)] stays quadratic in x.
	var sh, hsh mat.Dense
	sh.Mul(policyCov, h)
	hsh.Mul(h.T(), &sh)
	nextFxx := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := q.At(i, j) + (b.At(i, j)+b.At(j, i))/2 - p.Lambda*p.Eta*p.Eta +
				(hsh.At(i, j)+hsh.At(j, i))/(4*p.Beta)
			nextFxx.SetSym(i, j, -v)
		}
	}
	// Keep the carried value concave so the next precision stays definite.
	concave, err := optimization.NearestSPD(nextFxx, optimization.DefaultTolerance)
	if err != nil {
		return nil, nil, err
	}
	nextFxx.ScaleSym(-1, concave.Matrix)

	sh0 := mat.NewVecDense(n, nil)
	sh0.MulVec(policyCov, h0)
	nextFx := mat.NewVecDense(n, nil)
	nextFx.MulVec(h.T(), sh0)
	nextFx.ScaleVec(1/p.Beta, nextFx)
	nextFx.AddVec(nextFx, mat.NewVecDense(n, qc))

	logDet := priorChol.LogDet() + precChol.LogDet()
	nextF0 := p.Gamma*state.F0 +
		(0.5*mat.Dot(h0, sh0)-0.5*mat.Inner(priorMean, priorPrec, priorMean)-0.5*logDet)/p.Beta

	action := policyMean.RawVector().Data
	if p.Explore {
		dist, ok := distmv.NewNormal(clone(action), policyCov, rand.NewPCG(p.Seed, uint64(t)))
		if ok {
			action = dist.Rand(nil)
		} else {
			l.log.Warn().Int("step", t).Msg("Policy covariance not positive definite, using mean action")
		}
	}

	post := make([]float64, n)
	for i := range post {
		post[i] = state.Holdings[i] + action[i]
	}
	weights := holdingsToWeights(post, p.LongOnly)

	total := floats.Sum(post)
	if !(total > 0) || math.IsInf(total, 0) {
		total = floats.Sum(state.Holdings)
	}

	next := state.clone()
	next.Step++
	for i := range next.Holdings {
		next.Holdings[i] = (1 + realized[i]) * weights[i] * total
	}
	next.PriorMean = clone(policyMean.RawVector().Data)
	next.PolicyMean = clone(next.PriorMean)
	next.PolicyCov = symData(policyCov)
	next.Fxx = symData(nextFxx)
	next.Fx = clone(nextFx.RawVector().Data)
	next.F0 = nextF0

	l.log.Debug().
		Str("state", state.ID).
		Int("step", t).
		Float64("value", floats.Sum(next.Holdings)).
		Msg("G-learning step complete")

	return weights, next, nil
}

// holdingsToWeights normalizes post-trade holdings to weights. Long-only
// weights are projected onto the simplex; a degenerate total gives equal
// weights.
func holdingsToWeights(holdings []float64, longOnly bool) []float64 {
	n := len(holdings)
	total := floats.Sum(holdings)
	w := make([]float64, n)
	if math.Abs(total) < 1e-12 || math.IsNaN(total) || math.IsInf(total, 0) {
		for i := range w {
			w[i] = 1 / float64(n)
		}
		return w
	}
	floats.ScaleTo(w, 1/total, holdings)
	if longOnly && floats.Min(w) < 0 {
		return projectSimplex(w)
	}
	return w
}

// projectSimplex returns the Euclidean projection of v onto the unit simplex.
func projectSimplex(v []float64) []float64 {
	u := clone(v)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	var cum, theta float64
	for j, uj := range u {
		cum += uj
		t := (cum - 1) / float64(j+1)
		if uj-t > 0 {
			theta = t
		}
	}

	out := make([]float64, len(v))
	for i, vi := range v {
		out[i] = math.Max(vi-theta, 0)
	}
	return out
}

func symData(s *mat.SymDense) []float64 {
	n := s.SymmetricDim()
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = s.At(i, j)
		}
	}
	return out
}
