package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// quadProgram is
//
//	minimize   ½ xᵀPx + qᵀx
//	subject to eq·x = beq, ineq·x ≥ h
//
// with P positive definite. Constraint rows are dense slices of length n.
type quadProgram struct {
	P    *mat.SymDense
	q    []float64
	eq   [][]float64
	beq  []float64
	ineq [][]float64
	h    []float64
	tol  float64
}

// solveKKT solves [P Aᵀ; A 0]·[x; ν] = [rx; rc] for the stacked rows A.
func solveKKT(P mat.Symmetric, rows [][]float64, rx, rc []float64) (x, nu []float64, err error) {
	n := P.SymmetricDim()
	m := len(rows)

	k := mat.NewDense(n+m, n+m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k.Set(i, j, P.At(i, j))
		}
	}
	for r, row := range rows {
		for j, v := range row {
			k.Set(n+r, j, v)
			k.Set(j, n+r, v)
		}
	}

	rhs := mat.NewVecDense(n+m, nil)
	for i, v := range rx {
		rhs.SetVec(i, v)
	}
	for i, v := range rc {
		rhs.SetVec(n+i, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(k, rhs); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errSingular, err)
	}

	x = make([]float64, n)
	nu = make([]float64, m)
	for i := range x {
		x[i] = sol.AtVec(i)
	}
	for i := range nu {
		nu[i] = sol.AtVec(n + i)
	}
	return x, nu, nil
}

func (qp *quadProgram) gradient(x []float64) []float64 {
	g := mat.NewVecDense(len(x), nil)
	g.MulVec(qp.P, mat.NewVecDense(len(x), x))
	out := make([]float64, len(x))
	for i := range out {
		out[i] = g.AtVec(i)
		if qp.q != nil {
			out[i] += qp.q[i]
		}
	}
	return out
}

// solveEquality returns the minimizer subject to the equality rows only.
func (qp *quadProgram) solveEquality() ([]float64, error) {
	rx := make([]float64, qp.P.SymmetricDim())
	if qp.q != nil {
		floats.ScaleTo(rx, -1, qp.q)
	}
	x, _, err := solveKKT(qp.P, qp.eq, rx, qp.beq)
	return x, err
}

// solveActiveSet runs the primal active-set method from the feasible point
// x0. working lists inequality rows active at x0 that start in the working
// set.
func (qp *quadProgram) solveActiveSet(x0 []float64, working []int) ([]float64, error) {
	n := len(x0)
	x := make([]float64, n)
	copy(x, x0)

	active := make([]bool, len(qp.ineq))
	for _, i := range working {
		active[i] = true
	}

	maxIter := 50 * (n + len(qp.ineq) + 1)
	for iter := 0; iter < maxIter; iter++ {
		rows := make([][]float64, 0, len(qp.eq)+len(qp.ineq))
		rows = append(rows, qp.eq...)
		activeIdx := make([]int, 0, len(qp.ineq))
		for i, row := range qp.ineq {
			if active[i] {
				rows = append(rows, row)
				activeIdx = append(activeIdx, i)
			}
		}

		g := qp.gradient(x)
		floats.Scale(-1, g)
		p, nu, err := solveKKT(qp.P, rows, g, make([]float64, len(rows)))
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}

		if floats.Norm(p, math.Inf(1)) <= qp.tol {
			// Multipliers of ineq rows are -ν; release the most negative.
			release, worst := -1, -qp.tol
			for k, i := range activeIdx {
				if lambda := -nu[len(qp.eq)+k]; lambda < worst {
					release, worst = i, lambda
				}
			}
			if release < 0 {
				return x, nil
			}
			active[release] = false
			continue
		}

		step, blocking := 1.0, -1
		for i, row := range qp.ineq {
			if active[i] {
				continue
			}
			ap := floats.Dot(row, p)
			if ap >= -1e-14 {
				continue
			}
			if alpha := (qp.h[i] - floats.Dot(row, x)) / ap; alpha < step {
				step, blocking = math.Max(alpha, 0), i
			}
		}

		floats.AddScaled(x, step, p)
		if blocking >= 0 {
			active[blocking] = true
		}
	}

	return nil, fmt.Errorf("after %d iterations: %w", maxIter, ErrNotConverged)
}
