package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultTolerance is the numeric tolerance used for SPD checks and QP
// convergence.
const DefaultTolerance = 1e-8

// Repair is the result of NearestSPD. Values and Vectors are the retained
// eigenpairs of Matrix, eigenvalues ascending.
type Repair struct {
	Matrix   *mat.SymDense
	Values   []float64
	Vectors  *mat.Dense
	Repaired bool
}

// NearestSPD returns a symmetric positive definite matrix close to a. When a
// is already symmetric within tol with every eigenvalue above tol it is
// returned unchanged. Otherwise the symmetric part is eigendecomposed,
// eigenvalues below the floor are clipped to it and the matrix is rebuilt.
func NearestSPD(a mat.Matrix, tol float64) (*Repair, error) {
	r, c := a.Dims()
	if r != c || r == 0 {
		return nil, fmt.Errorf("matrix is %dx%d, want square: %w", r, c, ErrDimensionMismatch)
	}
	if tol <= 0 {
		tol = DefaultTolerance
	}

	symmetric := true
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			aij, aji := a.At(i, j), a.At(j, i)
			if math.Abs(aij-aji) > tol {
				symmetric = false
			}
			sym.SetSym(i, j, (aij+aji)/2)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, fmt.Errorf("eigendecomposition failed")
	}
	values := eig.Values(nil)
	vectors := new(mat.Dense)
	eig.VectorsTo(vectors)

	if symmetric && values[0] > tol {
		return &Repair{Matrix: sym, Values: values, Vectors: vectors}, nil
	}

	floor := tol * math.Max(1, math.Abs(values[len(values)-1]))
	for i, v := range values {
		if v < floor {
			values[i] = floor
		}
	}

	// Q diag(λ) Qᵀ
	scaled := mat.DenseCopyOf(vectors)
	for j, v := range values {
		col := scaled.ColView(j).(*mat.VecDense)
		col.ScaleVec(v, col)
	}
	var full mat.Dense
	full.Mul(scaled, vectors.T())

	repaired := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			repaired.SetSym(i, j, (full.At(i, j)+full.At(j, i))/2)
		}
	}

	return &Repair{Matrix: repaired, Values: values, Vectors: vectors, Repaired: true}, nil
}

// ShrinkDiagonal returns cov + lambda·mean(diag(cov))·I. Off-diagonal entries
// are untouched.
func ShrinkDiagonal(cov mat.Symmetric, lambda float64) (*mat.SymDense, error) {
	if lambda < 0 || lambda > 1 || math.IsNaN(lambda) {
		return nil, fmt.Errorf("lambda %v: %w", lambda, ErrInvalidShrinkage)
	}

	n := cov.SymmetricDim()
	shrunk := mat.NewSymDense(n, nil)
	shrunk.CopySym(cov)
	if n == 0 || lambda == 0 {
		return shrunk, nil
	}

	avgVar := 0.0
	for i := 0; i < n; i++ {
		avgVar += cov.At(i, i)
	}
	avgVar /= float64(n)

	for i := 0; i < n; i++ {
		shrunk.SetSym(i, i, shrunk.At(i, i)+lambda*avgVar)
	}
	return shrunk, nil
}

// ShrinkConstantCovariance blends cov toward a target with the average
// variance on the diagonal and the average covariance elsewhere:
// (1-delta)·cov + delta·target.
func ShrinkConstantCovariance(cov mat.Symmetric, delta float64) (*mat.SymDense, error) {
	if delta < 0 || delta > 1 || math.IsNaN(delta) {
		return nil, fmt.Errorf("delta %v: %w", delta, ErrInvalidShrinkage)
	}

	n := cov.SymmetricDim()
	shrunk := mat.NewSymDense(n, nil)
	shrunk.CopySym(cov)
	if n < 2 || delta == 0 {
		return shrunk, nil
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += cov.At(i, i)
		for j := i + 1; j < n; j++ {
			avgCov += cov.At(i, j)
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1) / 2)

	for i := 0; i < n; i++ {
		shrunk.SetSym(i, i, (1-delta)*cov.At(i, i)+delta*avgVar)
		for j := i + 1; j < n; j++ {
			shrunk.SetSym(i, j, (1-delta)*cov.At(i, j)+delta*avgCov)
		}
	}
	return shrunk, nil
}

// ShrinkLedoitWolf estimates the covariance of the rows of returns with the
// Ledoit-Wolf (2004) estimator: the 1/T sample covariance blended toward
// mean(diag)·I with the intensity that minimizes the expected Frobenius
// loss. It returns the shrunk matrix and the intensity, which lies in [0, 1].
func ShrinkLedoitWolf(returns mat.Matrix) (*mat.SymDense, float64, error) {
	t, n := returns.Dims()
	if t < 2 || n == 0 {
		return nil, 0, fmt.Errorf("%d observations of %d assets: %w", t, n, ErrInsufficientData)
	}

	x := mat.DenseCopyOf(returns)
	for j := 0; j < n; j++ {
		mean := 0.0
		for i := 0; i < t; i++ {
			mean += x.At(i, j)
		}
		mean /= float64(t)
		for i := 0; i < t; i++ {
			x.Set(i, j, x.At(i, j)-mean)
		}
	}

	sample := mat.NewSymDense(n, nil)
	sample.SymOuterK(1/float64(t), x.T())

	mu := 0.0
	for i := 0; i < n; i++ {
		mu += sample.At(i, i)
	}
	mu /= float64(n)

	// Squared distance of the sample matrix from the target.
	var d2 float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := sample.At(i, j)
			if i == j {
				v -= mu
			}
			d2 += v * v
		}
	}
	d2 /= float64(n)

	// Estimation error of the sample matrix, capped at d2.
	var b2 float64
	for k := 0; k < t; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := x.At(k, i)*x.At(k, j) - sample.At(i, j)
				b2 += v * v
			}
		}
	}
	b2 /= float64(n) * float64(t) * float64(t)
	b2 = math.Min(b2, d2)

	intensity := 0.0
	if d2 > 0 {
		intensity = b2 / d2
	}

	shrunk := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (1 - intensity) * sample.At(i, j)
			if i == j {
				v += intensity * mu
			}
			shrunk.SetSym(i, j, v)
		}
	}
	return shrunk, intensity, nil
}
