package formulas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CorrelationMatrixFromCovariance calculates the correlation matrix from a covariance matrix.
//
// Formula: corr(i,j) = cov(i,j) / sqrt(cov(i,i) * cov(j,j))
func CorrelationMatrixFromCovariance(cov mat.Symmetric) (*mat.SymDense, error) {
	n := cov.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}

	std := make([]float64, n)
	for i := 0; i < n; i++ {
		v := cov.At(i, i)
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid variance on diagonal at %d: %v", i, v)
		}
		std[i] = math.Sqrt(v)
	}

	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1.0)
		for j := i + 1; j < n; j++ {
			val := cov.At(i, j) / (std[i] * std[j])
			corr.SetSym(i, j, math.Max(-1.0, math.Min(1.0, val)))
		}
	}

	return corr, nil
}

// CorrelationToDistance converts a correlation matrix to the distance metric
// d_ij = sqrt(2 * (1 - rho_ij)) used for hierarchical clustering.
func CorrelationToDistance(corr mat.Symmetric) [][]float64 {
	n := corr.SymmetricDim()
	dist := make([][]float64, n)

	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rho := math.Max(-1.0, math.Min(1.0, corr.At(i, j)))
			dist[i][j] = math.Sqrt(2.0 * (1.0 - rho))
		}
	}

	return dist
}
