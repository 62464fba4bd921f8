package optimization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SymmetricFromRows builds a symmetric matrix from a square row-major table,
// averaging each off-diagonal pair.
func SymmetricFromRows(rows [][]float64) (*mat.SymDense, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("empty matrix: %w", ErrDimensionMismatch)
	}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(row), n, ErrDimensionMismatch)
		}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (rows[i][j]+rows[j][i])/2)
		}
	}
	return sym, nil
}

// SymmetricRows returns the matrix as a row-major table.
func SymmetricRows(s mat.Symmetric) [][]float64 {
	n := s.SymmetricDim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = s.At(i, j)
		}
	}
	return rows
}
