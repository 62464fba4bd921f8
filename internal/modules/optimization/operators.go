package optimization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DifferenceMatrix builds the order-k structural operator over n variables:
// k=0 is the n×n identity, k=1 the (n-1)×n first difference with +1 at column
// i and -1 at column i+1 on row i.
func DifferenceMatrix(n, k int) (*mat.Dense, error) {
	switch k {
	case 0:
		if n < 1 {
			return nil, fmt.Errorf("identity of size %d: %w", n, ErrInvalidOrder)
		}
		d := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			d.Set(i, i, 1)
		}
		return d, nil
	case 1:
		if n < 2 {
			return nil, fmt.Errorf("first difference of size %d: %w", n, ErrInvalidOrder)
		}
		d := mat.NewDense(n-1, n, nil)
		for i := 0; i < n-1; i++ {
			d.Set(i, i, 1)
			d.Set(i, i+1, -1)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("order %d: %w", k, ErrInvalidOrder)
	}
}
