package optimization

import "errors"

var (
	// ErrInsufficientData is returned when fewer than two aligned return
	// observations are available.
	ErrInsufficientData = errors.New("insufficient aligned observations")
	// ErrDuplicatePrice is returned when a price panel holds two rows for the
	// same (ticker, date) pair.
	ErrDuplicatePrice = errors.New("duplicate price row")
	// ErrInfeasibleTarget is returned when no admissible portfolio reaches the
	// requested return.
	ErrInfeasibleTarget = errors.New("target return is infeasible")
	ErrInvalidOrder     = errors.New("difference operator order must be 0 or 1")
	ErrInvalidShrinkage = errors.New("shrinkage coefficient must be in [0, 1]")
	ErrInvalidOptions   = errors.New("invalid allocator options")
	// ErrDimensionMismatch is returned when vector and matrix sizes disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNotConverged      = errors.New("quadratic program did not converge")
	errSingular          = errors.New("singular linear system")
)
