package wealth

import "errors"

var (
	// ErrInvalidConfig is returned for malformed goal configurations.
	ErrInvalidConfig = errors.New("invalid goal configuration")
	// ErrInvalidHyperParams is returned for Q-learning hyperparameters out of range.
	ErrInvalidHyperParams = errors.New("invalid hyperparameters")
)
