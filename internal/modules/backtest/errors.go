package backtest

import "errors"

var (
	// ErrUnknownStrategy is returned for a strategy name the backtester does
	// not know.
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidOptions  = errors.New("invalid backtest options")
	// ErrInsufficientData is returned when the panel has no rows beyond the
	// first window.
	ErrInsufficientData = errors.New("not enough rows for a backtest window")
)
