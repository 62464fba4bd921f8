package glearning

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrOutOfOrder is returned when Step is called with a period other than
	// the state's next period.
	ErrOutOfOrder = errors.New("learner step out of order")
	// ErrHorizonExhausted is returned once every period has been consumed.
	ErrHorizonExhausted = errors.New("learner horizon exhausted")
	// ErrDimensionMismatch is returned when inputs disagree with the asset count.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidParams     = errors.New("invalid learner parameters")
)

// Params configure the learner.
type Params struct {
	// Lambda penalizes the squared shortfall from the target portfolio value.
	Lambda float64 `msgpack:"lambda" json:"lambda" yaml:"lambda"`
	// Beta is the inverse temperature of the KL regularization.
	Beta  float64 `msgpack:"beta" json:"beta" yaml:"beta"`
	Gamma float64 `msgpack:"gamma" json:"gamma" yaml:"gamma"`
	// Eta is the targeted growth of portfolio value per period.
	Eta float64 `msgpack:"eta" json:"eta" yaml:"eta"`
	// PriorScale is the prior policy variance per asset.
	PriorScale float64 `msgpack:"prior_scale" json:"prior_scale" yaml:"prior_scale"`
	LongOnly   bool    `msgpack:"long_only" json:"long_only" yaml:"long_only"`
	// Explore samples actions from the policy instead of taking its mean.
	Explore bool   `msgpack:"explore" json:"explore" yaml:"explore"`
	Seed    uint64 `msgpack:"seed" json:"seed" yaml:"seed"`
}

// DefaultParams returns the standard learner configuration.
func DefaultParams() Params {
	return Params{
		Lambda:     0.001,
		Beta:       10,
		Gamma:      0.95,
		Eta:        1.01,
		PriorScale: 0.1,
		LongOnly:   true,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case !(p.Lambda > 0):
		return fmt.Errorf("lambda %v: %w", p.Lambda, ErrInvalidParams)
	case !(p.Beta > 0) || math.IsInf(p.Beta, 0):
		return fmt.Errorf("beta %v: %w", p.Beta, ErrInvalidParams)
	case !(p.Gamma >= 0 && p.Gamma <= 1):
		return fmt.Errorf("gamma %v: %w", p.Gamma, ErrInvalidParams)
	case !(p.Eta > 0):
		return fmt.Errorf("eta %v: %w", p.Eta, ErrInvalidParams)
	case !(p.PriorScale > 0) || math.IsInf(p.PriorScale, 0):
		return fmt.Errorf("prior scale %v: %w", p.PriorScale, ErrInvalidParams)
	}
	return nil
}

// State is the learner state threaded through Step. Matrices are stored
// row-major. A State is never modified by Step; each call returns a new one.
type State struct {
	ID        string `msgpack:"id" json:"id"`
	Step      int    `msgpack:"step" json:"step"`
	NumSteps  int    `msgpack:"num_steps" json:"num_steps"`
	NumAssets int    `msgpack:"num_assets" json:"num_assets"`

	Holdings  []float64 `msgpack:"holdings" json:"holdings"`
	PriorMean []float64 `msgpack:"prior_mean" json:"prior_mean"`
	PriorCov  []float64 `msgpack:"prior_cov" json:"prior_cov"`

	// F(x) = xᵀ Fxx x + Fxᵀ x + F0
	Fxx []float64 `msgpack:"fxx" json:"fxx"`
	Fx  []float64 `msgpack:"fx" json:"fx"`
	F0  float64   `msgpack:"f0" json:"f0"`

	PolicyMean []float64 `msgpack:"policy_mean" json:"policy_mean"`
	PolicyCov  []float64 `msgpack:"policy_cov" json:"policy_cov"`

	Params Params `msgpack:"params" json:"params"`
}

// New builds the initial learner state for numSteps periods over numAssets
// risky assets with the given starting holdings in currency units.
func New(numSteps, numAssets int, initialHoldings []float64, params Params) (*State, error) {
	if numSteps < 1 {
		return nil, fmt.Errorf("%d steps: %w", numSteps, ErrInvalidParams)
	}
	if numAssets < 1 || len(initialHoldings) != numAssets {
		return nil, fmt.Errorf("%d holdings for %d assets: %w", len(initialHoldings), numAssets, ErrDimensionMismatch)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	priorCov := make([]float64, numAssets*numAssets)
	for i := 0; i < numAssets; i++ {
		priorCov[i*numAssets+i] = params.PriorScale
	}

	return &State{
		ID:         uuid.NewString(),
		NumSteps:   numSteps,
		NumAssets:  numAssets,
		Holdings:   clone(initialHoldings),
		PriorMean:  make([]float64, numAssets),
		PriorCov:   priorCov,
		Fxx:        make([]float64, numAssets*numAssets),
		Fx:         make([]float64, numAssets),
		PolicyMean: make([]float64, numAssets),
		PolicyCov:  clone(priorCov),
		Params:     params,
	}, nil
}

// Remaining returns the number of periods left.
func (s *State) Remaining() int {
	return s.NumSteps - s.Step
}

// stateWire has State's fields without its methods, so msgpack does not
// recurse into MarshalBinary.
type stateWire State

// MarshalBinary encodes the state as a msgpack checkpoint.
func (s *State) MarshalBinary() ([]byte, error) {
	data, err := msgpack.Marshal((*stateWire)(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode learner state: %w", err)
	}
	return data, nil
}

// UnmarshalBinary decodes a checkpoint produced by MarshalBinary.
func (s *State) UnmarshalBinary(data []byte) error {
	var w stateWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to decode learner state: %w", err)
	}
	decoded := State(w)
	if err := decoded.validate(); err != nil {
		return err
	}
	*s = decoded
	return nil
}

// Restore decodes a checkpoint into a new State.
func Restore(data []byte) (*State, error) {
	s := new(State)
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *State) validate() error {
	n := s.NumAssets
	if n < 1 || len(s.Holdings) != n || len(s.PriorMean) != n || len(s.Fx) != n ||
		len(s.PriorCov) != n*n || len(s.Fxx) != n*n {
		return fmt.Errorf("malformed learner state for %d assets: %w", n, ErrDimensionMismatch)
	}
	return s.Params.Validate()
}

func (s *State) clone() *State {
	c := *s
	c.Holdings = clone(s.Holdings)
	c.PriorMean = clone(s.PriorMean)
	c.PriorCov = clone(s.PriorCov)
	c.Fxx = clone(s.Fxx)
	c.Fx = clone(s.Fx)
	c.PolicyMean = clone(s.PolicyMean)
	c.PolicyCov = clone(s.PolicyCov)
	return &c
}

func clone(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
