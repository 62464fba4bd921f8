package wealth

import (
	"fmt"
	"math"
)

// GoalConfig describes a multi-period investment toward a terminal wealth goal.
type GoalConfig struct {
	InitialWealth  float64 `json:"initial_wealth" yaml:"initial_wealth"`
	WealthGoal     float64 `json:"wealth_goal" yaml:"wealth_goal"`
	CashInjection  float64 `json:"cash_injection" yaml:"cash_injection"`
	Horizon        int     `json:"horizon" yaml:"horizon"`
	TimeStep       float64 `json:"time_step" yaml:"time_step"`
	NumPortfolios  int     `json:"num_portfolios" yaml:"num_portfolios"`
	GridResolution int     `json:"grid_resolution" yaml:"grid_resolution"` // grid intervals between zero and the goal
	Shrinkage      float64 `json:"shrinkage" yaml:"shrinkage"`
	LongShort      bool    `json:"long_short" yaml:"long_short"`
}

// DefaultGoalConfig returns the defaults applied to zero-valued fields.
func DefaultGoalConfig() GoalConfig {
	return GoalConfig{
		InitialWealth:  100,
		WealthGoal:     200,
		CashInjection:  10,
		Horizon:        10,
		TimeStep:       1,
		NumPortfolios:  15,
		GridResolution: 100,
	}
}

// WithDefaults fills zero-valued sizing fields. WealthGoal and CashInjection
// are taken as given.
func (c GoalConfig) WithDefaults() GoalConfig {
	def := DefaultGoalConfig()
	if c.InitialWealth == 0 {
		c.InitialWealth = def.InitialWealth
	}
	if c.Horizon == 0 {
		c.Horizon = def.Horizon
	}
	if c.TimeStep == 0 {
		c.TimeStep = def.TimeStep
	}
	if c.NumPortfolios == 0 {
		c.NumPortfolios = def.NumPortfolios
	}
	if c.GridResolution == 0 {
		c.GridResolution = def.GridResolution
	}
	return c
}

// Validate reports the first invalid field.
func (c GoalConfig) Validate() error {
	switch {
	case !(c.InitialWealth > 0) || math.IsInf(c.InitialWealth, 0):
		return fmt.Errorf("initial wealth %v: %w", c.InitialWealth, ErrInvalidConfig)
	case !(c.WealthGoal > 0) || math.IsInf(c.WealthGoal, 0):
		return fmt.Errorf("wealth goal %v: %w", c.WealthGoal, ErrInvalidConfig)
	case c.CashInjection < 0 || math.IsNaN(c.CashInjection):
		return fmt.Errorf("cash injection %v: %w", c.CashInjection, ErrInvalidConfig)
	case c.Horizon < 1:
		return fmt.Errorf("horizon %d: %w", c.Horizon, ErrInvalidConfig)
	case !(c.TimeStep > 0):
		return fmt.Errorf("time step %v: %w", c.TimeStep, ErrInvalidConfig)
	case c.NumPortfolios < 1:
		return fmt.Errorf("%d portfolios: %w", c.NumPortfolios, ErrInvalidConfig)
	case c.GridResolution < 1:
		return fmt.Errorf("grid resolution %d: %w", c.GridResolution, ErrInvalidConfig)
	case c.Shrinkage < 0 || c.Shrinkage > 1 || math.IsNaN(c.Shrinkage):
		return fmt.Errorf("shrinkage %v: %w", c.Shrinkage, ErrInvalidConfig)
	}
	return nil
}

// HyperParams configure tabular Q-learning.
type HyperParams struct {
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`
	Alpha   float64 `json:"alpha" yaml:"alpha"`
	Gamma   float64 `json:"gamma" yaml:"gamma"`
	Epochs  int     `json:"epochs" yaml:"epochs"`
	Seed    uint64  `json:"seed" yaml:"seed"`
}

// DefaultHyperParams returns the hyperparameters used when none are given.
func DefaultHyperParams() HyperParams {
	return HyperParams{
		Epsilon: 0.3,
		Alpha:   0.1,
		Gamma:   0.9,
		Epochs:  10000,
		Seed:    2022,
	}
}

// Validate checks ε ∈ [0,1], α ∈ (0,1], γ ∈ [0,1] and at least one epoch.
func (h HyperParams) Validate() error {
	switch {
	case !(h.Epsilon >= 0 && h.Epsilon <= 1):
		return fmt.Errorf("epsilon %v: %w", h.Epsilon, ErrInvalidHyperParams)
	case !(h.Alpha > 0 && h.Alpha <= 1):
		return fmt.Errorf("alpha %v: %w", h.Alpha, ErrInvalidHyperParams)
	case !(h.Gamma >= 0 && h.Gamma <= 1):
		return fmt.Errorf("gamma %v: %w", h.Gamma, ErrInvalidHyperParams)
	case h.Epochs < 1:
		return fmt.Errorf("epochs %d: %w", h.Epochs, ErrInvalidHyperParams)
	}
	return nil
}
