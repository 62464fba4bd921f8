package wealth

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSolveQLearning_CertainGoal(t *testing.T) {
	allocator := NewAllocator(zerolog.Nop())
	cov := mat.NewSymDense(1, []float64{1e-12})
	hp := DefaultHyperParams()

	solution, err := allocator.SolveQLearning([]float64{0.013}, cov, GoalConfig{
		InitialWealth:  100,
		WealthGoal:     150,
		CashInjection:  10,
		Horizon:        10,
		GridResolution: 10,
	}, hp)
	require.NoError(t, err)

	// Every path reaches the goal, so the start value is γ^(T-1).
	want := math.Pow(hp.Gamma, 9)
	assert.InDelta(t, want, solution.SuccessProbability(), 1e-3)
	assert.InDelta(t, want, solution.MeanActionValue(0, 0), 1e-3)
	assert.Len(t, solution.Q, 10)
	assert.Len(t, solution.Q[0][0], 15)
}

func TestSolveQLearning_UnreachableGoal(t *testing.T) {
	allocator := NewAllocator(zerolog.Nop())
	cov := mat.NewSymDense(1, []float64{1e-6})

	solution, err := allocator.SolveQLearning([]float64{0.01}, cov, GoalConfig{
		InitialWealth: 100,
		WealthGoal:    1e6,
		Horizon:       3,
		NumPortfolios: 2,
	}, HyperParams{Epsilon: 0.5, Alpha: 0.5, Gamma: 1, Epochs: 200, Seed: 7})
	require.NoError(t, err)

	for _, row := range solution.Q {
		for _, actions := range row {
			assert.Equal(t, []float64{0, 0}, actions)
		}
	}
	assert.Equal(t, 0.0, solution.SuccessProbability())
}

func TestSolveQLearning_ReproducibleWithSeed(t *testing.T) {
	allocator := NewAllocator(zerolog.Nop())
	mean := []float64{0.01, 0.02}
	cov := mat.NewSymDense(2, []float64{
		0.0025, 0.0005,
		0.0005, 0.0100,
	})
	cfg := GoalConfig{WealthGoal: 200, CashInjection: 10, Horizon: 5, NumPortfolios: 4, GridResolution: 40}
	hp := HyperParams{Epsilon: 0.3, Alpha: 0.1, Gamma: 0.9, Epochs: 500, Seed: 2022}

	first, err := allocator.SolveQLearning(mean, cov, cfg, hp)
	require.NoError(t, err)
	second, err := allocator.SolveQLearning(mean, cov, cfg, hp)
	require.NoError(t, err)

	assert.Equal(t, first.Q, second.Q)
	assert.Equal(t, first.Policy, second.Policy)

	for _, row := range first.Value {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestHyperParams_Validate(t *testing.T) {
	tests := []struct {
		name string
		hp   HyperParams
		ok   bool
	}{
		{"defaults", DefaultHyperParams(), true},
		{"greedy", HyperParams{Epsilon: 0, Alpha: 1, Gamma: 0, Epochs: 1}, true},
		{"epsilon above one", HyperParams{Epsilon: 1.1, Alpha: 0.1, Gamma: 0.9, Epochs: 1}, false},
		{"zero alpha", HyperParams{Epsilon: 0.1, Alpha: 0, Gamma: 0.9, Epochs: 1}, false},
		{"negative gamma", HyperParams{Epsilon: 0.1, Alpha: 0.1, Gamma: -0.1, Epochs: 1}, false},
		{"no epochs", HyperParams{Epsilon: 0.1, Alpha: 0.1, Gamma: 0.9}, false},
		{"NaN epsilon", HyperParams{Epsilon: math.NaN(), Alpha: 0.1, Gamma: 0.9, Epochs: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hp.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidHyperParams)
			}
		})
	}
}
