package wealth

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DPSolution holds the backward-induction tables. Policy[t][i] is the chosen
// portfolio index at wealth node Grid[t][i] for t < Horizon; Value has an
// extra terminal row.
type DPSolution struct {
	Grid       [][]float64 `json:"grid"`
	Policy     [][]int     `json:"policy"`
	Value      [][]float64 `json:"value"`
	Portfolios []Portfolio `json:"portfolios"`
}

// SuccessProbability is the probability of reaching the goal from the
// initial wealth under the optimal policy.
func (s *DPSolution) SuccessProbability() float64 {
	return s.Value[0][0]
}

// Action returns the portfolio to hold at step t with the given wealth.
func (s *DPSolution) Action(t int, wealth float64) (int, error) {
	if t < 0 || t >= len(s.Policy) {
		return 0, fmt.Errorf("step %d outside horizon %d: %w", t, len(s.Policy), ErrInvalidConfig)
	}
	return s.Policy[t][nodeIndex(s.Grid[t], wealth)], nil
}

// SolveDP runs backward induction from the terminal goal indicator. Each
// expectation over next-period wealth is taken in closed form under the
// Gaussian return of the candidate portfolio. Ties keep the lower-risk
// portfolio.
func (a *Allocator) SolveDP(mean []float64, cov mat.Symmetric, cfg GoalConfig) (*DPSolution, error) {
	cfg, portfolios, grid, err := a.prepare(mean, cov, cfg)
	if err != nil {
		return nil, err
	}

	T := cfg.Horizon
	value := make([][]float64, T+1)
	policy := make([][]int, T)

	value[T] = make([]float64, len(grid[T]))
	for j, w := range grid[T] {
		if w >= cfg.WealthGoal {
			value[T][j] = 1
		}
	}

	for t := T - 1; t >= 0; t-- {
		value[t] = make([]float64, len(grid[t]))
		policy[t] = make([]int, len(grid[t]))

		for i, w := range grid[t] {
			best, bestValue := 0, -1.0
			for k, p := range portfolios {
				v := GaussianExpectation(w*(1+p.Mean)+cfg.CashInjection, w*p.StdDev, grid[t+1], value[t+1])
				if v > bestValue {
					best, bestValue = k, v
				}
			}
			policy[t][i] = best
			value[t][i] = bestValue
		}
	}

	a.log.Info().
		Int("horizon", T).
		Int("portfolios", len(portfolios)).
		Int("grid_nodes", len(grid[T])).
		Float64("success_probability", value[0][0]).
		Msg("Dynamic programming solved")

	return &DPSolution{
		Grid:       grid,
		Policy:     policy,
		Value:      value,
		Portfolios: portfolios,
	}, nil
}
