package wealth

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// qStream separates the Q-learning random stream from others seeded alike.
const qStream = 0x51

// QSolution holds the learned action values Q[t][i][a] with the greedy
// policy and state values derived from them.
type QSolution struct {
	Grid       [][]float64   `json:"grid"`
	Q          [][][]float64 `json:"q"`
	Policy     [][]int       `json:"policy"`
	Value      [][]float64   `json:"value"`
	Portfolios []Portfolio   `json:"portfolios"`
}

// MeanActionValue averages Q over all actions at step t, node i.
func (s *QSolution) MeanActionValue(t, i int) float64 {
	sum := 0.0
	for _, q := range s.Q[t][i] {
		sum += q
	}
	return sum / float64(len(s.Q[t][i]))
}

// SuccessProbability is the greedy value at the initial wealth.
func (s *QSolution) SuccessProbability() float64 {
	return s.Value[0][0]
}

// SolveQLearning learns the wealth-goal policy from simulated trajectories.
// Each epoch starts at the initial wealth, picks ε-greedy actions, draws the
// period return from the chosen portfolio's Gaussian and updates
//
//	Q(t,s,a) += α (r + γ max Q(t+1,s',·) - Q(t,s,a))
//
// The reward is 1 on reaching the goal at the horizon and 0 otherwise. All
// randomness comes from hp.Seed.
func (a *Allocator) SolveQLearning(mean []float64, cov mat.Symmetric, cfg GoalConfig, hp HyperParams) (*QSolution, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	cfg, portfolios, grid, err := a.prepare(mean, cov, cfg)
	if err != nil {
		return nil, err
	}

	T := cfg.Horizon
	K := len(portfolios)
	q := make([][][]float64, T)
	for t := range q {
		q[t] = make([][]float64, len(grid[t]))
		for i := range q[t] {
			q[t][i] = make([]float64, K)
		}
	}

	rng := rand.New(rand.NewPCG(hp.Seed, qStream))
	returns := make([]distuv.Normal, K)
	for k, p := range portfolios {
		returns[k] = distuv.Normal{Mu: p.Mean, Sigma: p.StdDev, Src: rng}
	}

	reached := 0
	for epoch := 0; epoch < hp.Epochs; epoch++ {
		w, state := cfg.InitialWealth, 0
		for t := 0; t < T; t++ {
			action := argmax(q[t][state])
			if rng.Float64() < hp.Epsilon {
				action = rng.IntN(K)
			}

			next := math.Max(w*(1+returns[action].Rand())+cfg.CashInjection, 0)
			nextState := nodeIndex(grid[t+1], next)

			target := 0.0
			if t == T-1 {
				if next >= cfg.WealthGoal {
					target = 1
					reached++
				}
			} else {
				target = hp.Gamma * maxValue(q[t+1][nextState])
			}
			q[t][state][action] += hp.Alpha * (target - q[t][state][action])

			w, state = next, nextState
		}
	}

	policy := make([][]int, T)
	value := make([][]float64, T)
	for t := range q {
		policy[t] = make([]int, len(q[t]))
		value[t] = make([]float64, len(q[t]))
		for i, actions := range q[t] {
			policy[t][i] = argmax(actions)
			value[t][i] = actions[policy[t][i]]
		}
	}

	a.log.Info().
		Int("epochs", hp.Epochs).
		Uint64("seed", hp.Seed).
		Float64("goal_hit_rate", float64(reached)/float64(hp.Epochs)).
		Float64("value", value[0][0]).
		Msg("Q-learning finished")

	return &QSolution{
		Grid:       grid,
		Q:          q,
		Policy:     policy,
		Value:      value,
		Portfolios: portfolios,
	}, nil
}

// argmax returns the first index of the largest value.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func maxValue(values []float64) float64 {
	return values[argmax(values)]
}
