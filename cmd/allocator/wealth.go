package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aristath/allocator/internal/modules/wealth"
)

// goalFlags override the configured goal. Moments are estimated on
// unscaled log returns, so TimeStep converts the panel's period to the
// decision period.
type goalFlags struct {
	initialWealth  float64
	wealthGoal     float64
	cashInjection  float64
	horizon        int
	timeStep       float64
	numPortfolios  int
	gridResolution int
	shrinkage      float64
	longShort      bool
}

func (g *goalFlags) register(flags *pflag.FlagSet) {
	flags.Float64Var(&g.initialWealth, "initial-wealth", 0, "starting wealth")
	flags.Float64Var(&g.wealthGoal, "goal", 0, "target wealth at the horizon")
	flags.Float64Var(&g.cashInjection, "cash-injection", 0, "cash added after every period")
	flags.IntVar(&g.horizon, "horizon", 0, "number of decision periods")
	flags.Float64Var(&g.timeStep, "time-step", 0, "panel periods per decision period")
	flags.IntVar(&g.numPortfolios, "num-portfolios", 0, "candidate frontier portfolios")
	flags.IntVar(&g.gridResolution, "grid-resolution", 0, "wealth grid intervals between zero and the goal")
	flags.Float64Var(&g.shrinkage, "shrinkage", 0, "covariance shrinkage toward the diagonal")
	flags.BoolVar(&g.longShort, "long-short", false, "allow negative weights")
}

func (g *goalFlags) apply(flags *pflag.FlagSet, cfg wealth.GoalConfig) wealth.GoalConfig {
	if flags.Changed("initial-wealth") {
		cfg.InitialWealth = g.initialWealth
	}
	if flags.Changed("goal") {
		cfg.WealthGoal = g.wealthGoal
	}
	if flags.Changed("cash-injection") {
		cfg.CashInjection = g.cashInjection
	}
	if flags.Changed("horizon") {
		cfg.Horizon = g.horizon
	}
	if flags.Changed("time-step") {
		cfg.TimeStep = g.timeStep
	}
	if flags.Changed("num-portfolios") {
		cfg.NumPortfolios = g.numPortfolios
	}
	if flags.Changed("grid-resolution") {
		cfg.GridResolution = g.gridResolution
	}
	if flags.Changed("shrinkage") {
		cfg.Shrinkage = g.shrinkage
	}
	if flags.Changed("long-short") {
		cfg.LongShort = g.longShort
	}
	return cfg
}

func (a *app) dpCmd() *cobra.Command {
	var g goalFlags
	cmd := &cobra.Command{
		Use:   "dp",
		Short: "Goal-based allocation by backward dynamic programming",
		RunE: func(cmd *cobra.Command, args []string) error {
			moments, err := a.estimate(1)
			if err != nil {
				return err
			}
			cfg := g.apply(cmd.Flags(), a.models.Goal)

			solution, err := wealth.NewAllocator(a.log).SolveDP(moments.Mean, moments.Cov, cfg)
			if err != nil {
				return err
			}
			return a.render(cmd, map[string]interface{}{
				"tickers":             moments.Returns.Tickers,
				"success_probability": solution.SuccessProbability(),
				"initial_action":      solution.Policy[0][0],
				"portfolios":          solution.Portfolios,
				"policy":              solution.Policy,
			})
		},
	}
	g.register(cmd.Flags())
	return cmd
}

func (a *app) qlearnCmd() *cobra.Command {
	var (
		g  goalFlags
		hp wealth.HyperParams
	)
	cmd := &cobra.Command{
		Use:   "qlearn",
		Short: "Goal-based allocation by tabular Q-learning",
		RunE: func(cmd *cobra.Command, args []string) error {
			moments, err := a.estimate(1)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			cfg := g.apply(flags, a.models.Goal)

			params := a.models.QLearning
			if flags.Changed("epsilon") {
				params.Epsilon = hp.Epsilon
			}
			if flags.Changed("alpha") {
				params.Alpha = hp.Alpha
			}
			if flags.Changed("gamma") {
				params.Gamma = hp.Gamma
			}
			if flags.Changed("epochs") {
				params.Epochs = hp.Epochs
			}
			if flags.Changed("seed") {
				params.Seed = hp.Seed
			}

			solution, err := wealth.NewAllocator(a.log).SolveQLearning(moments.Mean, moments.Cov, cfg, params)
			if err != nil {
				return err
			}
			return a.render(cmd, map[string]interface{}{
				"tickers":             moments.Returns.Tickers,
				"success_probability": solution.SuccessProbability(),
				"initial_action":      solution.Policy[0][0],
				"epochs":              params.Epochs,
				"seed":                params.Seed,
				"portfolios":          solution.Portfolios,
				"policy":              solution.Policy,
			})
		},
	}

	flags := cmd.Flags()
	g.register(flags)
	flags.Float64Var(&hp.Epsilon, "epsilon", 0, "exploration probability")
	flags.Float64Var(&hp.Alpha, "alpha", 0, "learning rate")
	flags.Float64Var(&hp.Gamma, "gamma", 0, "discount factor")
	flags.IntVar(&hp.Epochs, "epochs", 0, "training episodes")
	flags.Uint64Var(&hp.Seed, "seed", 0, "random seed")
	return cmd
}
