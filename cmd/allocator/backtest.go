package main

import (
	"github.com/spf13/cobra"

	"github.com/aristath/allocator/internal/modules/backtest"
	"github.com/aristath/allocator/internal/modules/optimization"
)

func (a *app) backtestCmd() *cobra.Command {
	var (
		strategy     string
		scale        float64
		window       int
		step         int
		longShort    bool
		retTarget    float64
		shrinkage    float64
		shrinkMethod string
		smoothing    float64
		linkage      string
		periods      int
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Walk a static strategy forward through the panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := a.readPanel()
			if err != nil {
				return err
			}

			// Flags the user did not set keep the model defaults.
			opts := a.models.Backtest
			flags := cmd.Flags()
			if flags.Changed("window") {
				opts.Window = window
			}
			if flags.Changed("step") {
				opts.Step = step
			}
			if flags.Changed("long-short") {
				opts.LongShort = longShort
			}
			if flags.Changed("ret-target") {
				opts.RetTarget = retTarget
			}
			if flags.Changed("shrinkage") {
				opts.Shrinkage = shrinkage
			}
			if flags.Changed("shrink-method") {
				opts.ShrinkMethod = backtest.ShrinkMethod(shrinkMethod)
			}
			if flags.Changed("smoothing") {
				opts.Smoothing = smoothing
			}
			if flags.Changed("linkage") {
				opts.Linkage = optimization.Linkage(linkage)
			}
			if flags.Changed("periods-per-year") {
				opts.PeriodsPerYear = periods
			}

			b := backtest.NewBacktester(
				optimization.NewMomentEstimator(a.scaleOr(scale), a.log),
				optimization.NewStaticAllocator(a.log),
				a.log,
			)
			result, err := b.Run(backtest.Strategy(strategy), panel, opts)
			if err != nil {
				return err
			}
			return a.render(cmd, result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&strategy, "strategy", string(backtest.StrategyMinimumVariance), "strategy name")
	flags.Float64Var(&scale, "scale", 0, "log return multiplier (default from model config)")
	flags.IntVar(&window, "window", 0, "estimation rows per rebalance")
	flags.IntVar(&step, "step", 0, "rows held between rebalances")
	flags.BoolVar(&longShort, "long-short", false, "allow negative weights")
	flags.Float64Var(&retTarget, "ret-target", 0, "return target for the mean-variance strategy")
	flags.Float64Var(&shrinkage, "shrinkage", 0, "covariance shrinkage intensity in [0, 1]")
	flags.StringVar(&shrinkMethod, "shrink-method", string(backtest.ShrinkDiagonal), "shrinkage target (diagonal, constant or ledoit_wolf)")
	flags.Float64Var(&smoothing, "smoothing", 0, "weight of the first-difference penalty")
	flags.StringVar(&linkage, "linkage", string(optimization.LinkageSingle), "HRP cluster linkage")
	flags.IntVar(&periods, "periods-per-year", 0, "annualize the Sharpe ratio")
	return cmd
}
