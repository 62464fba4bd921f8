package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/allocator/internal/modules/optimization"
)

// staticFlags are shared by the single-period optimizer commands.
type staticFlags struct {
	scale     float64
	longShort bool
	smoothing float64
	shrinkage float64
}

func (f *staticFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.scale, "scale", 0, "log return multiplier (default from model config)")
	cmd.Flags().BoolVar(&f.longShort, "long-short", false, "allow negative weights")
	cmd.Flags().Float64Var(&f.smoothing, "smoothing", 0, "weight of the first-difference penalty")
	cmd.Flags().Float64Var(&f.shrinkage, "shrinkage", 0, "shrink the covariance toward its diagonal, in [0, 1]")
}

func (a *app) scaleOr(v float64) float64 {
	if v > 0 {
		return v
	}
	return a.models.Scale
}

// prepare estimates moments and applies the requested shrinkage.
func (a *app) prepare(f *staticFlags) (*optimization.Moments, error) {
	moments, err := a.estimate(a.scaleOr(f.scale))
	if err != nil {
		return nil, err
	}
	if f.shrinkage > 0 {
		shrunk, err := optimization.ShrinkDiagonal(moments.Cov, f.shrinkage)
		if err != nil {
			return nil, err
		}
		moments.Cov = shrunk
	}
	return moments, nil
}

func (a *app) staticOptions(f *staticFlags) optimization.StaticOptions {
	return optimization.StaticOptions{
		LongShort: f.longShort,
		Smoothing: f.smoothing,
		Tolerance: a.models.Tolerance,
	}
}

func allocationOutput(tickers []string, alloc *optimization.Allocation) map[string]interface{} {
	return map[string]interface{}{
		"tickers":  tickers,
		"weights":  alloc.Weights,
		"variance": alloc.Variance,
		"std_dev":  alloc.StdDev(),
		"return":   alloc.Return,
	}
}

func (a *app) momentsCmd() *cobra.Command {
	var scale float64
	cmd := &cobra.Command{
		Use:   "moments",
		Short: "Estimate the mean vector and covariance matrix of log returns",
		RunE: func(cmd *cobra.Command, args []string) error {
			moments, err := a.estimate(a.scaleOr(scale))
			if err != nil {
				return err
			}
			return a.render(cmd, map[string]interface{}{
				"tickers":      moments.Returns.Tickers,
				"mean":         moments.Mean,
				"covariance":   optimization.SymmetricRows(moments.Cov),
				"observations": moments.Returns.Rows(),
			})
		},
	}
	cmd.Flags().Float64Var(&scale, "scale", 0, "log return multiplier (default from model config)")
	return cmd
}

func (a *app) minvarCmd() *cobra.Command {
	var f staticFlags
	cmd := &cobra.Command{
		Use:   "minvar",
		Short: "Minimum-variance portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			moments, err := a.prepare(&f)
			if err != nil {
				return err
			}
			alloc, err := optimization.NewStaticAllocator(a.log).MinimumVariance(moments.Cov, a.staticOptions(&f))
			if err != nil {
				return err
			}
			return a.render(cmd, allocationOutput(moments.Returns.Tickers, alloc))
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) targetCmd() *cobra.Command {
	var (
		f      staticFlags
		target float64
	)
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Minimum-variance portfolio with an expected return of at least --ret-target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("ret-target") {
				return fmt.Errorf("--ret-target is required")
			}
			moments, err := a.prepare(&f)
			if err != nil {
				return err
			}
			alloc, err := optimization.NewStaticAllocator(a.log).MeanVarianceTarget(moments.Mean, moments.Cov, target, a.staticOptions(&f))
			if err != nil {
				return err
			}
			return a.render(cmd, allocationOutput(moments.Returns.Tickers, alloc))
		},
	}
	f.register(cmd)
	cmd.Flags().Float64Var(&target, "ret-target", 0, "required expected return, in the estimator's scale")
	return cmd
}

func (a *app) frontierCmd() *cobra.Command {
	var (
		f     staticFlags
		count int
	)
	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "Portfolios spanning the efficient frontier",
		RunE: func(cmd *cobra.Command, args []string) error {
			moments, err := a.prepare(&f)
			if err != nil {
				return err
			}
			frontier, err := optimization.NewStaticAllocator(a.log).EfficientFrontier(moments.Mean, moments.Cov, count, a.staticOptions(&f))
			if err != nil {
				return err
			}
			return a.render(cmd, map[string]interface{}{
				"tickers":    moments.Returns.Tickers,
				"portfolios": frontier,
			})
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&count, "count", 15, "number of frontier portfolios")
	return cmd
}

func (a *app) hrpCmd() *cobra.Command {
	var (
		scale   float64
		linkage string
	)
	cmd := &cobra.Command{
		Use:   "hrp",
		Short: "Hierarchical risk parity portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			moments, err := a.estimate(a.scaleOr(scale))
			if err != nil {
				return err
			}
			alloc, err := optimization.NewStaticAllocator(a.log).HierarchicalRiskParity(moments.Cov, optimization.Linkage(linkage))
			if err != nil {
				return err
			}
			return a.render(cmd, allocationOutput(moments.Returns.Tickers, alloc))
		},
	}
	cmd.Flags().Float64Var(&scale, "scale", 0, "log return multiplier (default from model config)")
	cmd.Flags().StringVar(&linkage, "linkage", string(optimization.LinkageSingle), "cluster linkage (single, complete, average)")
	return cmd
}
