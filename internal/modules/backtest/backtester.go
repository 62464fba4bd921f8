package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/aristath/allocator/pkg/logger"
)

// Options configure a rolling backtest.
type Options struct {
	Window       int                  `json:"window" yaml:"window"` // estimation rows per rebalance
	Step         int                  `json:"step" yaml:"step"`     // rows held between rebalances
	LongShort    bool                 `json:"long_short" yaml:"long_short"`
	RetTarget    float64              `json:"ret_target" yaml:"ret_target"`
	Shrinkage    float64              `json:"shrinkage" yaml:"shrinkage"`
	ShrinkMethod ShrinkMethod         `json:"shrink_method" yaml:"shrink_method"`
	Smoothing    float64              `json:"smoothing" yaml:"smoothing"`
	Linkage      optimization.Linkage `json:"linkage" yaml:"linkage"`
	// PeriodsPerYear annualizes the Sharpe ratio; 0 leaves it per period.
	PeriodsPerYear int `json:"periods_per_year" yaml:"periods_per_year"`
}

// Validate checks window, step and shrinkage settings.
func (o Options) Validate() error {
	if o.Window < 2 {
		return fmt.Errorf("window %d, need at least 2: %w", o.Window, ErrInvalidOptions)
	}
	if o.Step < 1 {
		return fmt.Errorf("step %d, need at least 1: %w", o.Step, ErrInvalidOptions)
	}
	if o.Shrinkage < 0 || o.Shrinkage > 1 {
		return fmt.Errorf("shrinkage %v outside [0, 1]: %w", o.Shrinkage, ErrInvalidOptions)
	}
	switch o.ShrinkMethod {
	case "", ShrinkDiagonal, ShrinkConstant, ShrinkLedoitWolf:
	default:
		return fmt.Errorf("shrink method %q: %w", o.ShrinkMethod, ErrInvalidOptions)
	}
	return nil
}

// shrinks reports whether the window covariance is shrunk before solving.
func (o Options) shrinks() bool {
	return o.ShrinkMethod == ShrinkLedoitWolf || o.Shrinkage > 0
}

// Summary holds statistics of the realized return series. Returns are in the
// estimator's scale; MaxDrawdown is a fraction.
type Summary struct {
	Periods          int      `json:"periods"`
	MeanReturn       float64  `json:"mean_return"`
	Volatility       float64  `json:"volatility"`
	Sharpe           *float64 `json:"sharpe,omitempty"`
	MaxDrawdown      *float64 `json:"max_drawdown,omitempty"`
	CVaR95           float64  `json:"cvar_95"`
	CumulativeReturn float64  `json:"cumulative_return"`
}

// Result is the chronological record of a backtest. Realized, Returns,
// Weights and Dates all have one entry per rebalance. LogReturns is the full
// return matrix the run walked through, one row per period.
type Result struct {
	RunID      string      `json:"run_id"`
	Strategy   Strategy    `json:"strategy"`
	Tickers    []string    `json:"tickers"`
	LogReturns [][]float64 `json:"log_returns"` // in the estimator's scale
	Realized   []float64   `json:"realized"`    // in the estimator's scale
	Returns    []float64   `json:"returns"`     // simple returns as fractions
	Weights    [][]float64 `json:"weights"`
	Dates      []string    `json:"dates"`
	// Fallbacks counts rebalances that used equal weights.
	Fallbacks int     `json:"fallbacks"`
	Summary   Summary `json:"summary"`
}

// Backtester walks a static strategy forward through a return panel.
type Backtester struct {
	estimator *optimization.MomentEstimator
	allocator *optimization.StaticAllocator
	log       zerolog.Logger
}

// NewBacktester creates a backtester.
func NewBacktester(estimator *optimization.MomentEstimator, allocator *optimization.StaticAllocator, log zerolog.Logger) *Backtester {
	return &Backtester{
		estimator: estimator,
		allocator: allocator,
		log:       logger.Component(log, "backtester"),
	}
}

// Run converts the price panel to returns and backtests strategy over it.
func (b *Backtester) Run(strategy Strategy, panel optimization.PricePanel, opts Options) (*Result, error) {
	returns, err := b.estimator.Returns(panel)
	if err != nil {
		return nil, err
	}
	return b.RunReturns(strategy, returns, opts)
}

// RunReturns backtests strategy over an existing return panel. At each
// rebalance row i the strategy sees rows [i-Window, i) and is held over rows
// [i, i+Step).
func (b *Backtester) RunReturns(strategy Strategy, returns *optimization.ReturnPanel, opts Options) (*Result, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := returns.Rows()
	assets := returns.Assets()
	if n <= opts.Window {
		return nil, fmt.Errorf("%d rows for window %d: %w", n, opts.Window, ErrInsufficientData)
	}

	start := time.Now()
	scale := b.estimator.Scale()
	result := &Result{
		RunID:    uuid.NewString(),
		Strategy: strategy,
		Tickers:  append([]string(nil), returns.Tickers...),
	}
	result.LogReturns = make([][]float64, n)
	for i := range result.LogReturns {
		result.LogReturns[i] = returns.Row(i)
	}

	for i := opts.Window; i < n; i += opts.Step {
		weights, err := b.rebalance(strategy, returns, i, opts)
		if err != nil {
			b.log.Warn().
				Err(err).
				Str("date", returns.Dates[i]).
				Msg("Falling back to equal weights")
			weights = equalWeights(assets)
			result.Fallbacks++
		}

		end := i + opts.Step
		if end > n {
			end = n
		}
		sums := returns.ColumnSums(i, end)

		growth := 0.0
		for j, w := range weights {
			growth += w * math.Exp(sums[j]/scale)
		}

		result.Realized = append(result.Realized, scale*(growth-1))
		result.Returns = append(result.Returns, growth-1)
		result.Weights = append(result.Weights, weights)
		result.Dates = append(result.Dates, returns.Dates[i])
	}

	result.Summary = summarize(result.Realized, scale, opts.PeriodsPerYear)

	b.log.Info().
		Str("run_id", result.RunID).
		Str("strategy", string(strategy)).
		Int("periods", result.Summary.Periods).
		Int("fallbacks", result.Fallbacks).
		Float64("cumulative_return", result.Summary.CumulativeReturn).
		Dur("duration", time.Since(start)).
		Msg("Backtest complete")

	return result, nil
}

// rebalance estimates moments on the window ending before row i and runs the
// strategy. Without shrinkage, windows with no more rows than assets have a
// singular sample covariance and are rejected.
func (b *Backtester) rebalance(strategy Strategy, returns *optimization.ReturnPanel, i int, opts Options) ([]float64, error) {
	if !opts.shrinks() && opts.Window <= returns.Assets() {
		return nil, fmt.Errorf("window of %d rows for %d assets: %w",
			opts.Window, returns.Assets(), optimization.ErrInsufficientData)
	}

	window, err := returns.Slice(i-opts.Window, i)
	if err != nil {
		return nil, err
	}
	moments, err := b.estimator.FromReturns(window)
	if err != nil {
		return nil, err
	}
	return b.allocate(strategy, moments, opts)
}

func summarize(realized []float64, scale float64, periodsPerYear int) Summary {
	return Summary{
		Periods:          len(realized),
		MeanReturn:       formulas.Mean(realized),
		Volatility:       formulas.StdDev(realized),
		Sharpe:           formulas.CalculateSharpeRatio(realized, 0, periodsPerYear),
		MaxDrawdown:      formulas.MaxDrawdownFromReturns(realized, scale),
		CVaR95:           formulas.CalculateCVaR(realized, 0.95),
		CumulativeReturn: formulas.CumulativeReturn(realized, scale),
	}
}
