package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/allocator/pkg/formulas"
	"github.com/aristath/allocator/pkg/logger"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// PercentScale expresses log returns in percent.
const PercentScale = 100.0

// Moments are the first two sample moments of a return panel.
type Moments struct {
	Mean    []float64
	Cov     *mat.SymDense
	Returns *ReturnPanel
}

// MomentEstimator turns price panels into log returns, mean vectors and
// sample covariance matrices.
type MomentEstimator struct {
	scale float64
	log   zerolog.Logger
}

// NewMomentEstimator creates an estimator that multiplies log returns by
// scale. A non-positive scale means raw log returns.
func NewMomentEstimator(scale float64, log zerolog.Logger) *MomentEstimator {
	if scale <= 0 {
		scale = 1
	}
	return &MomentEstimator{
		scale: scale,
		log:   logger.Component(log, "moment_estimator"),
	}
}

// Scale returns the multiplier applied to log returns.
func (e *MomentEstimator) Scale() float64 {
	return e.scale
}

// Returns builds the log-return panel of a price panel. Rows where any ticker
// lacks a valid price on either side of the transition are dropped.
func (e *MomentEstimator) Returns(panel PricePanel) (*ReturnPanel, error) {
	tickers, dates, prices, err := panel.Pivot()
	if err != nil {
		return nil, err
	}

	nAssets := len(tickers)
	series := make([][]float64, nAssets)
	for j := range series {
		series[j] = formulas.LogReturns(mat.Col(nil, j, prices), e.scale)
	}

	data := make([]float64, 0, (len(dates)-1)*nAssets)
	labels := make([]string, 0, len(dates))
	dropped := 0
	row := make([]float64, nAssets)

	for i := 1; i < len(dates); i++ {
		complete := true
		for j := 0; j < nAssets; j++ {
			row[j] = series[j][i-1]
			if math.IsNaN(row[j]) || math.IsInf(row[j], 0) {
				complete = false
			}
		}
		if !complete {
			dropped++
			continue
		}
		data = append(data, row...)
		labels = append(labels, dates[i])
	}

	if len(labels) == 0 {
		return nil, fmt.Errorf("no complete return rows across %d tickers: %w", nAssets, ErrInsufficientData)
	}
	if dropped > 0 {
		e.log.Debug().
			Int("dropped", dropped).
			Int("kept", len(labels)).
			Msg("Dropped return rows with missing prices")
	}

	return &ReturnPanel{
		Tickers: tickers,
		Dates:   labels,
		Values:  mat.NewDense(len(labels), nAssets, data),
	}, nil
}

// Estimate computes log returns of the panel and their sample moments.
func (e *MomentEstimator) Estimate(panel PricePanel) (*Moments, error) {
	returns, err := e.Returns(panel)
	if err != nil {
		return nil, err
	}
	return e.FromReturns(returns)
}

// FromReturns computes column means and the sample covariance (N-1
// denominator) of a return panel.
func (e *MomentEstimator) FromReturns(returns *ReturnPanel) (*Moments, error) {
	if returns == nil || returns.Assets() == 0 {
		return nil, fmt.Errorf("empty return panel: %w", ErrInsufficientData)
	}
	if returns.Rows() < 2 {
		return nil, fmt.Errorf("%d aligned observations: %w", returns.Rows(), ErrInsufficientData)
	}

	n := returns.Assets()
	cols := make([][]float64, n)
	mean := make([]float64, n)
	for j := range cols {
		cols[j] = mat.Col(nil, j, returns.Values)
		mean[j] = formulas.Mean(cols[j])
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, formulas.Variance(cols[i]))
		for j := i + 1; j < n; j++ {
			cov.SetSym(i, j, formulas.Covariance(cols[i], cols[j]))
		}
	}

	return &Moments{Mean: mean, Cov: cov, Returns: returns}, nil
}
