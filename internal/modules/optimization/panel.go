package optimization

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// PriceRow is one adjusted close observation. Dates are ISO formatted
// (YYYY-MM-DD) so lexical order is chronological order.
type PriceRow struct {
	Ticker   string  `json:"ticker" yaml:"ticker"`
	Date     string  `json:"date" yaml:"date"`
	AdjClose float64 `json:"adj_close" yaml:"adj_close"`
}

// PricePanel is a long-format table of prices keyed by (ticker, date).
type PricePanel []PriceRow

// Pivot lays the panel out as a dates × tickers matrix. Tickers and dates are
// sorted ascending; cells without an observation are NaN.
func (p PricePanel) Pivot() (tickers, dates []string, prices *mat.Dense, err error) {
	tickerIdx := make(map[string]int)
	dateIdx := make(map[string]int)
	for _, row := range p {
		tickerIdx[row.Ticker] = 0
		dateIdx[row.Date] = 0
	}
	if len(tickerIdx) == 0 || len(dateIdx) == 0 {
		return nil, nil, nil, fmt.Errorf("empty price panel: %w", ErrInsufficientData)
	}

	tickers = sortedKeys(tickerIdx)
	dates = sortedKeys(dateIdx)
	for i, t := range tickers {
		tickerIdx[t] = i
	}
	for i, d := range dates {
		dateIdx[d] = i
	}

	prices = mat.NewDense(len(dates), len(tickers), nil)
	seen := make([]bool, len(dates)*len(tickers))
	for i := range dates {
		for j := range tickers {
			prices.Set(i, j, math.NaN())
		}
	}
	for _, row := range p {
		i, j := dateIdx[row.Date], tickerIdx[row.Ticker]
		if seen[i*len(tickers)+j] {
			return nil, nil, nil, fmt.Errorf("%s on %s: %w", row.Ticker, row.Date, ErrDuplicatePrice)
		}
		seen[i*len(tickers)+j] = true
		prices.Set(i, j, row.AdjClose)
	}

	return tickers, dates, prices, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReturnPanel holds log returns, one column per ticker and one row per
// date-to-date transition labelled with the later date. It is not modified
// after construction.
type ReturnPanel struct {
	Tickers []string
	Dates   []string
	Values  *mat.Dense
}

// Rows returns the number of observations.
func (r *ReturnPanel) Rows() int {
	return len(r.Dates)
}

// Assets returns the number of tickers.
func (r *ReturnPanel) Assets() int {
	return len(r.Tickers)
}

// Slice copies rows [from, to) into a new panel.
func (r *ReturnPanel) Slice(from, to int) (*ReturnPanel, error) {
	if from < 0 || to > r.Rows() || to-from < 1 {
		return nil, fmt.Errorf("rows [%d, %d) of %d: %w", from, to, r.Rows(), ErrInsufficientData)
	}

	values := mat.DenseCopyOf(r.Values.Slice(from, to, 0, r.Assets()))
	dates := make([]string, to-from)
	copy(dates, r.Dates[from:to])
	tickers := make([]string, len(r.Tickers))
	copy(tickers, r.Tickers)

	return &ReturnPanel{Tickers: tickers, Dates: dates, Values: values}, nil
}

// ColumnSums returns the per-asset sum of rows [from, to).
func (r *ReturnPanel) ColumnSums(from, to int) []float64 {
	sums := make([]float64, r.Assets())
	for i := from; i < to; i++ {
		for j := range sums {
			sums[j] += r.Values.At(i, j)
		}
	}
	return sums
}

// Row returns a copy of row i.
func (r *ReturnPanel) Row(i int) []float64 {
	return mat.Row(nil, i, r.Values)
}
