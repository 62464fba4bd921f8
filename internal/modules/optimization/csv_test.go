package optimization

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPanelCSV(t *testing.T) {
	input := `Date,Ticker,Close,Adjusted_Close
2020-01-02,AAPL,75.09,74.09522915781685
2020-01-02,TSLA,86.05,86.052
2020-01-03,AAPL,74.36,
`

	panel, err := ReadPanelCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, panel, 3)

	assert.Equal(t, PriceRow{Ticker: "AAPL", Date: "2020-01-02", AdjClose: 74.09522915781685}, panel[0])
	assert.Equal(t, "TSLA", panel[1].Ticker)
	assert.True(t, math.IsNaN(panel[2].AdjClose))
}

func TestReadPanelCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing price column", "ticker,date\nAAPL,2020-01-02\n"},
		{"bad price", "ticker,date,adj_close\nAAPL,2020-01-02,abc\n"},
		{"ragged row", "ticker,date,adj_close\nAAPL,2020-01-02\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPanelCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}
