package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCVaR(t *testing.T) {
	tests := []struct {
		name       string
		returns    []float64
		confidence float64
		want       float64
	}{
		{
			name:       "worst of ten at 95%",
			returns:    []float64{-0.10, -0.05, -0.02, 0.0, 0.02, 0.05, 0.10, 0.15, 0.20, 0.25},
			confidence: 0.95,
			want:       -0.10,
		},
		{
			name:       "worst three of ten at 75%",
			returns:    []float64{0.25, -0.10, 0.20, -0.05, 0.15, -0.02, 0.10, 0.0, 0.05, 0.02},
			confidence: 0.75,
			want:       (-0.10 - 0.05 - 0.02) / 3,
		},
		{
			name:       "single return",
			returns:    []float64{-0.10},
			confidence: 0.95,
			want:       -0.10,
		},
		{
			name:       "empty returns",
			returns:    []float64{},
			confidence: 0.95,
			want:       0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateCVaR(tt.returns, tt.confidence), 1e-12)
		})
	}
}

func TestCalculateCVaR_DoesNotReorderInput(t *testing.T) {
	returns := []float64{0.3, -0.2, 0.1}
	CalculateCVaR(returns, 0.5)
	assert.Equal(t, []float64{0.3, -0.2, 0.1}, returns)
}
