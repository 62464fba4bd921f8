package glearning

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_CheckpointRoundTrip(t *testing.T) {
	params := DefaultParams()
	params.Seed = 42
	state, err := New(3, 2, []float64{400, 600}, params)
	require.NoError(t, err)

	data, err := state.MarshalBinary()
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)
	assert.Equal(t, state, restored)
}

func TestState_ResumeFromCheckpoint(t *testing.T) {
	mean, cov := twoAssetInputs()
	learner := NewLearner(zerolog.Nop())
	realized := []float64{0.03, -0.01}

	state, err := New(2, 2, []float64{500, 500}, DefaultParams())
	require.NoError(t, err)

	_, afterFirst, err := learner.Step(0, state, mean, cov, realized)
	require.NoError(t, err)
	direct, _, err := learner.Step(1, afterFirst, mean, cov, realized)
	require.NoError(t, err)

	data, err := afterFirst.MarshalBinary()
	require.NoError(t, err)
	var resumed State
	require.NoError(t, resumed.UnmarshalBinary(data))

	fromCheckpoint, next, err := learner.Step(1, &resumed, mean, cov, realized)
	require.NoError(t, err)
	assert.Equal(t, direct, fromCheckpoint)
	assert.Equal(t, state.ID, next.ID)
}

func TestRestore_Malformed(t *testing.T) {
	_, err := Restore([]byte{0xc1})
	assert.Error(t, err)

	state, err := New(2, 2, []float64{1, 1}, DefaultParams())
	require.NoError(t, err)
	state.Fx = []float64{0}
	data, err := state.MarshalBinary()
	require.NoError(t, err)

	_, err = Restore(data)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
