package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ALLOCATOR_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEV_MODE", "")
	t.Setenv("ALLOCATOR_MODEL_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8002, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, DefaultModelDefaults(), cfg.Models)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ALLOCATOR_PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("ALLOCATOR_MODEL_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DevMode)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("ALLOCATOR_PORT", "eighty")
	t.Setenv("DEV_MODE", "maybe")
	t.Setenv("ALLOCATOR_MODEL_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8002, cfg.Port)
	assert.False(t, cfg.DevMode)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("ALLOCATOR_PORT", "70000")
	t.Setenv("ALLOCATOR_MODEL_CONFIG", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_ModelConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scale: 1
goal:
  wealth_goal: 250
  horizon: 5
q_learning:
  epochs: 500
  seed: 7
g_learning:
  beta: 2
backtest:
  window: 30
  step: 10
  shrinkage: 0.2
  shrink_method: constant
`), 0o644))

	t.Setenv("ALLOCATOR_PORT", "")
	t.Setenv("ALLOCATOR_MODEL_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	m := cfg.Models
	assert.Equal(t, 1.0, m.Scale)
	assert.Equal(t, 250.0, m.Goal.WealthGoal)
	assert.Equal(t, 5, m.Goal.Horizon)
	assert.Equal(t, 100.0, m.Goal.InitialWealth, "unset keys keep defaults")
	assert.Equal(t, 500, m.QLearning.Epochs)
	assert.Equal(t, uint64(7), m.QLearning.Seed)
	assert.Equal(t, 0.3, m.QLearning.Epsilon)
	assert.Equal(t, 2.0, m.GLearning.Beta)
	assert.Equal(t, 0.95, m.GLearning.Gamma)
	assert.Equal(t, 30, m.Backtest.Window)
	assert.Equal(t, 10, m.Backtest.Step)
	assert.EqualValues(t, "constant", m.Backtest.ShrinkMethod)
}

func TestLoadModelDefaults_Errors(t *testing.T) {
	_, err := LoadModelDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("goal: [1, 2"), 0o644))
	_, err = LoadModelDefaults(path)
	assert.Error(t, err)
}

func TestModelDefaults_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelDefaults)
	}{
		{"zero scale", func(m *ModelDefaults) { m.Scale = 0 }},
		{"zero tolerance", func(m *ModelDefaults) { m.Tolerance = 0 }},
		{"negative goal", func(m *ModelDefaults) { m.Goal.WealthGoal = -1 }},
		{"bad epsilon", func(m *ModelDefaults) { m.QLearning.Epsilon = 2 }},
		{"bad beta", func(m *ModelDefaults) { m.GLearning.Beta = 0 }},
		{"bad window", func(m *ModelDefaults) { m.Backtest.Window = 1 }},
	}

	require.NoError(t, DefaultModelDefaults().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultModelDefaults()
			tt.mutate(&m)
			assert.Error(t, m.Validate())
		})
	}
}
