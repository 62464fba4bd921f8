// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aristath/allocator/internal/modules/backtest"
	"github.com/aristath/allocator/internal/modules/glearning"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/wealth"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	Port            int
	LogLevel        string
	DevMode         bool
	ModelConfigPath string // optional YAML file overriding model defaults
	Models          ModelDefaults
}

// ModelDefaults are the parameters handlers and the CLI use when a request
// leaves them out.
type ModelDefaults struct {
	// Scale multiplies log returns; 100 gives percent.
	Scale     float64            `yaml:"scale"`
	Tolerance float64            `yaml:"tolerance"`
	Goal      wealth.GoalConfig  `yaml:"goal"`
	QLearning wealth.HyperParams `yaml:"q_learning"`
	GLearning glearning.Params   `yaml:"g_learning"`
	Backtest  backtest.Options   `yaml:"backtest"`
}

// DefaultModelDefaults returns the built-in model parameters.
func DefaultModelDefaults() ModelDefaults {
	return ModelDefaults{
		Scale:     optimization.PercentScale,
		Tolerance: optimization.DefaultTolerance,
		Goal:      wealth.DefaultGoalConfig(),
		QLearning: wealth.DefaultHyperParams(),
		GLearning: glearning.DefaultParams(),
		Backtest:  backtest.Options{Window: 20, Step: 5},
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("ALLOCATOR_PORT", 8002),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		ModelConfigPath: getEnv("ALLOCATOR_MODEL_CONFIG", ""),
		Models:          DefaultModelDefaults(),
	}

	if cfg.ModelConfigPath != "" {
		models, err := LoadModelDefaults(cfg.ModelConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Models = *models
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadModelDefaults reads a YAML file over the built-in defaults. Keys absent
// from the file keep their default values.
func LoadModelDefaults(path string) (*ModelDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}

	models := DefaultModelDefaults()
	if err := yaml.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("failed to parse model config %s: %w", path, err)
	}
	return &models, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d: %w", c.Port, ErrInvalidConfig)
	}
	return c.Models.Validate()
}

// Validate checks every model default.
func (m ModelDefaults) Validate() error {
	if !(m.Scale > 0) {
		return fmt.Errorf("scale %v: %w", m.Scale, ErrInvalidConfig)
	}
	if !(m.Tolerance > 0) {
		return fmt.Errorf("tolerance %v: %w", m.Tolerance, ErrInvalidConfig)
	}
	if err := m.Goal.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("goal: %w", err)
	}
	if err := m.QLearning.Validate(); err != nil {
		return fmt.Errorf("q_learning: %w", err)
	}
	if err := m.GLearning.Validate(); err != nil {
		return fmt.Errorf("g_learning: %w", err)
	}
	if err := m.Backtest.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
