package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/pkg/logger"
)

// app carries the state shared by all subcommands.
type app struct {
	prices      string
	modelConfig string
	logLevel    string
	format      string

	models config.ModelDefaults
	log    zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{models: config.DefaultModelDefaults(), log: zerolog.Nop()}

	root := &cobra.Command{
		Use:          "allocator",
		Short:        "Portfolio allocation from price panels",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.log = logger.New(logger.Config{
				Level:  a.logLevel,
				Pretty: true,
				Output: cmd.ErrOrStderr(),
			})
			logger.SetGlobalLogger(a.log)
			return a.loadModels()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.prices, "prices", "", "CSV price panel with ticker, date and adjusted close columns")
	flags.StringVar(&a.modelConfig, "config", os.Getenv("ALLOCATOR_MODEL_CONFIG"), "YAML file overriding model defaults")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.StringVarP(&a.format, "output", "o", "json", "output format (json or yaml)")

	root.AddCommand(
		a.momentsCmd(),
		a.minvarCmd(),
		a.targetCmd(),
		a.frontierCmd(),
		a.hrpCmd(),
		a.backtestCmd(),
		a.dpCmd(),
		a.qlearnCmd(),
	)
	return root
}

func (a *app) loadModels() error {
	models := config.DefaultModelDefaults()
	if a.modelConfig != "" {
		loaded, err := config.LoadModelDefaults(a.modelConfig)
		if err != nil {
			return err
		}
		models = *loaded
	}
	if err := models.Validate(); err != nil {
		return err
	}
	a.models = models
	return nil
}

func (a *app) readPanel() (optimization.PricePanel, error) {
	if a.prices == "" {
		return nil, fmt.Errorf("--prices is required")
	}
	f, err := os.Open(a.prices)
	if err != nil {
		return nil, fmt.Errorf("failed to open price panel: %w", err)
	}
	defer f.Close()

	panel, err := optimization.ReadPanelCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", a.prices, err)
	}
	a.log.Debug().Str("file", a.prices).Int("rows", len(panel)).Msg("Loaded price panel")
	return panel, nil
}

// estimate reads the panel and estimates moments with log returns
// multiplied by scale.
func (a *app) estimate(scale float64) (*optimization.Moments, error) {
	panel, err := a.readPanel()
	if err != nil {
		return nil, err
	}
	return optimization.NewMomentEstimator(scale, a.log).Estimate(panel)
}

func (a *app) render(cmd *cobra.Command, v interface{}) error {
	out := cmd.OutOrStdout()
	switch a.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", a.format)
	}
}
