// Package metrics exposes Prometheus metrics for allocator runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the allocator metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	SolvesTotal       *prometheus.CounterVec
	SolveDuration     *prometheus.HistogramVec
	BacktestFallbacks prometheus.Counter
	LearnerSteps      prometheus.Counter
}

// NewRegistry creates the registry with process and Go runtime collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		SolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocator_solves_total",
				Help: "Total number of allocator runs by allocator and result",
			},
			[]string{"allocator", "result"},
		),

		SolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "allocator_solve_duration_seconds",
				Help:    "Duration of allocator runs in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"allocator"},
		),

		BacktestFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "allocator_backtest_fallbacks_total",
				Help: "Backtest rebalances that fell back to equal weights",
			},
		),

		LearnerSteps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "allocator_glearning_steps_total",
				Help: "G-learning periods consumed",
			},
		),
	}

	r.registry.MustRegister(
		r.SolvesTotal,
		r.SolveDuration,
		r.BacktestFallbacks,
		r.LearnerSteps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveSolve records one allocator run that started at start.
func (r *Registry) ObserveSolve(allocator string, start time.Time, err error) {
	r.SolveDuration.WithLabelValues(allocator).Observe(time.Since(start).Seconds())
	r.SolvesTotal.WithLabelValues(allocator, Result(err)).Inc()
}

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
