// Package metrics exposes Prometheus instrumentation for allocation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. Each instance owns its
// registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	// Runs counts finished allocation runs by outcome status.
	Runs *prometheus.CounterVec

	// Iterations observes the ADMM iteration count of successful runs.
	Iterations prometheus.Histogram

	// SolveSeconds observes the wall time of successful runs.
	SolveSeconds prometheus.Histogram

	// PricesInserted counts observations newly added to the price store.
	PricesInserted prometheus.Counter
}

// StatusError labels runs that returned an error.
const StatusError = "error"

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allocation_runs_total",
			Help: "Total number of allocation runs by outcome status",
		}, []string{"status"}),
		Iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "allocation_iterations",
			Help:    "Solver iterations per successful allocation run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		SolveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "allocation_solve_seconds",
			Help:    "Wall time per successful allocation run",
			Buckets: prometheus.DefBuckets,
		}),
		PricesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "allocation_prices_inserted_total",
			Help: "Total number of price observations added to the store",
		}),
	}
	m.registry.MustRegister(m.Runs, m.Iterations, m.SolveSeconds, m.PricesInserted)
	return m
}

// ObserveRun records one run. An empty status means the run failed.
func (m *Metrics) ObserveRun(status string, iterations int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		m.Runs.WithLabelValues(StatusError).Inc()
		return
	}
	m.Runs.WithLabelValues(status).Inc()
	m.Iterations.Observe(float64(iterations))
	m.SolveSeconds.Observe(elapsed.Seconds())
}

// AddInserted records newly stored observations.
func (m *Metrics) AddInserted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.PricesInserted.Add(float64(n))
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
