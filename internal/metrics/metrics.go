// Package metrics exposes probe counters for Prometheus scraping
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/su1ph3r/fencer/pkg/types"
)

// Collector records probe outcomes on its own registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	probesTotal      *prometheus.CounterVec
	generationErrors *prometheus.CounterVec
	endpointsTotal   *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
}

// New creates a collector with all metrics registered
func New() (*Collector, error) {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fencer_probes_total",
			Help: "Total number of injection probes executed",
		},
		[]string{"sweep", "result"},
	)

	c.generationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fencer_generation_errors_total",
			Help: "Total number of requests that could not be generated",
		},
		[]string{"sweep"},
	)

	c.endpointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fencer_endpoints_total",
			Help: "Endpoints completed per sweep by outcome",
		},
		[]string{"sweep", "outcome"},
	)

	c.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fencer_probe_duration_seconds",
			Help:    "Probe round-trip time distribution in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"sweep", "result"},
	)

	collectors := []prometheus.Collector{
		c.probesTotal,
		c.generationErrors,
		c.endpointsTotal,
		c.probeDuration,
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return c, nil
}

// ObserveProbe records one sealed test case
func (c *Collector) ObserveProbe(tc *types.TestCase) {
	if c == nil || tc == nil {
		return
	}
	sweep := string(tc.Descriptor().Sweep())
	result := string(tc.Result)
	c.probesTotal.WithLabelValues(sweep, result).Inc()
	c.probeDuration.WithLabelValues(sweep, result).Observe(tc.Duration().Seconds())
}

// ObserveGenerationError records one descriptor that could not be built
func (c *Collector) ObserveGenerationError(sweep types.Sweep) {
	if c == nil {
		return
	}
	c.generationErrors.WithLabelValues(string(sweep)).Inc()
}

// ObserveEndpoint records one finished endpoint of a sweep
func (c *Collector) ObserveEndpoint(sweep types.Sweep, status types.EndpointStatus) {
	if c == nil {
		return
	}
	c.endpointsTotal.WithLabelValues(string(sweep), string(status)).Inc()
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the exposition handler for the collector's registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics at path on listen until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, listen, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
