package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default histogram buckets for invocation duration (in milliseconds)
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Metrics wraps the worker's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	inFlight           prometheus.Gauge
	functionLoads      *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of function invocations",
			},
			[]string{"function", "status"},
		),

		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_ms",
				Help:      "Function invocation duration in milliseconds",
				Buckets:   defaultBuckets,
			},
			[]string{"function"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "invocations_in_flight",
				Help:      "Invocations currently executing",
			},
		),

		functionLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "function_loads_total",
				Help:      "Total number of function load requests",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(m.invocationsTotal, m.invocationDuration, m.inFlight, m.functionLoads)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) invocationStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) invocationFinished(function, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.invocationsTotal.WithLabelValues(function, status).Inc()
	m.invocationDuration.WithLabelValues(function).Observe(float64(d) / float64(time.Millisecond))
}

func (m *Metrics) functionLoaded(status string) {
	if m == nil {
		return
	}
	m.functionLoads.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
