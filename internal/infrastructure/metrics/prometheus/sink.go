// Package prometheus provides a Prometheus-backed metrics sink.
package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unifiedui/docstore/internal/core/metrics"
)

// Label names shared by all docstore collectors.
const (
	LabelScope  = "scope"
	LabelMetric = "metric"
)

// DefaultBuckets are the latency buckets (seconds) for timings.
var DefaultBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Config holds sink configuration.
type Config struct {
	Namespace string
	Buckets   []float64
}

// Sink implements metrics.Sink with a counter vector and a histogram vector.
// Scoped children share the same collectors and differ only in the scope label.
type Sink struct {
	scope    string
	counters *prometheus.CounterVec
	timings  *prometheus.HistogramVec
}

// NewSink creates a sink and registers its collectors with reg. Collectors
// that are already registered under the same descriptor are reused.
func NewSink(reg prometheus.Registerer, cfg Config) (*Sink, error) {
	if reg == nil {
		return nil, fmt.Errorf("registerer is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "docstore"
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = DefaultBuckets
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "operations_total",
			Help:      "Total number of document store operations by outcome",
		},
		[]string{LabelScope, LabelMetric},
	)
	timings := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of document store operations in seconds",
			Buckets:   cfg.Buckets,
		},
		[]string{LabelScope, LabelMetric},
	)

	registeredCounters, err := register(reg, counters)
	if err != nil {
		return nil, err
	}
	registeredTimings, err := register(reg, timings)
	if err != nil {
		return nil, err
	}

	return &Sink{
		counters: registeredCounters.(*prometheus.CounterVec),
		timings:  registeredTimings.(*prometheus.HistogramVec),
	}, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, fmt.Errorf("failed to register collector: %w", err)
	}
	return c, nil
}

// Increment adds one to the counter for metric in this scope.
func (s *Sink) Increment(metric string) {
	s.counters.WithLabelValues(s.scope, metric).Inc()
}

// Timing observes the seconds elapsed since start.
func (s *Sink) Timing(metric string, start time.Time) {
	s.timings.WithLabelValues(s.scope, metric).Observe(time.Since(start).Seconds())
}

// Scope returns a child sink. Nested scopes are joined with a dot.
func (s *Sink) Scope(name string) metrics.Sink {
	scope := name
	if s.scope != "" {
		scope = s.scope + "." + name
	}
	return &Sink{
		scope:    scope,
		counters: s.counters,
		timings:  s.timings,
	}
}

// Collectors returns the underlying collectors.
func (s *Sink) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.counters, s.timings}
}
