// Package metricstest provides a recording metrics sink for tests.
package metricstest

import (
	"sort"
	"sync"
	"time"

	"github.com/unifiedui/docstore/internal/core/metrics"
)

// Recorder is a metrics.Sink that keeps every call in memory.
type Recorder struct {
	prefix string
	state  *state
}

type state struct {
	mu      sync.Mutex
	counts  map[string]int
	timings map[string]int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		state: &state{
			counts:  make(map[string]int),
			timings: make(map[string]int),
		},
	}
}

// Increment records a counter increment.
func (r *Recorder) Increment(metric string) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.counts[r.qualify(metric)]++
}

// Timing records a timing observation.
func (r *Recorder) Timing(metric string, _ time.Time) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.timings[r.qualify(metric)]++
}

// Scope returns a child recorder sharing the same storage.
func (r *Recorder) Scope(name string) metrics.Sink {
	return &Recorder{prefix: r.qualify(name), state: r.state}
}

// Count returns how many times the fully qualified metric was incremented.
func (r *Recorder) Count(metric string) int {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return r.state.counts[metric]
}

// Timings returns how many timings were recorded for the fully qualified metric.
func (r *Recorder) Timings(metric string) int {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return r.state.timings[metric]
}

// Names returns every counter name seen so far, sorted.
func (r *Recorder) Names() []string {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	names := make([]string, 0, len(r.state.counts))
	for name := range r.state.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Recorder) qualify(metric string) string {
	if r.prefix == "" {
		return metric
	}
	return r.prefix + "." + metric
}
