// Package metrics defines the metrics sink interface and operation instrumentation.
package metrics

import (
	"time"
)

// Sink receives counters and timings.
type Sink interface {
	// Increment adds one to the named counter.
	Increment(metric string)

	// Timing records the time elapsed since start under the named metric.
	Timing(metric string, start time.Time)

	// Scope returns a child sink whose metrics are namespaced by name.
	Scope(name string) Sink
}

// Suffixes appended to instrumented operation names.
const (
	SuffixSuccess = ".success"
	SuffixError   = ".error"
)

// Instrument runs op and records <metric>.success or <metric>.error as both
// a counter and a timing on sink.
func Instrument(sink Sink, metric string, op func() error) error {
	start := time.Now()
	err := op()

	name := metric + SuffixSuccess
	if err != nil {
		name = metric + SuffixError
	}
	sink.Increment(name)
	sink.Timing(name, start)

	return err
}

// NoOp is a sink that discards everything.
type NoOp struct{}

// NewNoOp creates a new no-operation sink.
func NewNoOp() NoOp {
	return NoOp{}
}

// Increment does nothing.
func (NoOp) Increment(string) {}

// Timing does nothing.
func (NoOp) Timing(string, time.Time) {}

// Scope returns the same no-op sink.
func (n NoOp) Scope(string) Sink {
	return n
}
