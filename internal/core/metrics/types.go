// Package metrics provides the metrics backend type constants.
package metrics

// Type represents the type of metrics backend.
type Type string

const (
	// TypePrometheus exports metrics through a Prometheus registry.
	TypePrometheus Type = "prometheus"
	// TypeNoOp discards all metrics.
	TypeNoOp Type = "noop"
)
