package prometheus_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/docstore/internal/core/metrics"
	promsink "github.com/unifiedui/docstore/internal/infrastructure/metrics/prometheus"
)

func TestSink_IncrementAndScope(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := promsink.NewSink(reg, promsink.Config{Namespace: "test"})
	require.NoError(t, err)

	scoped := sink.Scope("db").Scope("app.users")
	scoped.Increment("insert.success")
	scoped.Increment("insert.success")
	sink.Increment("root")

	counters := sink.Collectors()[0].(*prometheus.CounterVec)
	assert.Equal(t, 2.0, testutil.ToFloat64(counters.WithLabelValues("db.app.users", "insert.success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.WithLabelValues("", "root")))
}

func TestSink_Timing(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := promsink.NewSink(reg, promsink.Config{})
	require.NoError(t, err)

	sink.Scope("db.test.users").Timing("open-connection", time.Now().Add(-10*time.Millisecond))

	count, err := testutil.GatherAndCount(reg, "docstore_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := promsink.NewSink(reg, promsink.Config{Namespace: "shared"})
	require.NoError(t, err)
	second, err := promsink.NewSink(reg, promsink.Config{Namespace: "shared"})
	require.NoError(t, err)

	first.Increment("a")
	second.Increment("a")

	counters := first.Collectors()[0].(*prometheus.CounterVec)
	assert.Equal(t, 2.0, testutil.ToFloat64(counters.WithLabelValues("", "a")))
}

func TestNewSink_RequiresRegisterer(t *testing.T) {
	_, err := promsink.NewSink(nil, promsink.Config{})
	assert.Error(t, err)
}

func TestSink_WithInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := promsink.NewSink(reg, promsink.Config{})
	require.NoError(t, err)

	_ = metrics.Instrument(sink.Scope("db.test.users"), "find", func() error { return nil })

	counters := sink.Collectors()[0].(*prometheus.CounterVec)
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.WithLabelValues("db.test.users", "find.success")))
}
