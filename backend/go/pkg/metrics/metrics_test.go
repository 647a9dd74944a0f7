package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAsk("200", time.Second)
	m.CapabilityInvoked("database", "ok")
	m.CapabilityInvoked("database", "ok")
	m.DatabaseOperation("insert", "validation_error")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.askRequests.WithLabelValues("200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.capabilityInvocations.WithLabelValues("database", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.databaseOperations.WithLabelValues("insert", "validation_error")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAsk("500", time.Millisecond)
		m.CapabilityInvoked("x", "ok")
		m.DatabaseOperation("fetch", "ok")
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(true, "", nil))
	assert.Equal(t, "store_error", Outcome(false, "store_error", nil))
	assert.Equal(t, "error", Outcome(false, "", errors.New("x")))
	assert.Equal(t, "failed", Outcome(false, "", nil))
}
