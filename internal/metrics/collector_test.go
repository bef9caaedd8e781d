package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveExecution(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector("test", reg, nil)
	require.NoError(t, err)

	c.ObserveExecution("etl", "completed", 120*time.Millisecond)
	c.ObserveExecution("etl", "completed", 80*time.Millisecond)
	c.ObserveExecution("etl", "failed", 10*time.Millisecond)

	completed := testutil.ToFloat64(c.executionsTotal.WithLabelValues("etl", "completed"))
	assert.Equal(t, 2.0, completed)

	failed := testutil.ToFloat64(c.executionsTotal.WithLabelValues("etl", "failed"))
	assert.Equal(t, 1.0, failed)
}

func TestCollector_UnitsAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector("test", reg, nil)
	require.NoError(t, err)

	c.AddUnitsExecuted("step", 3)
	c.AddUnitsExecuted("step", 0) // no-op
	c.AddUnitsExecuted("node", 2)
	c.SetActiveWorkflows(5)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.unitsExecuted.WithLabelValues("step")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.unitsExecuted.WithLabelValues("node")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.activeWorkflows))
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector("test", reg, nil)
	require.NoError(t, err)

	_, err = NewCollector("test", reg, nil)
	assert.Error(t, err)
}
