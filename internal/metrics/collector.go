package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector aggregates the coordinator's prometheus metrics. It registers
// on the supplied registerer, so embedding applications control exposure.
type Collector struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	unitsExecuted     *prometheus.CounterVec
	activeWorkflows   prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates and registers the workflow metrics under the given
// namespace.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) (*Collector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions by final status",
		},
		[]string{"workflow", "status"},
	)

	c.executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)

	c.unitsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_units_executed_total",
			Help:      "Total number of steps and nodes executed",
		},
		[]string{"kind"},
	)

	c.activeWorkflows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflows_active",
			Help:      "Number of registered workflows",
		},
	)

	for _, col := range []prometheus.Collector{
		c.executionsTotal,
		c.executionDuration,
		c.unitsExecuted,
		c.activeWorkflows,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ObserveExecution records one finished execution.
func (c *Collector) ObserveExecution(workflow, status string, duration time.Duration) {
	c.executionsTotal.WithLabelValues(workflow, status).Inc()
	c.executionDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// AddUnitsExecuted counts executed steps or nodes. kind is "step" or "node".
func (c *Collector) AddUnitsExecuted(kind string, n int) {
	if n <= 0 {
		return
	}
	c.unitsExecuted.WithLabelValues(kind).Add(float64(n))
}

// SetActiveWorkflows tracks the registered-workflow population.
func (c *Collector) SetActiveWorkflows(n int) {
	c.activeWorkflows.Set(float64(n))
}
