package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records workflow and stage execution metrics. A nil *Collector
// is valid and records nothing, so callers never need to guard their calls.
type Collector struct {
	workflowRunsTotal   *prometheus.CounterVec
	workflowRunDuration *prometheus.HistogramVec

	stageExecutionsTotal   *prometheus.CounterVec
	stageExecutionDuration *prometheus.HistogramVec
	stageRetriesTotal      *prometheus.CounterVec
	stageTimeoutsTotal     *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered against reg. A nil
// registerer falls back to the prometheus default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.workflowRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs",
		},
		[]string{"workflow", "status"},
	)

	c.workflowRunDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"workflow"},
	)

	c.stageExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Total number of stage executions",
		},
		[]string{"workflow", "stage", "status"},
	)

	c.stageExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_execution_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"workflow", "stage"},
	)

	c.stageRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_retries_total",
			Help:      "Total number of stage retry attempts",
		},
		[]string{"workflow", "stage"},
	)

	c.stageTimeoutsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_timeouts_total",
			Help:      "Total number of stage attempt timeouts",
		},
		[]string{"workflow", "stage"},
	)

	return c
}

// RecordRun records a finished workflow run.
func (c *Collector) RecordRun(workflow, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.workflowRunsTotal.WithLabelValues(workflow, status).Inc()
	c.workflowRunDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// RecordStage records a finished stage execution.
func (c *Collector) RecordStage(workflow, stage, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stageExecutionsTotal.WithLabelValues(workflow, stage, status).Inc()
	c.stageExecutionDuration.WithLabelValues(workflow, stage).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt for a stage.
func (c *Collector) RecordRetry(workflow, stage string) {
	if c == nil {
		return
	}
	c.stageRetriesTotal.WithLabelValues(workflow, stage).Inc()
}

// RecordTimeout records one timed-out stage attempt.
func (c *Collector) RecordTimeout(workflow, stage string) {
	if c == nil {
		return
	}
	c.stageTimeoutsTotal.WithLabelValues(workflow, stage).Inc()
}
