package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/worklist-harvester/internal/progress"
)

// PrometheusSink exports harvest progress metrics via Prometheus. It owns all
// collectors for runs, rows, and checkpoints.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runRuntime    *prometheus.HistogramVec

	rowsProcessed *prometheus.CounterVec
	fieldFailures *prometheus.CounterVec
	rowDuration   *prometheus.HistogramVec

	checkpoints        *prometheus.CounterVec
	checkpointDuration prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_runs_started_total",
			Help: "Total runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_completed_total",
			Help: "Total runs completed partitioned by result.",
		}, []string{"result"}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"result"}),
		rowsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_rows_processed_total",
			Help: "Rows completed partitioned by task and whether any field failed.",
		}, []string{"task", "result"}),
		fieldFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_field_failures_total",
			Help: "Fields recorded as failed or not found, per task.",
		}, []string{"task"}),
		rowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_row_duration_seconds",
			Help:    "Extraction latency per row.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"task"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_checkpoints_total",
			Help: "Checkpoint writes partitioned by result.",
		}, []string{"result"}),
		checkpointDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvest_checkpoint_duration_seconds",
			Help:    "Time spent writing the full result table.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runRuntime,
		s.rowsProcessed,
		s.fieldFailures,
		s.rowDuration,
		s.checkpoints,
		s.checkpointDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	task := evt.Task
	if task == "" {
		task = "unknown"
	}
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.observeRun("success", evt)
	case progress.StageRunError:
		s.observeRun("error", evt)
	case progress.StageRowDone:
		result := "clean"
		if evt.Failures > 0 {
			result = "with_failures"
			s.fieldFailures.WithLabelValues(task).Add(float64(evt.Failures))
		}
		s.rowsProcessed.WithLabelValues(task, result).Inc()
		if evt.Dur > 0 {
			s.rowDuration.WithLabelValues(task).Observe(evt.Dur.Seconds())
		}
	case progress.StageCheckpoint:
		s.checkpoints.WithLabelValues("written").Inc()
		if evt.Dur > 0 {
			s.checkpointDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StageCheckpointFailed:
		s.checkpoints.WithLabelValues("failed").Inc()
	}
}

func (s *PrometheusSink) observeRun(result string, evt progress.Event) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
