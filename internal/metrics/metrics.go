// Package metrics exposes Prometheus collectors for orchestration runs.
//
// Task-level measurements are recorded by the executor through the
// Collector's TaskStarted/TaskFinished methods. Run, phase and conflict
// measurements are recorded from the event bus via Attach.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moabualruz/ricecoder-sub010/internal/event"
)

const namespace = "ricecoder"

// Task outcomes used as the "outcome" label.
const (
	OutcomeSuccess      = "success"
	OutcomeFailed       = "failed"
	OutcomeTimeout      = "timeout"
	OutcomePanic        = "panic"
	OutcomeUnknownAgent = "unknown_agent"
	OutcomeCanceled     = "canceled"
)

// Collector owns a private Prometheus registry so several collectors can
// coexist in one process (tests, watch mode).
type Collector struct {
	registry *prometheus.Registry

	tasksTotal     *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	tasksInFlight  *prometheus.GaugeVec
	phasesTotal    prometheus.Counter
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	conflictsTotal *prometheus.CounterVec
	findingsTotal  *prometheus.CounterVec
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks executed, by worker kind and outcome.",
		}, []string{"kind", "outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of a task from slot acquisition to result.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"kind"}),
		tasksInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Tasks currently holding a concurrency slot, by worker kind.",
		}, []string{"kind"}),
		phasesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phases_total",
			Help:      "Phases completed.",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestration runs, by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a whole run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Recommendation conflicts detected, by type.",
		}, []string{"type"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Deduplicated findings, by severity.",
		}, []string{"severity"}),
	}

	c.registry.MustRegister(
		c.tasksTotal,
		c.taskDuration,
		c.tasksInFlight,
		c.phasesTotal,
		c.runsTotal,
		c.runDuration,
		c.conflictsTotal,
		c.findingsTotal,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// TaskStarted records that a task acquired a slot.
func (c *Collector) TaskStarted(kind string) {
	c.tasksInFlight.WithLabelValues(kind).Inc()
}

// TaskFinished records a task result.
func (c *Collector) TaskFinished(kind, outcome string, d time.Duration) {
	c.tasksInFlight.WithLabelValues(kind).Dec()
	c.tasksTotal.WithLabelValues(kind, outcome).Inc()
	c.taskDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// TaskSkipped records a task that never ran, such as one canceled before
// its phase started. It does not touch the in-flight gauge.
func (c *Collector) TaskSkipped(kind, outcome string) {
	c.tasksTotal.WithLabelValues(kind, outcome).Inc()
}

// FindingsAggregated adds the per-severity counts of an aggregation.
func (c *Collector) FindingsAggregated(bySeverity map[string]int) {
	for sev, n := range bySeverity {
		c.findingsTotal.WithLabelValues(sev).Add(float64(n))
	}
}

// Attach subscribes the collector to run, phase and conflict events on bus.
// It returns the subscription ids.
func (c *Collector) Attach(bus *event.Bus) []string {
	return []string{
		bus.Subscribe(event.TypePhaseCompleted, func(event.Event) {
			c.phasesTotal.Inc()
		}),
		bus.Subscribe(event.TypeRunCompleted, func(e event.Event) {
			done, ok := e.(event.RunCompletedEvent)
			if !ok {
				return
			}
			status := "succeeded"
			switch {
			case done.Canceled:
				status = "canceled"
			case done.Failed > 0:
				status = "partial"
			}
			c.runsTotal.WithLabelValues(status).Inc()
			c.runDuration.Observe(done.Duration.Seconds())
		}),
		bus.Subscribe(event.TypeConflictsDetected, func(e event.Event) {
			detected, ok := e.(event.ConflictsDetectedEvent)
			if !ok {
				return
			}
			for typ, n := range detected.ByType {
				c.conflictsTotal.WithLabelValues(typ).Add(float64(n))
			}
		}),
	}
}
