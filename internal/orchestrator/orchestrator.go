// Package orchestrator wires the engine together: it builds a task graph,
// drives phase-by-phase execution, aggregates worker findings and reports
// conflicts between recommendations.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/aggregate"
	"github.com/moabualruz/ricecoder-sub010/internal/conflict"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
	"github.com/moabualruz/ricecoder-sub010/internal/event"
	"github.com/moabualruz/ricecoder-sub010/internal/executor"
	"github.com/moabualruz/ricecoder-sub010/internal/graph"
	"github.com/moabualruz/ricecoder-sub010/internal/logging"
	"github.com/moabualruz/ricecoder-sub010/internal/metrics"
)

// Edge states that TaskID depends on DependsOn.
type Edge = graph.Edge

// Orchestrator coordinates runs. It holds no per-run state, so one
// Orchestrator may serve concurrent runs.
type Orchestrator struct {
	registry *agent.Registry
	logger   *logging.Logger
	bus      *event.Bus
	metrics  *metrics.Collector
	project  agent.ProjectContext
	agentCfg agent.Config
	detector *conflict.Detector
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBus publishes run, phase and task events to bus.
func WithBus(bus *event.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithMetrics records task and finding measurements in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithProjectContext sets the project every worker analyzes.
func WithProjectContext(pc agent.ProjectContext) Option {
	return func(o *Orchestrator) { o.project = pc }
}

// WithAgentConfig sets the options handed to every worker.
func WithAgentConfig(cfg agent.Config) Option {
	return func(o *Orchestrator) { o.agentCfg = cfg }
}

// New creates an Orchestrator that resolves workers from registry.
func New(registry *agent.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		logger:   logging.NopLogger(),
		project:  agent.NewProjectContext("."),
		detector: conflict.NewDetector(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Logger returns the orchestrator's logger.
func (o *Orchestrator) Logger() *logging.Logger {
	return o.logger
}

// BuildGraph creates a task graph. Duplicate ids, unknown dependencies and
// cycles are rejected.
func (o *Orchestrator) BuildGraph(tasks []agent.Task, edges []Edge) (*graph.TaskGraph, error) {
	g, err := graph.Build(tasks, edges)
	if err != nil {
		o.logger.Warn("graph rejected", "error", err.Error())
		return nil, err
	}
	return g, nil
}

// Run computes the phases of g and executes them one after another. It
// returns one result per task, in phase order and then phase input order.
//
// Per-task failures are reported in the results, never as an error. When ctx
// is canceled, tasks that have not started fail with ErrCanceled.
func (o *Orchestrator) Run(ctx context.Context, g *graph.TaskGraph, cfg executor.Config) ([]executor.TaskResult, error) {
	results, _, err := o.run(ctx, uuid.NewString(), g, cfg)
	return results, err
}

func (o *Orchestrator) run(ctx context.Context, runID string, g *graph.TaskGraph, cfg executor.Config) ([]executor.TaskResult, int, error) {
	if g == nil {
		return nil, 0, errors.NewConfigError("graph", nil, "must not be nil")
	}
	if o.registry == nil {
		return nil, 0, errors.NewConfigError("registry", nil, "must not be nil")
	}

	log := o.logger.WithRun(runID)

	phases, err := g.ComputePhases()
	if err != nil {
		log.Error("phase planning failed", "error", err.Error())
		return nil, 0, err
	}

	opts := []executor.Option{
		executor.WithLogger(log),
		executor.WithBus(o.bus),
		executor.WithProjectContext(o.project),
		executor.WithAgentConfig(o.agentCfg),
	}
	if o.metrics != nil {
		opts = append(opts, executor.WithMetrics(o.metrics))
	}
	exec, err := executor.New(cfg, o.registry, opts...)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	log.Info("run started",
		"tasks", g.Len(),
		"phases", len(phases),
		"max_concurrency", cfg.MaxConcurrency,
		"timeout", cfg.Timeout.String(),
	)
	o.bus.Publish(event.NewRunStartedEvent(runID, g.Len(), len(phases)))

	results := make([]executor.TaskResult, 0, g.Len())
	succeeded, failed := 0, 0
	for _, phase := range phases {
		plog := log.WithPhase(phase.Index)
		if ctx.Err() != nil {
			plog.Warn("run canceled, skipping phase", "tasks", len(phase.Tasks))
		} else {
			plog.Info("phase started", "tasks", len(phase.Tasks))
		}
		o.bus.Publish(event.NewPhaseStartedEvent(runID, phase.Index, phase.IDs()))

		phaseStart := time.Now()
		phaseResults, err := exec.ExecutePhase(ctx, phase)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "phase %d", phase.Index)
		}

		ok := 0
		for _, r := range phaseResults {
			if r.Success {
				ok++
			}
		}
		succeeded += ok
		failed += len(phaseResults) - ok
		results = append(results, phaseResults...)

		phaseDuration := time.Since(phaseStart)
		plog.Info("phase completed",
			"succeeded", ok,
			"failed", len(phaseResults)-ok,
			"duration_ms", phaseDuration.Milliseconds(),
		)
		o.bus.Publish(event.NewPhaseCompletedEvent(runID, phase.Index, ok, len(phaseResults)-ok, phaseDuration))
	}

	duration := time.Since(start)
	canceled := ctx.Err() != nil
	log.Info("run completed",
		"succeeded", succeeded,
		"failed", failed,
		"canceled", canceled,
		"duration_ms", duration.Milliseconds(),
	)
	o.bus.Publish(event.NewRunCompletedEvent(runID, succeeded, failed, duration, canceled))

	return results, len(phases), nil
}

// Aggregate merges worker outputs into one deduplicated, severity-ordered
// list of findings.
func (o *Orchestrator) Aggregate(outputs []*agent.AgentOutput) (*aggregate.Result, error) {
	return aggregate.Aggregate(outputs)
}

// ExtractRecommendations collects the recommendations carried by outputs, in
// output order.
func (o *Orchestrator) ExtractRecommendations(outputs []*agent.AgentOutput) []agent.Recommendation {
	recs := make([]agent.Recommendation, 0)
	for _, out := range outputs {
		recs = append(recs, out.Recommendations()...)
	}
	return recs
}

// DetectAndReportConflicts runs conflict detection over recs and builds a
// report. It never fails.
func (o *Orchestrator) DetectAndReportConflicts(recs []agent.Recommendation) conflict.Report {
	return o.detector.GenerateReport(o.detector.Detect(recs))
}

// Request describes a full run for Execute.
type Request struct {
	Tasks []agent.Task
	Edges []Edge
	// Recommendations are checked for conflicts alongside the ones workers
	// produce.
	Recommendations []agent.Recommendation
	Config          executor.Config
	DetectConflicts bool
}

// Report is the outcome of Execute.
type Report struct {
	RunID           string                 `json:"run_id"`
	StartedAt       time.Time              `json:"started_at"`
	Duration        time.Duration          `json:"duration_ns"`
	Phases          int                    `json:"phases"`
	Results         []executor.TaskResult  `json:"results"`
	Aggregate       *aggregate.Result      `json:"aggregate"`
	Recommendations []agent.Recommendation `json:"recommendations"`
	Conflicts       *conflict.Report       `json:"conflicts,omitempty"`
	Succeeded       int                    `json:"succeeded"`
	Failed          int                    `json:"failed"`
	TimedOut        int                    `json:"timed_out"`
	Canceled        bool                   `json:"canceled"`
}

// Outputs returns the outputs of the successful tasks, in result order.
func (r *Report) Outputs() []*agent.AgentOutput {
	outputs := make([]*agent.AgentOutput, 0, r.Succeeded)
	for _, res := range r.Results {
		if res.Success {
			outputs = append(outputs, res.Output)
		}
	}
	return outputs
}

// Execute runs the whole pipeline: build the graph, run it, aggregate the
// successful outputs and, when requested, report conflicts.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := o.logger.WithRun(report.RunID)

	g, err := o.BuildGraph(req.Tasks, req.Edges)
	if err != nil {
		return nil, err
	}

	report.Results, report.Phases, err = o.run(ctx, report.RunID, g, req.Config)
	if err != nil {
		return nil, err
	}
	for _, r := range report.Results {
		switch {
		case r.Success:
			report.Succeeded++
		case r.TimedOut:
			report.TimedOut++
			report.Failed++
		default:
			report.Failed++
		}
	}
	report.Canceled = ctx.Err() != nil

	outputs := report.Outputs()
	report.Aggregate, err = o.Aggregate(outputs)
	if err != nil {
		log.Error("aggregation failed", "error", err.Error())
		return nil, errors.Wrapf(err, "aggregate run %s", report.RunID)
	}
	if o.metrics != nil {
		o.metrics.FindingsAggregated(report.Aggregate.Stats.BySeverity)
	}

	report.Recommendations = append(o.ExtractRecommendations(outputs), req.Recommendations...)
	if req.DetectConflicts {
		cr := o.DetectAndReportConflicts(report.Recommendations)
		report.Conflicts = &cr
		if len(cr.Conflicts) > 0 {
			log.Warn("conflicting recommendations", "count", len(cr.Conflicts))
		}
		o.bus.Publish(event.NewConflictsDetectedEvent(report.RunID, len(cr.Conflicts), conflict.CountByType(cr.Conflicts)))
	}

	report.Duration = time.Since(report.StartedAt)
	log.Info("execution finished",
		"findings", len(report.Aggregate.Findings),
		"recommendations", len(report.Recommendations),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}
