// Package executor runs the tasks of one phase concurrently.
//
// The executor bounds concurrency with a worker pool shared by the phase,
// gives every task its own timeout, and turns every way a task can go wrong
// (error, panic, timeout, unknown kind) into a failed TaskResult. One task's
// failure never affects its siblings, and ExecutePhase always returns exactly
// one result per input task, in input order.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
	"github.com/moabualruz/ricecoder-sub010/internal/event"
	"github.com/moabualruz/ricecoder-sub010/internal/graph"
	"github.com/moabualruz/ricecoder-sub010/internal/logging"
)

// DefaultTimeout is the per-task timeout used by DefaultConfig.
const DefaultTimeout = 30 * time.Second

// Config controls how a phase is executed.
type Config struct {
	// MaxConcurrency is the maximum number of tasks running at once.
	MaxConcurrency int
	// Timeout is applied to each task individually.
	Timeout time.Duration
	// Verbose raises per-task log lines from debug to info.
	Verbose bool
}

// DefaultConfig returns a Config sized to the available hardware parallelism
// with a 30s per-task timeout.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: runtime.GOMAXPROCS(0),
		Timeout:        DefaultTimeout,
	}
}

// Validate rejects configurations that cannot run any task.
func (c Config) Validate() error {
	if c.MaxConcurrency <= 0 {
		return errors.NewConfigError("max_concurrency", c.MaxConcurrency, "must be positive")
	}
	if c.Timeout <= 0 {
		return errors.NewConfigError("timeout", c.Timeout, "must be positive")
	}
	return nil
}

// Runner resolves the agent that handles a task kind. *agent.Registry
// satisfies it.
type Runner interface {
	Resolve(kind string) (agent.Agent, error)
}

// Recorder receives task-level measurements. *metrics.Collector satisfies it.
type Recorder interface {
	TaskStarted(kind string)
	TaskFinished(kind, outcome string, d time.Duration)
	TaskSkipped(kind, outcome string)
}

// TaskResult is the outcome of one task. Output is set iff Success is true;
// Err and Error are set iff Success is false.
type TaskResult struct {
	TaskID   string             `json:"task_id"`
	Kind     string             `json:"kind"`
	Phase    int                `json:"phase"`
	Success  bool               `json:"success"`
	Output   *agent.AgentOutput `json:"output,omitempty"`
	Err      error              `json:"-"`
	Error    string             `json:"error,omitempty"`
	Duration time.Duration      `json:"duration_ns"`
	TimedOut bool               `json:"timed_out,omitempty"`
}

// Failed builds a failed result for a task that could not run.
func Failed(task agent.Task, phase int, err error) TaskResult {
	return TaskResult{
		TaskID: task.ID,
		Kind:   task.Kind,
		Phase:  phase,
		Err:    err,
		Error:  err.Error(),
	}
}

// Executor runs phases. It is safe to call ExecutePhase concurrently, though
// the orchestrator runs phases one at a time.
type Executor struct {
	cfg      Config
	runner   Runner
	logger   *logging.Logger
	bus      *event.Bus
	recorder Recorder
	project  agent.ProjectContext
	agentCfg agent.Config
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBus publishes task events to bus.
func WithBus(bus *event.Bus) Option {
	return func(e *Executor) { e.bus = bus }
}

// WithMetrics records task measurements.
func WithMetrics(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithProjectContext sets the project context handed to every worker.
func WithProjectContext(pc agent.ProjectContext) Option {
	return func(e *Executor) { e.project = pc }
}

// WithAgentConfig sets the worker configuration handed to every worker.
// Verbose is forced to match the executor's Config.
func WithAgentConfig(cfg agent.Config) Option {
	return func(e *Executor) { e.agentCfg = cfg }
}

// New creates an Executor. Configuration errors surface here rather than
// during execution.
func New(cfg Config, runner Runner, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, errors.NewConfigError("runner", nil, "must not be nil")
	}

	e := &Executor{
		cfg:    cfg,
		runner: runner,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.agentCfg.Verbose = cfg.Verbose
	return e, nil
}

// Config returns the executor's configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

// ExecutePhase runs every task of phase, at most MaxConcurrency at a time,
// and waits for all of them. Results are in phase order.
//
// Canceling ctx cancels every running task's context; tasks still waiting
// for a slot fail with ErrCanceled without starting their worker.
func (e *Executor) ExecutePhase(ctx context.Context, phase graph.Phase) ([]TaskResult, error) {
	if e == nil || e.runner == nil {
		return nil, errors.NewConfigError("executor", nil, "not initialized; use New")
	}

	results := make([]TaskResult, len(phase.Tasks))
	if len(phase.Tasks) == 0 {
		return results, nil
	}

	p := pool.New().WithMaxGoroutines(e.cfg.MaxConcurrency)
	for i, task := range phase.Tasks {
		p.Go(func() {
			results[i] = e.runTask(ctx, phase.Index, task)
		})
	}
	p.Wait()

	return results, nil
}

type outcome struct {
	output *agent.AgentOutput
	err    error
}

// runTask executes a single task while holding a pool slot.
func (e *Executor) runTask(ctx context.Context, phaseIdx int, task agent.Task) TaskResult {
	log := e.logger.WithPhase(phaseIdx).WithTask(task.ID, task.Kind)

	if err := ctx.Err(); err != nil {
		res := Failed(task, phaseIdx, errors.NewTaskError("canceled before start", errors.ErrCanceled).
			WithTaskID(task.ID).WithKind(task.Kind).WithPhase(phaseIdx).WithSeverity(errors.SeverityWarning))
		e.finish(log, res, "canceled", false)
		return res
	}

	start := time.Now()
	e.bus.Publish(event.NewTaskStartedEvent(task.ID, task.Kind, phaseIdx))
	if e.recorder != nil {
		e.recorder.TaskStarted(task.Kind)
	}
	log.Log(e.taskLevel(), "task started")

	a, err := e.runner.Resolve(task.Kind)
	if err != nil {
		res := Failed(task, phaseIdx, errors.NewTaskError("cannot resolve agent", err).
			WithTaskID(task.ID).WithKind(task.Kind).WithPhase(phaseIdx))
		res.Duration = time.Since(start)
		e.finish(log, res, "unknown_agent", true)
		return res
	}

	taskCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	// Buffered so an abandoned worker can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		if recovered := panics.Try(func() {
			out.output, out.err = a.Run(taskCtx, task, e.project, e.agentCfg)
		}); recovered != nil {
			out = outcome{err: fmt.Errorf("%w: %w", errors.ErrWorkerPanic, recovered.AsError())}
		}
		done <- out
	}()

	var out outcome
	select {
	case out = <-done:
	case <-taskCtx.Done():
		// The worker may have finished at the same instant; prefer its result.
		select {
		case out = <-done:
		default:
			out = outcome{err: taskCtx.Err()}
		}
	}
	duration := time.Since(start)

	res := TaskResult{TaskID: task.ID, Kind: task.Kind, Phase: phaseIdx, Duration: duration}
	label := "success"

	switch {
	case out.err == nil && out.output == nil:
		res.Err = errors.NewTaskError("worker returned no output", errors.ErrMalformedOutput).
			WithTaskID(task.ID).WithKind(task.Kind).WithPhase(phaseIdx)
		label = "failed"

	case out.err == nil:
		res.Success = true
		res.Output = out.output
		if res.Output.Metadata.WorkerID == "" {
			res.Output.Metadata.WorkerID = task.Kind + "/" + task.ID
		}
		if res.Output.Metadata.Duration == 0 {
			res.Output.Metadata.Duration = duration
		}

	case errors.Is(out.err, errors.ErrWorkerPanic):
		res.Err = errors.NewTaskError("worker panicked", out.err).
			WithTaskID(task.ID).WithKind(task.Kind).WithPhase(phaseIdx).WithSeverity(errors.SeverityCritical)
		label = "panic"

	case errors.Is(taskCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.TimedOut = true
		res.Err = errors.NewTimeoutError(fmt.Sprintf("task %q", task.ID), e.cfg.Timeout)
		label = "timeout"

	case ctx.Err() != nil:
		res.Err = errors.NewTaskError("run canceled", errors.Join(errors.ErrCanceled, out.err)).
			WithTaskID(task.ID).WithKind(task.Kind).WithPhase(phaseIdx).WithSeverity(errors.SeverityWarning)
		label = "canceled"

	default:
		res.Err = errors.NewTaskError("worker failed", fmt.Errorf("%w: %w", errors.ErrTaskFailed, out.err)).
			WithTaskID(task.ID).WithKind(task.Kind).WithPhase(phaseIdx)
		label = "failed"
	}

	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	e.finish(log, res, label, true)
	return res
}

// finish logs, records and publishes a task result. started reports whether
// the task was counted by TaskStarted.
func (e *Executor) finish(log *logging.Logger, res TaskResult, label string, started bool) {
	switch {
	case res.Success:
		log.Log(e.taskLevel(), "task completed",
			"duration_ms", res.Duration.Milliseconds(),
			"findings", len(res.Output.Findings),
		)
	case res.TimedOut:
		log.Log(severityLevel(res.Err), "task timed out", "timeout", e.cfg.Timeout.String())
	case label == "panic":
		log.Log(severityLevel(res.Err), "task panicked", "error", res.Error)
	default:
		log.Log(severityLevel(res.Err), "task failed", "error", res.Error, "outcome", label)
	}

	if e.recorder != nil {
		if started {
			e.recorder.TaskFinished(res.Kind, label, res.Duration)
		} else {
			e.recorder.TaskSkipped(res.Kind, label)
		}
	}
	e.bus.Publish(event.NewTaskCompletedEvent(
		res.TaskID, res.Kind, res.Phase, res.Success, res.TimedOut, res.Error, res.Duration,
	))
}

// severityLevel maps the severity carried by a task error to a log level.
func severityLevel(err error) slog.Level {
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug:
		return slog.LevelDebug
	case errors.SeverityInfo:
		return slog.LevelInfo
	case errors.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (e *Executor) taskLevel() slog.Level {
	if e.cfg.Verbose {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
