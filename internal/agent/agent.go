// Package agent defines the contract between the orchestration engine and the
// workers that analyze a project, together with the data they exchange.
//
// A worker implements [Agent]. Workers are selected per task through a
// [Registry] keyed by task kind, so the executor never needs to know concrete
// worker types.
package agent

import (
	"context"
)

// Config carries per-run settings handed to every worker invocation.
type Config struct {
	Verbose bool
	Options map[string]any
}

// Agent is the capability "given a task, produce an output or fail".
//
// Implementations must honor ctx: the executor cancels it when the task's
// timeout elapses. An implementation that ignores cancellation is abandoned
// and its eventual result discarded.
type Agent interface {
	Run(ctx context.Context, task Task, pc ProjectContext, cfg Config) (*AgentOutput, error)
}

// Func adapts an ordinary function to the Agent interface.
type Func func(ctx context.Context, task Task, pc ProjectContext, cfg Config) (*AgentOutput, error)

// Run calls f.
func (f Func) Run(ctx context.Context, task Task, pc ProjectContext, cfg Config) (*AgentOutput, error) {
	return f(ctx, task, pc, cfg)
}
