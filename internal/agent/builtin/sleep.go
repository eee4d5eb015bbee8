package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
)

// Sleeper waits for the "duration" option (a Go duration string, default
// 100ms) and then reports one informational finding. It stops early when ctx
// is canceled, which makes it handy for exercising timeouts.
type Sleeper struct{}

// Run implements agent.Agent.
func (Sleeper) Run(ctx context.Context, task agent.Task, _ agent.ProjectContext, _ agent.Config) (*agent.AgentOutput, error) {
	raw := task.StringOption("duration", "100ms")
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return nil, errors.NewValidationError("invalid duration").
			WithField("options.duration").WithValue(raw)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return &agent.AgentOutput{
		Findings: []agent.Finding{{
			ID:       task.ID,
			Severity: agent.SeverityInfo,
			Category: "timing",
			Message:  fmt.Sprintf("slept %s", d),
		}},
	}, nil
}
