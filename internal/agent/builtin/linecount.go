package builtin

import (
	"context"
	"fmt"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
)

// DefaultMaxLines is the file length above which LineCounter warns.
const DefaultMaxLines = 500

// LineCounter reports files longer than the "max_lines" option as warnings
// and emits one informational summary finding.
type LineCounter struct{}

// Run implements agent.Agent.
func (LineCounter) Run(ctx context.Context, task agent.Task, pc agent.ProjectContext, _ agent.Config) (*agent.AgentOutput, error) {
	files, err := pc.ResolveFiles(task.Target)
	if err != nil {
		return nil, err
	}
	maxLines := task.IntOption("max_lines", DefaultMaxLines)
	fsys := pc.FileSystem()

	out := &agent.AgentOutput{Findings: make([]agent.Finding, 0)}
	total := 0
	for _, path := range files {
		lines := 0
		n, err := scanLines(ctx, fsys, path, func(int, string) bool {
			lines++
			return true
		})
		if err != nil {
			return nil, err
		}
		out.Metadata.ResourceUsage.FilesRead++
		out.Metadata.ResourceUsage.BytesRead += n
		total += lines

		if lines > maxLines {
			out.Findings = append(out.Findings, agent.Finding{
				ID:         fmt.Sprintf("%s:%s", task.ID, path),
				Severity:   agent.SeverityWarning,
				Category:   "size",
				Message:    fmt.Sprintf("%s has %d lines (limit %d)", path, lines, maxLines),
				Location:   &agent.Location{File: path},
				Suggestion: "Split the file into smaller units.",
			})
		}
	}

	out.Findings = append(out.Findings, agent.Finding{
		ID:       task.ID + ":summary",
		Severity: agent.SeverityInfo,
		Category: "size",
		Message:  fmt.Sprintf("%d file(s), %d line(s) in total", len(files), total),
	})
	return out, nil
}
