package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
)

var todoMarker = regexp.MustCompile(`\b(TODO|FIXME|HACK|XXX)\b(?:\([^)]*\))?:?\s*(.*)`)

// TodoScanner reports TODO-style markers. FIXME, HACK and XXX are warnings;
// TODO is informational.
type TodoScanner struct{}

// Run implements agent.Agent.
func (TodoScanner) Run(ctx context.Context, task agent.Task, pc agent.ProjectContext, _ agent.Config) (*agent.AgentOutput, error) {
	files, err := pc.ResolveFiles(task.Target)
	if err != nil {
		return nil, err
	}
	fsys := pc.FileSystem()

	out := &agent.AgentOutput{Findings: make([]agent.Finding, 0)}
	for _, path := range files {
		n, err := scanLines(ctx, fsys, path, func(lineNo int, line string) bool {
			m := todoMarker.FindStringSubmatchIndex(line)
			if m == nil {
				return true
			}
			marker := line[m[2]:m[3]]
			text := strings.TrimSpace(strings.TrimSuffix(line[m[4]:m[5]], "*/"))

			severity := agent.SeverityWarning
			if marker == "TODO" {
				severity = agent.SeverityInfo
			}
			msg := marker
			if text != "" {
				msg = marker + ": " + text
			}
			out.Findings = append(out.Findings, agent.Finding{
				ID:       fmt.Sprintf("%s:%s:%d", task.ID, path, lineNo),
				Severity: severity,
				Category: "todo",
				Message:  msg,
				Location: &agent.Location{File: path, Line: lineNo, Column: m[2] + 1},
			})
			return true
		})
		if err != nil {
			return nil, err
		}
		out.Metadata.ResourceUsage.FilesRead++
		out.Metadata.ResourceUsage.BytesRead += n
	}
	return out, nil
}
