package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/conflict"
	"github.com/moabualruz/ricecoder-sub010/internal/graph"
	"github.com/moabualruz/ricecoder-sub010/internal/orchestrator"
)

// Terminal colors, shared with the default dark theme.
var (
	colorPrimary   = lipgloss.Color("#A78BFA") // Purple
	colorSecondary = lipgloss.Color("#10B981") // Green
	colorWarning   = lipgloss.Color("#F59E0B") // Amber
	colorError     = lipgloss.Color("#F87171") // Red
	colorMuted     = lipgloss.Color("#9CA3AF") // Gray
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle      = lipgloss.NewStyle().Foreground(colorSecondary)
	failStyle    = lipgloss.NewStyle().Foreground(colorError)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorWarning).Padding(0, 1)
)

// maxMessageWidth bounds finding messages in the summary.
const maxMessageWidth = 96

func severityStyle(s agent.Severity) lipgloss.Style {
	switch s {
	case agent.SeverityCritical:
		return failStyle.Bold(true)
	case agent.SeverityWarning:
		return warnStyle
	default:
		return mutedStyle
	}
}

// truncate shortens s to width visual columns, keeping ANSI sequences intact.
func truncate(s string, width int) string {
	if width <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "...")
}

func renderReport(r *orchestrator.Report) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("ricecoder run " + r.RunID))
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %d phase(s), %s", r.Phases, r.Duration.Round(time.Millisecond))))
	sb.WriteString("\n\n")

	sb.WriteString(headingStyle.Render("Tasks"))
	sb.WriteString("\n")
	for _, res := range r.Results {
		status := okStyle.Render("✓")
		detail := mutedStyle.Render(res.Duration.Round(time.Millisecond).String())
		switch {
		case res.TimedOut:
			status = warnStyle.Render("⏱")
			detail = warnStyle.Render(truncate(res.Error, maxMessageWidth))
		case !res.Success:
			status = failStyle.Render("✗")
			detail = failStyle.Render(truncate(res.Error, maxMessageWidth))
		}
		fmt.Fprintf(&sb, "  %s %-20s %-12s phase %d  %s\n", status, res.TaskID, res.Kind, res.Phase, detail)
	}
	if r.Canceled {
		sb.WriteString(warnStyle.Render("  run canceled; remaining tasks were not started"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if agg := r.Aggregate; agg != nil {
		sb.WriteString(headingStyle.Render(fmt.Sprintf("Findings (%d)", len(agg.Findings))))
		sb.WriteString("\n")
		for _, f := range agg.Findings {
			sev := severityStyle(f.Severity).Render(fmt.Sprintf("%-8s", strings.ToUpper(f.Severity.String())))
			line := fmt.Sprintf("  %s %-10s %s", sev, f.Category, truncate(f.Message, maxMessageWidth))
			if f.Location != nil {
				line += mutedStyle.Render("  " + f.Location.String())
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString(mutedStyle.Render(agg.Summary))
		sb.WriteString("\n")
	}

	if r.Conflicts != nil && len(r.Conflicts.Conflicts) > 0 {
		sb.WriteString("\n")
		sb.WriteString(boxStyle.Render(strings.TrimRight(conflict.NewDetector().FormatReport(*r.Conflicts), "\n")))
		sb.WriteString("\n")
	} else if r.Conflicts != nil {
		sb.WriteString(okStyle.Render(r.Conflicts.Analysis))
		sb.WriteString("\n")
	}

	status := okStyle.Render(fmt.Sprintf("%d succeeded", r.Succeeded))
	if r.Failed > 0 {
		status += ", " + failStyle.Render(fmt.Sprintf("%d failed", r.Failed))
	}
	if r.TimedOut > 0 {
		status += mutedStyle.Render(fmt.Sprintf(" (%d timed out)", r.TimedOut))
	}
	sb.WriteString("\n")
	sb.WriteString(status)
	sb.WriteString("\n")
	return sb.String()
}

func renderPhases(phases []graph.Phase) string {
	var sb strings.Builder
	for _, p := range phases {
		sb.WriteString(headingStyle.Render(fmt.Sprintf("Phase %d", p.Index)))
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  (%d task(s))", len(p.Tasks))))
		sb.WriteString("\n")
		for _, t := range p.Tasks {
			fmt.Fprintf(&sb, "  - %s %s\n", t.ID, mutedStyle.Render("["+t.Kind+"]"))
		}
	}
	return sb.String()
}
