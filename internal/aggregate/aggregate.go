// Package aggregate merges the outputs of many workers into one deduplicated,
// severity-ordered list of findings.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
)

// Result is the aggregated view over a set of worker outputs.
type Result struct {
	Findings []agent.Finding `json:"findings"`
	Stats    Stats           `json:"stats"`
	Summary  string          `json:"summary"`
}

// Stats counts what aggregation saw and kept.
type Stats struct {
	// Total is the number of findings across all inputs, duplicates included.
	Total int `json:"total"`
	// Duplicates is the number of findings dropped as duplicates.
	Duplicates int `json:"duplicates"`
	// BySeverity and ByCategory count the kept findings.
	BySeverity map[string]int `json:"by_severity"`
	ByCategory map[string]int `json:"by_category"`
	// Workers is the number of outputs aggregated.
	Workers int `json:"workers"`
}

// key is the identity of a finding for deduplication.
type key struct {
	severity agent.Severity
	category string
	message  string
}

// Aggregate deduplicates findings by (Severity, Category, Message), keeping
// the first occurrence in input order, then orders them by severity from
// most to least severe. Findings of equal severity keep first-encounter
// order, so the result is a pure function of the input.
//
// Inputs are not modified. A nil output, or a finding whose severity is not
// a defined level, fails with ErrMalformedOutput. A nil Findings slice is an
// output with no findings.
func Aggregate(outputs []*agent.AgentOutput) (*Result, error) {
	stats := Stats{
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
		Workers:    len(outputs),
	}

	seen := make(map[key]struct{})
	findings := make([]agent.Finding, 0)

	for i, out := range outputs {
		if out == nil {
			return nil, errors.NewValidationError("agent output is nil").
				WithField(fmt.Sprintf("outputs[%d]", i)).
				WithCause(errors.ErrMalformedOutput)
		}
		for j, f := range out.Findings {
			if !f.Severity.Valid() {
				return nil, errors.NewValidationError("finding has unknown severity").
					WithField(fmt.Sprintf("outputs[%d].findings[%d].severity", i, j)).
					WithValue(int(f.Severity)).
					WithCause(errors.ErrMalformedOutput)
			}
			stats.Total++

			k := key{severity: f.Severity, category: f.Category, message: f.Message}
			if _, dup := seen[k]; dup {
				stats.Duplicates++
				continue
			}
			seen[k] = struct{}{}
			findings = append(findings, copyFinding(f))
		}
	}

	sortBySeverity(findings)

	for _, f := range findings {
		stats.BySeverity[f.Severity.String()]++
		stats.ByCategory[f.Category]++
	}

	return &Result{
		Findings: findings,
		Stats:    stats,
		Summary:  summarize(findings, stats),
	}, nil
}

func copyFinding(f agent.Finding) agent.Finding {
	if f.Location != nil {
		loc := *f.Location
		f.Location = &loc
	}
	return f
}

// sortBySeverity orders most severe first. The sort is stable, so equal
// severities keep their first-encounter order.
func sortBySeverity(findings []agent.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity > findings[j].Severity
	})
}

func summarize(findings []agent.Finding, stats Stats) string {
	if len(findings) == 0 {
		return fmt.Sprintf("Aggregated %d worker output(s): no findings.", stats.Workers)
	}

	var severityParts []string
	for _, sev := range []agent.Severity{agent.SeverityCritical, agent.SeverityWarning, agent.SeverityInfo} {
		if n := stats.BySeverity[sev.String()]; n > 0 {
			severityParts = append(severityParts, fmt.Sprintf("%d %s", n, sev))
		}
	}

	summary := fmt.Sprintf("Aggregated %d worker output(s): %d finding(s) (%s).",
		stats.Workers, len(findings), strings.Join(severityParts, ", "))
	if stats.Duplicates > 0 {
		summary += fmt.Sprintf(" %d duplicate(s) removed.", stats.Duplicates)
	}
	return summary
}

// Filter returns the findings at or above min, preserving order.
func (r *Result) Filter(min agent.Severity) []agent.Finding {
	out := make([]agent.Finding, 0, len(r.Findings))
	for _, f := range r.Findings {
		if f.Severity >= min {
			out = append(out, f)
		}
	}
	return out
}

// HasCritical reports whether any kept finding is critical.
func (r *Result) HasCritical() bool {
	return r.Stats.BySeverity[agent.SeverityCritical.String()] > 0
}
