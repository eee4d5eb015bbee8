package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity ranks a finding. Higher values are more severe, so the zero value
// is the least severe level.
type Severity int

const (
	// SeverityInfo is an informational observation.
	SeverityInfo Severity = iota
	// SeverityWarning is a problem that should be looked at.
	SeverityWarning
	// SeverityCritical is a problem that must be fixed.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	return s >= SeverityInfo && s <= SeverityCritical
}

// ParseSeverity converts a case-insensitive name into a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", name)
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Target names the part of the project a task operates on.
type Target struct {
	// Files lists paths or doublestar patterns relative to the project root.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
	// Scope is a free-form label such as "module" or "package".
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Task is a unit of work assigned to one worker. ID is unique within a graph.
type Task struct {
	ID      string         `json:"id" yaml:"id"`
	Kind    string         `json:"kind" yaml:"kind"`
	Target  Target         `json:"target" yaml:"target"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Option returns the option value for key, if present.
func (t Task) Option(key string) (any, bool) {
	if t.Options == nil {
		return nil, false
	}
	v, ok := t.Options[key]
	return v, ok
}

// StringOption returns a string option or def when absent or not a string.
func (t Task) StringOption(key, def string) string {
	if v, ok := t.Option(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// IntOption returns an integer option or def when absent. YAML and JSON
// decoders produce different numeric types, so several are accepted.
func (t Task) IntOption(key string, def int) int {
	v, ok := t.Option(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case uint64:
		return int(n)
	default:
		return def
	}
}

// Location points at a place in the project.
type Location struct {
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty"`
}

// String renders file:line:column, omitting zero parts.
func (l Location) String() string {
	switch {
	case l.Line > 0 && l.Column > 0:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	case l.Line > 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	default:
		return l.File
	}
}

// Finding is one observation produced by a worker. Two findings with the same
// (Severity, Category, Message) are the same finding for aggregation purposes.
type Finding struct {
	ID         string    `json:"id" yaml:"id"`
	Severity   Severity  `json:"severity" yaml:"severity"`
	Category   string    `json:"category" yaml:"category"`
	Message    string    `json:"message" yaml:"message"`
	Location   *Location `json:"location,omitempty" yaml:"location,omitempty"`
	Suggestion string    `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// Recommendation is a worker's suggestion of a technology or approach for a
// domain and category. The conflict detector compares recommendations.
type Recommendation struct {
	Domain       string   `json:"domain" yaml:"domain"`
	Category     string   `json:"category" yaml:"category"`
	Content      string   `json:"content" yaml:"content"`
	Technologies []string `json:"technologies,omitempty" yaml:"technologies,omitempty"`
	Rationale    string   `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	// Source identifies who produced the recommendation (worker or task id).
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Suggestion is a proposed change. It may carry a Recommendation.
type Suggestion struct {
	Title          string          `json:"title" yaml:"title"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
}

// Generated is an artifact produced by a worker, such as a file body.
type Generated struct {
	Path    string `json:"path" yaml:"path"`
	Content string `json:"content" yaml:"content"`
}

// ResourceUsage records what a worker consumed while running.
type ResourceUsage struct {
	FilesRead  int   `json:"files_read"`
	BytesRead  int64 `json:"bytes_read"`
	TokensUsed int64 `json:"tokens_used,omitempty"`
}

// Metadata describes the worker invocation that produced an output.
type Metadata struct {
	WorkerID      string        `json:"worker_id"`
	Duration      time.Duration `json:"duration"`
	ResourceUsage ResourceUsage `json:"resource_usage"`
}

// AgentOutput is produced by a worker for one task. The caller owns it once
// returned; workers must not retain references to it.
type AgentOutput struct {
	Findings    []Finding    `json:"findings"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Generated   []Generated  `json:"generated,omitempty"`
	Metadata    Metadata     `json:"metadata"`
}

// Recommendations returns the recommendations carried by the output's suggestions.
func (o *AgentOutput) Recommendations() []Recommendation {
	if o == nil {
		return nil
	}
	var recs []Recommendation
	for _, s := range o.Suggestions {
		if s.Recommendation == nil {
			continue
		}
		rec := *s.Recommendation
		if rec.Source == "" {
			rec.Source = o.Metadata.WorkerID
		}
		rec.Technologies = append([]string(nil), rec.Technologies...)
		recs = append(recs, rec)
	}
	return recs
}

// MarshalJSON renders Duration in milliseconds for readability.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type alias struct {
		WorkerID      string        `json:"worker_id"`
		DurationMs    int64         `json:"duration_ms"`
		ResourceUsage ResourceUsage `json:"resource_usage"`
	}
	return json.Marshal(alias{
		WorkerID:      m.WorkerID,
		DurationMs:    m.Duration.Milliseconds(),
		ResourceUsage: m.ResourceUsage,
	})
}
