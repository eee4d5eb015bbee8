// Package plan loads orchestration plans from YAML files.
//
// A plan names the project to analyze, the tasks to run with their
// dependencies, optional executor overrides, and optional recommendations
// that are fed to conflict detection alongside the ones workers produce.
package plan

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
	"github.com/moabualruz/ricecoder-sub010/internal/graph"
)

// File is the decoded form of a plan file.
type File struct {
	Project         Project                `yaml:"project"`
	Executor        ExecutorOverrides      `yaml:"executor,omitempty"`
	Tasks           []TaskSpec             `yaml:"tasks"`
	Recommendations []agent.Recommendation `yaml:"recommendations,omitempty"`

	// Path is the file the plan was loaded from, empty for in-memory plans.
	Path string `yaml:"-"`
}

// Project describes the analyzed project.
type Project struct {
	// Root is resolved against the plan file's directory when relative.
	Root     string            `yaml:"root"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// ExecutorOverrides replace configured executor settings for this plan.
// Zero values leave the configured setting in place.
type ExecutorOverrides struct {
	MaxConcurrency int           `yaml:"max_concurrency,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// TaskSpec is one task entry.
type TaskSpec struct {
	ID        string         `yaml:"id"`
	Kind      string         `yaml:"kind"`
	Target    agent.Target   `yaml:"target,omitempty"`
	DependsOn []string       `yaml:"depends_on,omitempty"`
	Options   map[string]any `yaml:"options,omitempty"`
}

// Parse decodes and validates plan YAML. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: plan is empty", errors.ErrInvalidPlan)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", errors.ErrInvalidPlan, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadReader reads a plan from r.
func LoadReader(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read plan")
	}
	return Parse(data)
}

// Load reads a plan file and resolves its project root.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read plan %s", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "plan %s", path)
	}

	f.Path = path
	root := f.Project.Root
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(filepath.Dir(path), root)
	}
	f.Project.Root = filepath.Clean(root)
	return f, nil
}

// Validate reports every structural problem in the plan at once.
func (f *File) Validate() error {
	var problems []error
	addf := func(field, format string, args ...any) {
		problems = append(problems, errors.NewValidationError(fmt.Sprintf(format, args...)).
			WithField(field).WithCause(errors.ErrInvalidPlan))
	}

	ids := make(map[string]int, len(f.Tasks))
	for i, t := range f.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		switch {
		case strings.TrimSpace(t.ID) == "":
			addf(field+".id", "task id is required")
		case ids[t.ID] > 0:
			addf(field+".id", "duplicate task id %q", t.ID)
		}
		ids[t.ID]++
		if strings.TrimSpace(t.Kind) == "" {
			addf(field+".kind", "task %q has no kind", t.ID)
		}
	}

	for i, t := range f.Tasks {
		for j, dep := range t.DependsOn {
			if _, ok := ids[dep]; !ok || dep == "" {
				addf(fmt.Sprintf("tasks[%d].depends_on[%d]", i, j), "task %q depends on unknown task %q", t.ID, dep)
			}
		}
	}

	if f.Executor.MaxConcurrency < 0 {
		addf("executor.max_concurrency", "must not be negative")
	}
	if f.Executor.Timeout < 0 {
		addf("executor.timeout", "must not be negative")
	}

	for i, r := range f.Recommendations {
		if strings.TrimSpace(r.Domain) == "" || strings.TrimSpace(r.Category) == "" {
			addf(fmt.Sprintf("recommendations[%d]", i), "domain and category are required")
		}
	}

	return errors.Join(problems...)
}

// AgentTasks converts the task entries into agent tasks, in file order.
func (f *File) AgentTasks() []agent.Task {
	tasks := make([]agent.Task, len(f.Tasks))
	for i, t := range f.Tasks {
		tasks[i] = agent.Task{
			ID:      t.ID,
			Kind:    t.Kind,
			Target:  t.Target,
			Options: t.Options,
		}
	}
	return tasks
}

// Edges lists the dependency edges declared by the tasks.
func (f *File) Edges() []graph.Edge {
	var edges []graph.Edge
	for _, t := range f.Tasks {
		for _, dep := range t.DependsOn {
			edges = append(edges, graph.Edge{TaskID: t.ID, DependsOn: dep})
		}
	}
	return edges
}

// Graph builds the task graph described by the plan.
func (f *File) Graph() (*graph.TaskGraph, error) {
	return graph.Build(f.AgentTasks(), f.Edges())
}

// ProjectContext returns the worker-facing project context.
func (f *File) ProjectContext() agent.ProjectContext {
	root := f.Project.Root
	if root == "" {
		root = "."
	}
	pc := agent.NewProjectContext(root)
	for k, v := range f.Project.Metadata {
		pc.Metadata[k] = v
	}
	return pc
}
