// Package graph holds the task dependency graph and plans it into phases.
//
// A TaskGraph is built incrementally with AddTask and AddDependency. Cycles
// are rejected when the closing edge is added, so a graph that accepted all
// of its edges is always plannable. ComputePhases layers the graph with
// Kahn's algorithm and freezes it; later mutations fail with ErrGraphFrozen.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
)

// Phase is a set of tasks whose dependencies all lie in earlier phases.
type Phase struct {
	Index int
	Tasks []agent.Task
}

// IDs returns the ids of the phase's tasks in phase order.
func (p Phase) IDs() []string {
	ids := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// Edge states that TaskID depends on DependsOn.
type Edge struct {
	TaskID    string `json:"task_id" yaml:"task_id"`
	DependsOn string `json:"depends_on" yaml:"depends_on"`
}

// Build creates a graph from tasks and edges, adding tasks first so edges may
// reference any of them.
func Build(tasks []agent.Task, edges []Edge) (*TaskGraph, error) {
	g := New()
	for _, t := range tasks {
		if err := g.AddTask(t); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := g.AddDependency(e.TaskID, e.DependsOn); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// TaskGraph is a directed acyclic graph of tasks. An edge task -> dependency
// means the dependency must complete before task starts.
// It is safe for concurrent use.
type TaskGraph struct {
	mu         sync.RWMutex
	tasks      map[string]agent.Task
	deps       map[string]map[string]struct{}
	dependents map[string]map[string]struct{}
	order      []string
	frozen     bool
}

// New creates an empty graph.
func New() *TaskGraph {
	return &TaskGraph{
		tasks:      make(map[string]agent.Task),
		deps:       make(map[string]map[string]struct{}),
		dependents: make(map[string]map[string]struct{}),
	}
}

// AddTask inserts a task. Ids must be non-empty and unique.
func (g *TaskGraph) AddTask(task agent.Task) error {
	if strings.TrimSpace(task.ID) == "" {
		return fmt.Errorf("%w: task id cannot be empty", errors.ErrInvalidTask)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return fmt.Errorf("%w: cannot add task %q", errors.ErrGraphFrozen, task.ID)
	}
	if _, exists := g.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %q", errors.ErrDuplicateTaskID, task.ID)
	}

	g.tasks[task.ID] = task
	g.deps[task.ID] = make(map[string]struct{})
	g.dependents[task.ID] = make(map[string]struct{})
	g.order = append(g.order, task.ID)
	return nil
}

// AddDependency records that taskID depends on dependencyID. Both tasks must
// already exist. An edge that would close a cycle, including a self edge, is
// rejected and the graph is left unchanged. Re-adding an existing edge is a
// no-op.
func (g *TaskGraph) AddDependency(taskID, dependencyID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return fmt.Errorf("%w: cannot add dependency %q -> %q", errors.ErrGraphFrozen, taskID, dependencyID)
	}
	for _, id := range []string{taskID, dependencyID} {
		if _, ok := g.tasks[id]; !ok {
			return fmt.Errorf("%w: %q", errors.ErrUnknownTask, id)
		}
	}
	if _, exists := g.deps[taskID][dependencyID]; exists {
		return nil
	}

	// The edge closes a cycle iff taskID is already reachable from
	// dependencyID along dependency edges.
	if path := g.pathLocked(dependencyID, taskID); path != nil {
		return errors.NewGraphError(
			fmt.Sprintf("adding %q -> %q would create a cycle", taskID, dependencyID),
			errors.ErrDependencyCycle,
		).WithTaskIDs(path...)
	}

	g.deps[taskID][dependencyID] = struct{}{}
	g.dependents[dependencyID][taskID] = struct{}{}
	return nil
}

// pathLocked returns a dependency path from -> ... -> to, or nil when to is
// unreachable. from == to yields a single element path.
func (g *TaskGraph) pathLocked(from, to string) []string {
	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			var path []string
			for n := cur; n != ""; n = parent[n] {
				path = append(path, n)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, next := range sortedKeys(g.deps[cur]) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			queue = append(queue, next)
		}
	}
	return nil
}

// RootTasks returns the tasks with no dependencies, in insertion order.
func (g *TaskGraph) RootTasks() []agent.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	roots := make([]agent.Task, 0)
	for _, id := range g.order {
		if len(g.deps[id]) == 0 {
			roots = append(roots, g.tasks[id])
		}
	}
	return roots
}

// Dependencies returns the direct dependencies of id, sorted.
func (g *TaskGraph) Dependencies(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	deps, ok := g.deps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownTask, id)
	}
	return sortedKeys(deps), nil
}

// Dependents returns the tasks that directly depend on id, sorted.
func (g *TaskGraph) Dependents(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dependents, ok := g.dependents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownTask, id)
	}
	return sortedKeys(dependents), nil
}

// Task returns the task with the given id.
func (g *TaskGraph) Task(id string) (agent.Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.tasks[id]
	return t, ok
}

// Len returns the number of tasks.
func (g *TaskGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// TaskIDs returns all task ids in insertion order.
func (g *TaskGraph) TaskIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Frozen reports whether phases have been computed.
func (g *TaskGraph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// ComputePhases partitions the graph into phases. Phase k holds exactly the
// tasks whose dependencies were all placed in phases 0..k-1; within a phase,
// tasks keep insertion order. The graph is frozen on success.
//
// Every task appears in exactly one phase. An empty graph yields no phases.
// Calling ComputePhases again returns the same layering.
func (g *TaskGraph) ComputePhases() ([]Phase, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	phases, err := g.layerLocked()
	if err != nil {
		return nil, err
	}
	g.frozen = true
	return phases, nil
}

// Validate checks that the graph can be planned without freezing it.
func (g *TaskGraph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := g.layerLocked()
	return err
}

func (g *TaskGraph) layerLocked() ([]Phase, error) {
	inDegree := make(map[string]int, len(g.tasks))
	for id, deps := range g.deps {
		inDegree[id] = len(deps)
	}

	phases := make([]Phase, 0)
	placed := 0
	var current []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}

	for len(current) > 0 {
		phase := Phase{Index: len(phases), Tasks: make([]agent.Task, 0, len(current))}
		ready := make(map[string]struct{})
		for _, id := range current {
			phase.Tasks = append(phase.Tasks, g.tasks[id])
			placed++
			for dependent := range g.dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					ready[dependent] = struct{}{}
				}
			}
		}
		phases = append(phases, phase)

		// Next layer, in insertion order.
		current = nil
		for _, id := range g.order {
			if _, ok := ready[id]; ok {
				current = append(current, id)
			}
		}
	}

	if placed != len(g.tasks) {
		var unplaced []string
		for _, id := range g.order {
			if inDegree[id] > 0 {
				unplaced = append(unplaced, id)
			}
		}
		return nil, errors.NewGraphError(
			fmt.Sprintf("%d task(s) could not be placed in any phase", len(unplaced)),
			errors.ErrDependencyCycle,
		).WithTaskIDs(unplaced...)
	}
	return phases, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
