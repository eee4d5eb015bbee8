package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/moabualruz/ricecoder-sub010/internal/errors"
)

// Registry maps task kinds to the agents that handle them.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register binds kind to a. Kinds are matched case-sensitively after trimming
// surrounding whitespace.
func (r *Registry) Register(kind string, a Agent) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return errors.NewValidationError("agent kind cannot be empty").WithField("kind")
	}
	if a == nil {
		return errors.NewValidationError("agent cannot be nil").WithField("agent").WithValue(kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[kind]; exists {
		return fmt.Errorf("%w: %s", errors.ErrAgentExists, kind)
	}
	r.agents[kind] = a
	return nil
}

// MustRegister is like Register but panics on error. Intended for static
// wiring at program start.
func (r *Registry) MustRegister(kind string, a Agent) {
	if err := r.Register(kind, a); err != nil {
		panic(err)
	}
}

// Unregister removes the agent bound to kind. It reports whether one was bound.
func (r *Registry) Unregister(kind string) bool {
	kind = strings.TrimSpace(kind)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[kind]; !ok {
		return false
	}
	delete(r.agents, kind)
	return true
}

// Resolve returns the agent bound to kind, or an error wrapping ErrUnknownAgent.
func (r *Registry) Resolve(kind string) (Agent, error) {
	r.mu.RLock()
	a, ok := r.agents[strings.TrimSpace(kind)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownAgent, kind)
	}
	return a, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.agents))
	for k := range r.agents {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
