// Package job provides the registry, parameter handling and runner for the
// automation jobs, plus a cron scheduler for recurring runs.
package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// RunFunc executes a job and returns its result. The result is serialized to
// JSON when the job runs in desktop-flow mode.
type RunFunc func(ctx context.Context, params Params) (any, error)

// Definition describes a registered job.
type Definition struct {
	Name        string
	Description string
	Run         RunFunc
}

// Registry holds job definitions indexed by name.
type Registry struct {
	jobs map[string]*Definition
	mu   sync.RWMutex
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Definition),
	}
}

// Register adds a job definition.
// Panics if the name is already registered.
func (r *Registry) Register(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" {
		panic("job registered without a name")
	}
	if def.Run == nil {
		panic(fmt.Sprintf("job registered without a run function: %s", def.Name))
	}
	if _, exists := r.jobs[def.Name]; exists {
		panic(fmt.Sprintf("job already registered: %s", def.Name))
	}
	r.jobs[def.Name] = def
}

// Get returns the definition for the given job name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.jobs[name]
	return def, ok
}

// List returns all registered definitions sorted by name.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.jobs))
	for _, def := range r.jobs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// --- Default Global Registry ---

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global job registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a definition to the default registry.
func Register(def *Definition) {
	defaultRegistry.Register(def)
}
