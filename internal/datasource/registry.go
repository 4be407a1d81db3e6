package datasource

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/valuescreen/internal/contracts"
)

// Registry maps source names to wired backends. The CLI registers whatever
// the environment supports; the pipeline looks sources up by name and never
// touches a concrete type.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]contracts.DataSource
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]contracts.DataSource)}
}

func (r *Registry) Register(name string, src contracts.DataSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[name]; ok {
		return fmt.Errorf("data source %q already registered", name)
	}
	r.sources[name] = src
	return nil
}

func (r *Registry) Get(name string) (contracts.DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown data source %q, available: %v", name, r.names())
	}
	return src, nil
}

// Names lists registered sources, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.sources))
	for n := range r.sources {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
