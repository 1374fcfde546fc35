package metadata

import (
	"fmt"
	"slices"
	"sync"
)

// Registry holds loaded function definitions keyed by function id. It is
// shared by the protocol handler and the executor for the worker lifetime.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*FunctionDefinition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*FunctionDefinition)}
}

// Register stores def, replacing an earlier definition with the same id.
func (r *Registry) Register(def *FunctionDefinition) error {
	if def == nil || def.id == "" {
		return fmt.Errorf("register function: definition id is required")
	}
	r.mu.Lock()
	r.defs[def.id] = def
	r.mu.Unlock()
	return nil
}

func (r *Registry) Get(functionID string) (*FunctionDefinition, bool) {
	r.mu.RLock()
	def, ok := r.defs[functionID]
	r.mu.RUnlock()
	return def, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// IDs returns the registered function ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Reset drops every definition. Used on environment reload.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.defs = make(map[string]*FunctionDefinition)
	r.mu.Unlock()
}
