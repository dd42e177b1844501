package engine

import (
	"fmt"
	"sync"

	"github.com/petrijr/tickflow/pkg/api"
)

// workflowRegistry is the static catalog of registered workflows. It is
// written during startup and read by every request and tick afterwards.
type workflowRegistry struct {
	mu    sync.RWMutex
	byKey map[api.Key]*api.WorkflowDefinition
	order []api.Key
}

func newWorkflowRegistry() *workflowRegistry {
	return &workflowRegistry{
		byKey: make(map[api.Key]*api.WorkflowDefinition),
	}
}

// RegisterModule validates every definition first and only then stores
// them, so a bad module registers nothing.
func (r *workflowRegistry) RegisterModule(module string, defs []api.WorkflowDefinition) error {
	if module == "" {
		return fmt.Errorf("%w: module name is required", api.ErrInvalidDefinition)
	}

	staged := make([]*api.WorkflowDefinition, 0, len(defs))
	seen := make(map[api.Key]struct{}, len(defs))
	for i := range defs {
		def := defs[i]
		def.Module = module
		if err := def.Validate(); err != nil {
			return fmt.Errorf("module %q: %w", module, err)
		}
		if _, dup := seen[def.Key()]; dup {
			return fmt.Errorf("%w: %s", api.ErrDuplicateWorkflow, def.Key())
		}
		seen[def.Key()] = struct{}{}

		// Definitions are immutable once registered; keep a private copy
		// of the stage slice.
		def.Stages = append([]api.StageDefinition(nil), def.Stages...)
		staged = append(staged, &def)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range staged {
		if _, exists := r.byKey[def.Key()]; exists {
			return fmt.Errorf("%w: %s", api.ErrDuplicateWorkflow, def.Key())
		}
	}
	for _, def := range staged {
		r.byKey[def.Key()] = def
		r.order = append(r.order, def.Key())
	}
	return nil
}

// Get returns the definition for key, or false.
func (r *workflowRegistry) Get(key api.Key) (*api.WorkflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byKey[key]
	return def, ok
}

// MustGet panics when key was never registered.
func (r *workflowRegistry) MustGet(key api.Key) *api.WorkflowDefinition {
	def, ok := r.Get(key)
	if !ok {
		panic(fmt.Errorf("%w: %s", api.ErrUnknownWorkflow, key))
	}
	return def
}

// Keys returns every registered key in registration order.
func (r *workflowRegistry) Keys() []api.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]api.Key(nil), r.order...)
}
