package module

import (
	"fmt"
	"sort"
	"sync"
)

// Config carries step-specific settings from a checklist definition, for
// example the prompt name for a drafting step. The runtime never inspects it.
type Config map[string]any

// Factory builds a step from its checklist configuration.
type Factory func(Config) (Module, error)

// Registry maps step IDs to factories. The built-in onboarding steps register
// here at startup and checklist definitions resolve against it.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a step factory. Duplicate IDs are an error.
func (r *Registry) Register(id string, factory Factory) error {
	if id == "" {
		return fmt.Errorf("module: id is required")
	}
	if factory == nil {
		return fmt.Errorf("module: factory is required for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("module: %s already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve builds the step for an ID and validates its Info block.
func (r *Registry) Resolve(id string, cfg Config) (Module, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("module: unknown id %s", id)
	}
	module, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	if err := module.Info().Validate(); err != nil {
		return nil, err
	}
	return module, nil
}

// IDs lists registered step identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
