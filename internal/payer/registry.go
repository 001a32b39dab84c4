package payer

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps payer codes to adapters. The orchestrator resolves the
// adapter for a request here instead of branching on payer identity.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own payer code. Registering the same
// code twice is a wiring bug and returns an error.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("payer: cannot register nil adapter")
	}
	return r.RegisterAs(a.Name(), a)
}

// RegisterAs adds an adapter under an explicit payer code. A clearinghouse
// adapter serves many commercial payers, so the same instance may be
// registered under several codes.
func (r *Registry) RegisterAs(code string, a Adapter) error {
	if a == nil {
		return fmt.Errorf("payer: cannot register nil adapter")
	}
	if code == "" {
		return fmt.Errorf("payer: adapter has empty payer code")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[code]; exists {
		return fmt.Errorf("payer: adapter %q already registered", code)
	}
	r.adapters[code] = a
	return nil
}

// Get resolves the adapter for a payer code.
func (r *Registry) Get(code string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("payer: no adapter registered for payer %q", code)
	}
	return a, nil
}

// Codes returns all registered payer codes, sorted for stable listings.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
