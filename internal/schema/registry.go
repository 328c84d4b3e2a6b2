package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maintains known schemas by ID.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: map[string]Schema{}}
}

// Register validates and installs a schema. Returns an error if the ID already exists.
func (r *Registry) Register(s Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	normalized := s.Normalized()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[normalized.ID]; exists {
		return fmt.Errorf("schema: %s already registered", normalized.ID)
	}
	r.schemas[normalized.ID] = normalized
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(s Schema) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Resolve returns the schema registered under id.
func (r *Registry) Resolve(id string) (Schema, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	r.mu.RLock()
	s, ok := r.schemas[key]
	r.mu.RUnlock()
	if !ok {
		return Schema{}, fmt.Errorf("schema: unknown id %s", id)
	}
	return s, nil
}

// IDs returns a sorted list of registered schema identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
