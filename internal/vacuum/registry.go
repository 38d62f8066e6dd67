package vacuum

import (
	"sort"
	"sync"
)

// Registry owns the mapping from vacuum id to entity.
//
// The bridge constructs one entity per configured vacuum at startup and
// registers it here; MQTT handlers, the HTTP API, and the metrics
// collector all resolve entities through the registry.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Register adds an entity. Registering the same id twice replaces the
// earlier entity; configuration validation guarantees unique ids.
func (r *Registry) Register(e *Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[e.ID()] = e
}

// Get returns the entity for the given id.
func (r *Registry) Get(id string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// List returns all entities ordered by id.
func (r *Registry) List() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID() < entities[j].ID()
	})
	return entities
}

// Count returns the number of registered entities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
