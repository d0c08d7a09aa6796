package ecs

import "fmt"

// Components holds the detached component values of one entity, keyed by
// store kind.
type Components map[string]any

// Registry tracks all component stores and supports bulk cleanup on entity destroy.
type Registry struct {
	stores []Store
	byKind map[string]Store
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Store, 0, 16),
		byKind: make(map[string]Store, 16),
	}
}

// Register adds a component store to the registry. Kinds must be unique.
func (r *Registry) Register(store Store) {
	if _, dup := r.byKind[store.Kind()]; dup {
		panic(fmt.Sprintf("ecs: component kind %q registered twice", store.Kind()))
	}
	r.stores = append(r.stores, store)
	r.byKind[store.Kind()] = store
}

// Store returns the store registered under kind.
func (r *Registry) Store(kind string) (Store, bool) {
	s, ok := r.byKind[kind]
	return s, ok
}

// Kinds lists registered kinds in registration order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, len(r.stores))
	for i, s := range r.stores {
		kinds[i] = s.Kind()
	}
	return kinds
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}

// Detach removes the entity from every store and returns what it held.
func (r *Registry) Detach(id EntityID) Components {
	out := make(Components, len(r.stores))
	for _, s := range r.stores {
		if v, ok := s.Take(id); ok {
			out[s.Kind()] = v
		}
	}
	return out
}

// Attach puts detached components back onto an entity.
func (r *Registry) Attach(id EntityID, comps Components) error {
	for kind, v := range comps {
		s, ok := r.byKind[kind]
		if !ok {
			return fmt.Errorf("attach %s: unknown component kind %q", id, kind)
		}
		if err := s.Put(id, v); err != nil {
			return fmt.Errorf("attach %s: %w", id, err)
		}
	}
	return nil
}
