package ecs

import "fmt"

// Store is implemented by all component stores so the Registry can move an
// entity's data in and out of every store as a unit.
type Store interface {
	Kind() string
	Remove(id EntityID)
	// Lookup returns the component pointer as an untyped value.
	Lookup(id EntityID) (any, bool)
	// Take removes the component and returns a detached copy of its value.
	Take(id EntityID) (any, bool)
	// Put stores a value previously returned by Take.
	Put(id EntityID, v any) error
}

// PtrComponentStore is a generic typed map store for ECS components.
type PtrComponentStore[T any] struct {
	kind string
	data map[EntityID]*T
}

func NewPtrComponentStore[T any](kind string) *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		kind: kind,
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Kind() string { return s.kind }

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

func (s *PtrComponentStore[T]) Lookup(id EntityID) (any, bool) {
	c, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return c, true
}

func (s *PtrComponentStore[T]) Take(id EntityID) (any, bool) {
	c, ok := s.data[id]
	if !ok {
		return nil, false
	}
	delete(s.data, id)
	return *c, true
}

func (s *PtrComponentStore[T]) Put(id EntityID, v any) error {
	c, ok := v.(T)
	if !ok {
		return fmt.Errorf("%s store: cannot put %T", s.kind, v)
	}
	s.data[id] = &c
	return nil
}
