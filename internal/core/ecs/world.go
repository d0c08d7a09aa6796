package ecs

import "fmt"

// World is the top-level ECS container. It owns the entity pool, the component
// registry, and a deferred destruction queue flushed by CleanupSystem each tick.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Detach destroys an entity right away and hands back its components so
// the caller can Revive it later.
func (w *World) Detach(id EntityID) (Components, error) {
	if !w.pool.Alive(id) {
		return nil, fmt.Errorf("detach %s: entity not alive", id)
	}
	comps := w.registry.Detach(id)
	w.pool.Destroy(id)
	return comps, nil
}

// Revive recreates a detached entity under its original ID.
func (w *World) Revive(id EntityID, comps Components) error {
	if err := w.pool.Revive(id); err != nil {
		return err
	}
	if err := w.registry.Attach(id, comps); err != nil {
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		return err
	}
	return nil
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// PendingDestruction returns how many entities wait for the next flush.
func (w *World) PendingDestruction() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys all queued entities and clears their components.
// Called by CleanupSystem at the end of each tick.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if !w.pool.Alive(id) {
			continue
		}
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		n++
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}
