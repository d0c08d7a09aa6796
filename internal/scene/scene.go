// Package scene is the game-object state that undoable operations mutate:
// an ECS world plus the typed component stores of the editor.
package scene

import (
	"fmt"
	"slices"
	"strings"

	"github.com/l1jgo/undoredo/internal/component"
	"github.com/l1jgo/undoredo/internal/core/ecs"
)

// Scene owns the world and its component stores. Accessed only from the
// game loop goroutine, no locks.
type Scene struct {
	World      *ecs.World
	Names      *ecs.PtrComponentStore[component.Name]
	Transforms *ecs.PtrComponentStore[component.Transform]
	Healths    *ecs.PtrComponentStore[component.Health]
	Tags       *ecs.PtrComponentStore[component.Tags]
}

// Object is a flat description of one game object, used to spawn entities
// and to carry them through scene files and snapshots.
type Object struct {
	Name      string
	X         int32
	Y         int32
	MapID     int16
	Heading   int16
	HP        int16
	MaxHP     int16
	Tags      []string
	HasHealth bool
}

func New() *Scene {
	s := &Scene{
		World:      ecs.NewWorld(),
		Names:      ecs.NewPtrComponentStore[component.Name](component.KindName),
		Transforms: ecs.NewPtrComponentStore[component.Transform](component.KindTransform),
		Healths:    ecs.NewPtrComponentStore[component.Health](component.KindHealth),
		Tags:       ecs.NewPtrComponentStore[component.Tags](component.KindTags),
	}
	reg := s.World.Registry()
	reg.Register(s.Names)
	reg.Register(s.Transforms)
	reg.Register(s.Healths)
	reg.Register(s.Tags)
	return s
}

// Spawn creates an entity from obj.
func (s *Scene) Spawn(obj Object) ecs.EntityID {
	id := s.World.CreateEntity()
	s.attach(id, obj)
	return id
}

// SpawnAs recreates an entity under a previously used ID.
func (s *Scene) SpawnAs(id ecs.EntityID, obj Object) error {
	if err := s.World.Pool().Revive(id); err != nil {
		return err
	}
	s.attach(id, obj)
	return nil
}

func (s *Scene) attach(id ecs.EntityID, obj Object) {
	s.Names.Set(id, &component.Name{Value: obj.Name})
	s.Transforms.Set(id, &component.Transform{X: obj.X, Y: obj.Y, MapID: obj.MapID, Heading: obj.Heading})
	if obj.HasHealth || obj.MaxHP > 0 {
		s.Healths.Set(id, &component.Health{HP: obj.HP, MaxHP: obj.MaxHP})
	}
	if len(obj.Tags) > 0 {
		s.Tags.Set(id, &component.Tags{Values: slices.Clone(obj.Tags)})
	}
}

// Despawn removes an entity immediately and returns its components so the
// removal can be reverted with Restore.
func (s *Scene) Despawn(id ecs.EntityID) (ecs.Components, error) {
	return s.World.Detach(id)
}

// Restore revives an entity removed by Despawn.
func (s *Scene) Restore(id ecs.EntityID, comps ecs.Components) error {
	return s.World.Revive(id, comps)
}

// Describe flattens an entity into an Object.
func (s *Scene) Describe(id ecs.EntityID) (Object, error) {
	if !s.World.Alive(id) {
		return Object{}, fmt.Errorf("entity %s not found", id)
	}
	var obj Object
	if n, ok := s.Names.Get(id); ok {
		obj.Name = n.Value
	}
	if t, ok := s.Transforms.Get(id); ok {
		obj.X, obj.Y, obj.MapID, obj.Heading = t.X, t.Y, t.MapID, t.Heading
	}
	if h, ok := s.Healths.Get(id); ok {
		obj.HP, obj.MaxHP, obj.HasHealth = h.HP, h.MaxHP, true
	}
	if tg, ok := s.Tags.Get(id); ok {
		obj.Tags = slices.Clone(tg.Values)
	}
	return obj, nil
}

// Entities lists live named entities ordered by index.
func (s *Scene) Entities() []ecs.EntityID {
	return ecs.IDs(s.Names)
}

// Objects flattens every named entity, in Entities order.
func (s *Scene) Objects() []Object {
	ids := s.Entities()
	out := make([]Object, 0, len(ids))
	for _, id := range ids {
		obj, err := s.Describe(id)
		if err != nil {
			continue
		}
		out = append(out, obj)
	}
	return out
}

// Find resolves an entity by name (case-insensitive) or by "index:generation".
func (s *Scene) Find(ref string) (ecs.EntityID, bool) {
	for _, id := range s.Entities() {
		if id.String() == ref {
			return id, true
		}
		if n, ok := s.Names.Get(id); ok && strings.EqualFold(n.Value, ref) {
			return id, true
		}
	}
	return 0, false
}

// At returns the entities standing on the given tile of a map.
func (s *Scene) At(mapID int16, x, y int32) []ecs.EntityID {
	var ids []ecs.EntityID
	ecs.Each2(s.Names, s.Transforms, func(id ecs.EntityID, _ *component.Name, t *component.Transform) {
		if t.MapID == mapID && t.X == x && t.Y == y {
			ids = append(ids, id)
		}
	})
	slices.Sort(ids)
	return ids
}

// Reset destroys every entity. Used when a whole scene is loaded.
func (s *Scene) Reset() {
	for _, id := range s.Entities() {
		_, _ = s.World.Detach(id)
	}
}

// Load replaces the scene content with objs.
func (s *Scene) Load(objs []Object) []ecs.EntityID {
	s.Reset()
	ids := make([]ecs.EntityID, len(objs))
	for i, obj := range objs {
		ids[i] = s.Spawn(obj)
	}
	return ids
}

// Count returns the number of live entities.
func (s *Scene) Count() int {
	return s.World.Pool().Count()
}
