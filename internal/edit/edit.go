// Package edit builds undoable operations for the common scene edits.
// Each constructor returns an operation that captures whatever it needs to
// revert itself the first time its forward procedure runs.
package edit

import (
	"errors"
	"fmt"
	"slices"

	"github.com/l1jgo/undoredo/internal/component"
	"github.com/l1jgo/undoredo/internal/core/ecs"
	"github.com/l1jgo/undoredo/internal/core/undo"
	"github.com/l1jgo/undoredo/internal/scene"
)

// Op is an operation over the scene.
type Op = undo.Operation[*scene.Scene]

var (
	ErrNoEntity  = errors.New("entity not found")
	ErrNoHealth  = errors.New("entity has no health component")
	ErrHPTooHigh = errors.New("hp above max hp")
)

// Spawn creates an object. Redo brings it back under the same entity ID so
// later operations that captured the ID keep working.
func Spawn(obj scene.Object, out *ecs.EntityID) Op {
	var id ecs.EntityID
	return undo.NewOperation(
		func(s *scene.Scene) error {
			if id.IsZero() {
				id = s.Spawn(obj)
			} else if err := s.SpawnAs(id, obj); err != nil {
				return err
			}
			if out != nil {
				*out = id
			}
			return nil
		},
		func(s *scene.Scene) error {
			if _, err := s.Despawn(id); err != nil {
				return fmt.Errorf("unspawn %s: %w", id, err)
			}
			return nil
		},
	).Named("spawn")
}

// Despawn removes an entity and keeps its components for the inverse.
func Despawn(id ecs.EntityID) Op {
	var saved ecs.Components
	return undo.NewOperation(
		func(s *scene.Scene) error {
			comps, err := s.Despawn(id)
			if err != nil {
				return fmt.Errorf("despawn: %w", err)
			}
			saved = comps
			return nil
		},
		func(s *scene.Scene) error {
			return s.Restore(id, saved)
		},
	).Named("despawn")
}

// Move shifts an entity by a relative offset.
func Move(id ecs.EntityID, dx, dy int32) Op {
	shift := func(s *scene.Scene, sx, sy int32) error {
		t, err := transform(s, id)
		if err != nil {
			return err
		}
		t.X += sx
		t.Y += sy
		return nil
	}
	return undo.NewOperation(
		func(s *scene.Scene) error { return shift(s, dx, dy) },
		func(s *scene.Scene) error { return shift(s, -dx, -dy) },
	).Named("move")
}

// KeepHeading makes Place leave the heading as it finds it.
const KeepHeading int16 = -1

// Place moves an entity to an absolute tile and turns it to heading.
func Place(id ecs.EntityID, x, y int32, heading int16) Op {
	var prev component.Transform
	return undo.NewOperation(
		func(s *scene.Scene) error {
			t, err := transform(s, id)
			if err != nil {
				return err
			}
			prev = *t
			t.X, t.Y = x, y
			if heading != KeepHeading {
				t.Heading = heading
			}
			return nil
		},
		func(s *scene.Scene) error {
			t, err := transform(s, id)
			if err != nil {
				return err
			}
			*t = prev
			return nil
		},
	).Named("place")
}

// Rename changes the display name.
func Rename(id ecs.EntityID, name string) Op {
	var prev string
	return undo.NewOperation(
		func(s *scene.Scene) error {
			n, ok := s.Names.Get(id)
			if !ok || !s.World.Alive(id) {
				return fmt.Errorf("rename %s: %w", id, ErrNoEntity)
			}
			prev = n.Value
			n.Value = name
			return nil
		},
		func(s *scene.Scene) error {
			n, ok := s.Names.Get(id)
			if !ok {
				return fmt.Errorf("rename %s: %w", id, ErrNoEntity)
			}
			n.Value = prev
			return nil
		},
	).Named("rename")
}

// SetHP sets hit points, which must not exceed MaxHP.
func SetHP(id ecs.EntityID, hp int16) Op {
	var prev int16
	return undo.NewOperation(
		func(s *scene.Scene) error {
			h, ok := s.Healths.Get(id)
			if !ok {
				return fmt.Errorf("set hp %s: %w", id, ErrNoHealth)
			}
			if hp > h.MaxHP {
				return fmt.Errorf("set hp %s to %d (max %d): %w", id, hp, h.MaxHP, ErrHPTooHigh)
			}
			prev = h.HP
			h.HP = hp
			return nil
		},
		func(s *scene.Scene) error {
			h, ok := s.Healths.Get(id)
			if !ok {
				return fmt.Errorf("set hp %s: %w", id, ErrNoHealth)
			}
			h.HP = prev
			return nil
		},
	).Named("hp")
}

// Tag adds a tag. Adding a tag the entity already has is a no-op both ways.
func Tag(id ecs.EntityID, tag string) Op {
	var added, created bool
	return undo.NewOperation(
		func(s *scene.Scene) error {
			if !s.World.Alive(id) {
				return fmt.Errorf("tag %s: %w", id, ErrNoEntity)
			}
			tg, ok := s.Tags.Get(id)
			if !ok {
				tg = &component.Tags{}
				s.Tags.Set(id, tg)
			}
			created = !ok
			added = !slices.Contains(tg.Values, tag)
			if added {
				tg.Values = append(tg.Values, tag)
			}
			return nil
		},
		func(s *scene.Scene) error {
			tg, ok := s.Tags.Get(id)
			if !ok {
				return nil
			}
			if added {
				if i := slices.Index(tg.Values, tag); i >= 0 {
					tg.Values = slices.Delete(tg.Values, i, i+1)
				}
			}
			if created {
				s.Tags.Remove(id)
			}
			return nil
		},
	).Named("tag")
}

func transform(s *scene.Scene, id ecs.EntityID) (*component.Transform, error) {
	if !s.World.Alive(id) {
		return nil, fmt.Errorf("%s: %w", id, ErrNoEntity)
	}
	t, ok := s.Transforms.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s has no transform: %w", id, ErrNoEntity)
	}
	return t, nil
}
