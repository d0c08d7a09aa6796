package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/l1jgo/undoredo/internal/core/undo"
	"github.com/l1jgo/undoredo/internal/edit"
	"github.com/l1jgo/undoredo/internal/patch"
	"github.com/l1jgo/undoredo/internal/scene"
)

var ErrNoScripting = errors.New("scripting is not enabled")

func parseInt32(s, what string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", what, s, err)
	}
	return int32(n), nil
}

func parseInt16(s, what string) (int16, error) {
	n, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", what, s, err)
	}
	return int16(n), nil
}

func parseXY(xs, ys string) (int32, int32, error) {
	x, err := parseInt32(xs, "x")
	if err != nil {
		return 0, 0, err
	}
	y, err := parseInt32(ys, "y")
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func buildSpawn(args []string, d *Deps) (Edit, error) {
	x, y, err := parseXY(args[1], args[2])
	if err != nil {
		return Edit{}, err
	}
	obj := scene.Object{Name: args[0], X: x, Y: y}
	if len(args) >= 5 {
		if obj.HP, err = parseInt16(args[3], "hp"); err != nil {
			return Edit{}, err
		}
		if obj.MaxHP, err = parseInt16(args[4], "max_hp"); err != nil {
			return Edit{}, err
		}
		if obj.HP > obj.MaxHP {
			return Edit{}, fmt.Errorf("spawn %s: %w", obj.Name, edit.ErrHPTooHigh)
		}
		obj.HasHealth = true
	}
	return Edit{Label: "spawn " + obj.Name, Ops: []edit.Op{edit.Spawn(obj, nil)}}, nil
}

func buildDespawn(args []string, d *Deps) (Edit, error) {
	id, err := d.entity(args[0])
	if err != nil {
		return Edit{}, err
	}
	return Edit{Label: "despawn " + args[0], Ops: []edit.Op{edit.Despawn(id)}}, nil
}

func buildMove(args []string, d *Deps) (Edit, error) {
	id, err := d.entity(args[0])
	if err != nil {
		return Edit{}, err
	}
	dx, dy, err := parseXY(args[1], args[2])
	if err != nil {
		return Edit{}, err
	}
	return Edit{
		Label: fmt.Sprintf("move %s (%+d,%+d)", args[0], dx, dy),
		Ops:   []edit.Op{edit.Move(id, dx, dy)},
	}, nil
}

// buildDrag is move with a merge key per entity, so a run of drags on the
// same object undoes in one step.
func buildDrag(args []string, d *Deps) (Edit, error) {
	ed, err := buildMove(args, d)
	if err != nil {
		return Edit{}, err
	}
	id, _ := d.entity(args[0])
	ed.Label = "drag " + args[0]
	ed.Key = undo.MergeKey("drag:" + id.String())
	return ed, nil
}

func buildPlace(args []string, d *Deps) (Edit, error) {
	id, err := d.entity(args[0])
	if err != nil {
		return Edit{}, err
	}
	x, y, err := parseXY(args[1], args[2])
	if err != nil {
		return Edit{}, err
	}
	heading := edit.KeepHeading
	if len(args) > 3 {
		if heading, err = parseInt16(args[3], "heading"); err != nil {
			return Edit{}, err
		}
		if heading < 0 || heading > 7 {
			return Edit{}, fmt.Errorf("heading %d: want 0-7", heading)
		}
	}
	return Edit{
		Label: fmt.Sprintf("place %s (%d,%d)", args[0], x, y),
		Ops:   []edit.Op{edit.Place(id, x, y, heading)},
	}, nil
}

func buildRename(args []string, d *Deps) (Edit, error) {
	id, err := d.entity(args[0])
	if err != nil {
		return Edit{}, err
	}
	name := strings.Join(args[1:], " ")
	return Edit{Label: "rename " + args[0] + " → " + name, Ops: []edit.Op{edit.Rename(id, name)}}, nil
}

func buildHP(args []string, d *Deps) (Edit, error) {
	id, err := d.entity(args[0])
	if err != nil {
		return Edit{}, err
	}
	hp, err := parseInt16(args[1], "hp")
	if err != nil {
		return Edit{}, err
	}
	return Edit{Label: fmt.Sprintf("hp %s %d", args[0], hp), Ops: []edit.Op{edit.SetHP(id, hp)}}, nil
}

func buildTag(args []string, d *Deps) (Edit, error) {
	id, err := d.entity(args[0])
	if err != nil {
		return Edit{}, err
	}
	if len(args) == 2 {
		return Edit{Label: "tag " + args[0] + " " + args[1], Ops: []edit.Op{edit.Tag(id, args[1])}}, nil
	}
	ops := make([]edit.Op, 0, len(args)-1)
	for _, tag := range args[1:] {
		ops = append(ops, edit.Tag(id, tag))
	}
	label := "tag " + args[0] + " " + strings.Join(args[1:], ",")
	return Edit{Label: label, Ops: []edit.Op{undo.Group("tags", ops...)}}, nil
}

// buildSet edits any exported component field through reflection.
func buildSet(args []string, d *Deps) (Edit, error) {
	id, err := d.entity(args[0])
	if err != nil {
		return Edit{}, err
	}
	kind, field, value := strings.ToLower(args[1]), args[2], strings.Join(args[3:], " ")

	reg := d.Scene.World.Registry()
	store, ok := reg.Store(kind)
	if !ok {
		return Edit{}, fmt.Errorf("unknown component %q (have %s): %w", kind, strings.Join(reg.Kinds(), ", "), ErrUsage)
	}
	ptr, ok := store.Lookup(id)
	if !ok {
		return Edit{}, fmt.Errorf("%s has no %s component: %w", args[0], kind, edit.ErrNoEntity)
	}
	resolve := func(s *scene.Scene) (any, error) {
		st, ok := s.World.Registry().Store(kind)
		if !ok {
			return nil, fmt.Errorf("unknown component %q", kind)
		}
		v, ok := st.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%s has no %s component: %w", id, kind, edit.ErrNoEntity)
		}
		return v, nil
	}
	op, change, err := patch.Field("set", ptr, field, value, resolve)
	if err != nil {
		return Edit{}, err
	}
	return Edit{
		Label: fmt.Sprintf("set %s %s.%s", args[0], kind, change),
		Ops:   []edit.Op{op},
	}, nil
}

func buildScript(args []string, d *Deps) (Edit, error) {
	if d.Scripting == nil {
		return Edit{}, ErrNoScripting
	}
	id, err := d.entity(args[1])
	if err != nil {
		return Edit{}, err
	}
	op, err := d.Scripting.Op(args[0], id.String(), args[2:])
	if err != nil {
		return Edit{}, err
	}
	return Edit{Label: "script " + args[0] + " " + args[1], Ops: []edit.Op{op}}, nil
}
