package handler

import (
	"context"
	"fmt"
	"io"

	"github.com/l1jgo/undoredo/internal/config"
	"github.com/l1jgo/undoredo/internal/core/ecs"
	"github.com/l1jgo/undoredo/internal/edit"
	"github.com/l1jgo/undoredo/internal/persist"
	"github.com/l1jgo/undoredo/internal/scene"
	"github.com/l1jgo/undoredo/internal/scripting"
	"github.com/l1jgo/undoredo/internal/undoredo"
	"go.uber.org/zap"
)

// SnapshotStore keeps named scene snapshots. *persist.SceneRepo implements it.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, name string, objs []scene.Object) error
	LoadSnapshot(ctx context.Context, name string) ([]scene.Object, error)
	ListSnapshots(ctx context.Context) ([]persist.SnapshotInfo, error)
	DeleteSnapshot(ctx context.Context, name string) error
}

// Deps holds shared dependencies injected into all console handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	History   *undoredo.UndoRedo
	Scene     *scene.Scene
	Scripting *scripting.Engine // nil when no scripts are loaded
	Scenes    SnapshotStore     // nil when the database is disabled
	Out       io.Writer
	Quit      func()
}

func (d *Deps) say(format string, a ...any) {
	fmt.Fprintf(d.Out, format+"\n", a...)
}

func (d *Deps) entity(ref string) (ecs.EntityID, error) {
	id, ok := d.Scene.Find(ref)
	if !ok {
		return 0, fmt.Errorf("%q: %w", ref, edit.ErrNoEntity)
	}
	return id, nil
}

// apply records ed as its own action, or adds its operations to the action
// being built with begin/end.
func (d *Deps) apply(ed Edit) error {
	if label, building := d.History.History().PendingLabel(); building {
		for _, op := range ed.Ops {
			if err := d.History.Add(op); err != nil {
				return err
			}
		}
		d.say("已加入動作 %q: %s", label, ed.Label)
		return nil
	}
	if err := d.History.PushAndApply(ed.Label, ed.Key, ed.Ops...); err != nil {
		return err
	}
	d.say("完成: %s", ed.Label)
	return nil
}

// RegisterAll registers all console commands into the registry.
func RegisterAll(reg *Registry) {
	// Scene edits, recorded in the history
	reg.RegisterEdit([]string{"spawn"}, 3, "spawn <name> <x> <y> [hp max_hp]", buildSpawn)
	reg.RegisterEdit([]string{"despawn", "delete"}, 1, "despawn <entity>", buildDespawn)
	reg.RegisterEdit([]string{"move"}, 3, "move <entity> <dx> <dy>", buildMove)
	reg.RegisterEdit([]string{"drag"}, 3, "drag <entity> <dx> <dy>  (consecutive drags merge)", buildDrag)
	reg.RegisterEdit([]string{"place", "warp"}, 3, "place <entity> <x> <y> [heading]", buildPlace)
	reg.RegisterEdit([]string{"rename"}, 2, "rename <entity> <name...>", buildRename)
	reg.RegisterEdit([]string{"hp"}, 2, "hp <entity> <hp>", buildHP)
	reg.RegisterEdit([]string{"tag"}, 2, "tag <entity> <tag...>", buildTag)
	reg.RegisterEdit([]string{"set"}, 4, "set <entity> <component> <field> <value...>", buildSet)
	reg.RegisterEdit([]string{"script"}, 2, "script <op> <entity> [args...]", buildScript)

	// Action building
	reg.Register([]string{"begin"}, 1, "begin [key=<merge key>] <label...>", cmdBegin)
	reg.Register([]string{"end", "commit"}, 0, "end", cmdEnd)
	reg.Register([]string{"cancel"}, 0, "cancel", cmdCancel)

	// History
	reg.Register([]string{"undo"}, 0, "undo", cmdUndo)
	reg.Register([]string{"redo"}, 0, "redo", cmdRedo)
	reg.Register([]string{"history"}, 0, "history", cmdHistory)
	reg.Register([]string{"clear"}, 0, "clear  (forget history and queue, keep scene)", cmdClear)
	reg.Register([]string{"forget"}, 0, "forget  (drop the redo stack)", cmdForget)
	reg.Register([]string{"limit"}, 1, "limit <n>  (history capacity, 0 = unlimited)", cmdLimit)
	reg.Register([]string{"queue"}, 1, "queue <edit command...>  (applied next tick)", func(args []string, d *Deps) error {
		return cmdQueue(reg, args, d)
	})

	// Scene
	reg.Register([]string{"list", "ls"}, 0, "list", cmdList)
	reg.Register([]string{"kill"}, 1, "kill <entity>  (removed at tick end, not undoable)", cmdKill)
	reg.Register([]string{"scripts"}, 0, "scripts", cmdScripts)
	reg.Register([]string{"export"}, 1, "export <file.yaml>", cmdExport)
	reg.Register([]string{"import"}, 1, "import <file.yaml>", cmdImport)
	reg.Register([]string{"save"}, 1, "save <snapshot>", cmdSave)
	reg.Register([]string{"load"}, 1, "load <snapshot>", cmdLoad)
	reg.Register([]string{"snapshots"}, 0, "snapshots", cmdSnapshots)
	reg.Register([]string{"drop"}, 1, "drop <snapshot>", cmdDrop)

	reg.Register([]string{"help", "?"}, 0, "help", func(_ []string, d *Deps) error {
		for _, u := range reg.Usages() {
			d.say("  %s", u)
		}
		return nil
	})
	reg.Register([]string{"quit", "exit"}, 0, "quit", func(_ []string, d *Deps) error {
		if d.Quit != nil {
			d.Quit()
		}
		return nil
	})
}
