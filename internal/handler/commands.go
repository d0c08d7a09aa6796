package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/l1jgo/undoredo/internal/core/undo"
	"github.com/l1jgo/undoredo/internal/data"
	"github.com/l1jgo/undoredo/internal/scene"
)

var ErrNoDatabase = errors.New("database is not enabled")

// --- action building ---

func cmdBegin(args []string, d *Deps) error {
	var key undo.MergeKey
	if k, ok := strings.CutPrefix(args[0], "key="); ok {
		key = undo.MergeKey(k)
		args = args[1:]
	}
	label := strings.Join(args, " ")
	if label == "" {
		return fmt.Errorf("%w: begin [key=<merge key>] <label...>", ErrUsage)
	}
	if err := d.History.Begin(label, key); err != nil {
		return err
	}
	d.say("開始動作 %q", label)
	return nil
}

func cmdEnd(_ []string, d *Deps) error {
	label, _ := d.History.History().PendingLabel()
	n := d.History.History().PendingLen()
	if err := d.History.Commit(); err != nil {
		return err
	}
	if n == 0 {
		d.say("動作 %q 沒有操作，已捨棄", label)
		return nil
	}
	d.say("動作 %q 已提交 (%d 個操作)", label, n)
	return nil
}

func cmdCancel(_ []string, d *Deps) error {
	if err := d.History.Cancel(); err != nil {
		return err
	}
	d.say("動作已取消")
	return nil
}

// --- history ---

func cmdUndo(_ []string, d *Deps) error {
	label, _ := d.History.History().PeekUndo()
	if err := d.History.Undo(); err != nil {
		return err
	}
	d.say("已復原: %s", label)
	return nil
}

func cmdRedo(_ []string, d *Deps) error {
	label, _ := d.History.History().PeekRedo()
	if err := d.History.Redo(); err != nil {
		return err
	}
	d.say("已重做: %s", label)
	return nil
}

func cmdHistory(_ []string, d *Deps) error {
	h := d.History.History()
	if !h.CanUndo() && !h.CanRedo() && !h.Building() {
		d.say("(沒有歷史)")
		return nil
	}
	i := 0
	for e := range h.All() {
		i++
		mark := "●"
		if e.Undone {
			mark = "○"
		}
		key := ""
		if e.MergeKey != "" {
			key = "[" + string(e.MergeKey) + "]"
		}
		d.say("%3d %s %s %2d ops %s", i, mark, PadRight(e.Label, 32), e.Operations, key)
	}
	if label, ok := h.PendingLabel(); ok {
		d.say("  … %s %2d ops (建構中)", PadRight(label, 32), h.PendingLen())
	}
	limit := "∞"
	if h.Capacity() > 0 {
		limit = strconv.Itoa(h.Capacity())
	}
	d.say("可復原 %d · 可重做 %d · 上限 %s · begin %s", h.DoneLen(), h.UndoneLen(), limit, d.History.Policy())
	return nil
}

func cmdClear(_ []string, d *Deps) error {
	if err := d.History.Clear(); err != nil {
		return err
	}
	d.say("歷史已清除")
	return nil
}

func cmdForget(_ []string, d *Deps) error {
	n := d.History.History().UndoneLen()
	if err := d.History.ClearRedo(); err != nil {
		return err
	}
	d.say("已捨棄 %d 筆重做紀錄", n)
	return nil
}

func cmdLimit(args []string, d *Deps) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("limit %q: %w", args[0], err)
	}
	if err := d.History.History().SetCapacity(n); err != nil {
		return err
	}
	d.say("歷史上限設為 %d", n)
	return nil
}

func cmdQueue(reg *Registry, args []string, d *Deps) error {
	ed, err := reg.Build(strings.Join(args, " "))
	if err != nil {
		return err
	}
	d.History.Enqueue(ed.Label, ed.Key, ed.Ops...)
	d.say("已排入佇列: %s (%d 項等待中)", ed.Label, d.History.QueueLen())
	return nil
}

// --- scene ---

func cmdList(_ []string, d *Deps) error {
	ids := d.Scene.Entities()
	if len(ids) == 0 {
		d.say("(場景是空的)")
		return nil
	}
	for _, id := range ids {
		obj, err := d.Scene.Describe(id)
		if err != nil {
			continue
		}
		hp := ""
		if obj.HasHealth {
			hp = fmt.Sprintf("hp %d/%d", obj.HP, obj.MaxHP)
		}
		d.say("  %-8s %s (%d,%d) map %d %s %s",
			id, PadRight(obj.Name, 16), obj.X, obj.Y, obj.MapID, hp, strings.Join(obj.Tags, ","))
	}
	return nil
}

// cmdKill removes an entity outside the history, the way a GM kill would.
// Operations that still reference it will fail on undo or redo.
func cmdKill(args []string, d *Deps) error {
	id, err := d.entity(args[0])
	if err != nil {
		return err
	}
	d.Scene.World.MarkForDestruction(id)
	d.say("%s 將於本回合結束時移除 (無法復原)", args[0])
	return nil
}

func cmdScripts(_ []string, d *Deps) error {
	if d.Scripting == nil {
		return ErrNoScripting
	}
	for _, n := range d.Scripting.Names() {
		d.say("  %s", n)
	}
	return nil
}

func cmdExport(args []string, d *Deps) error {
	objs := d.Scene.Objects()
	if err := data.WriteSceneFile(args[0], d.Config.Runtime.Name, objs); err != nil {
		return err
	}
	d.say("已匯出 %d 個物件到 %s", len(objs), args[0])
	return nil
}

func cmdImport(args []string, d *Deps) error {
	sd, err := data.LoadSceneFile(args[0])
	if err != nil {
		return err
	}
	replaceScene(d, sd.Objects)
	d.say("已匯入 %s: %d 個物件", args[0], len(sd.Objects))
	return nil
}

func cmdSave(args []string, d *Deps) error {
	if d.Scenes == nil {
		return ErrNoDatabase
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	objs := d.Scene.Objects()
	if err := d.Scenes.SaveSnapshot(ctx, args[0], objs); err != nil {
		return err
	}
	d.say("快照 %q 已儲存 (%d 個物件)", args[0], len(objs))
	return nil
}

func cmdLoad(args []string, d *Deps) error {
	if d.Scenes == nil {
		return ErrNoDatabase
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	objs, err := d.Scenes.LoadSnapshot(ctx, args[0])
	if err != nil {
		return err
	}
	replaceScene(d, objs)
	d.say("快照 %q 已載入 (%d 個物件)", args[0], len(objs))
	return nil
}

func cmdSnapshots(_ []string, d *Deps) error {
	if d.Scenes == nil {
		return ErrNoDatabase
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	list, err := d.Scenes.ListSnapshots(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		d.say("  %s %4d 個物件  %s", PadRight(s.Name, 20), s.Objects, s.SavedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func cmdDrop(args []string, d *Deps) error {
	if d.Scenes == nil {
		return ErrNoDatabase
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Scenes.DeleteSnapshot(ctx, args[0]); err != nil {
		return err
	}
	d.say("快照 %q 已刪除", args[0])
	return nil
}

// replaceScene swaps the whole scene. Recorded operations hold entity IDs
// from the old scene, so the history and queue are dropped with it.
func replaceScene(d *Deps, objs []scene.Object) {
	d.History.ClearQueue()
	_ = d.History.Clear()
	d.Scene.Load(objs)
}
