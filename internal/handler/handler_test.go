package handler

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/l1jgo/undoredo/internal/config"
	"github.com/l1jgo/undoredo/internal/core/event"
	"github.com/l1jgo/undoredo/internal/core/undo"
	"github.com/l1jgo/undoredo/internal/persist"
	"github.com/l1jgo/undoredo/internal/scene"
	"github.com/l1jgo/undoredo/internal/undoredo"
	"go.uber.org/zap/zaptest"
)

type console struct {
	reg  *Registry
	deps *Deps
	bus  *event.Bus
	out  *bytes.Buffer
}

func newConsole(t *testing.T) *console {
	t.Helper()
	cfg := config.Default()
	log := zaptest.NewLogger(t)
	bus := event.NewBus()
	sc := scene.New()
	u, err := undoredo.New(sc, bus, cfg.History, cfg.Keys, log)
	if err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	deps := &Deps{Config: cfg, Log: log, History: u, Scene: sc, Out: out}
	reg := NewRegistry(deps)
	RegisterAll(reg)
	return &console{reg: reg, deps: deps, bus: bus, out: out}
}

func (c *console) run(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if err := c.reg.Dispatch(l); err != nil {
			t.Fatalf("%q: %v", l, err)
		}
	}
}

func (c *console) obj(t *testing.T, ref string) scene.Object {
	t.Helper()
	id, ok := c.deps.Scene.Find(ref)
	if !ok {
		t.Fatalf("%s not found", ref)
	}
	obj, err := c.deps.Scene.Describe(id)
	if err != nil {
		t.Fatal(err)
	}
	return obj
}

func TestEditUndoRedo(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn slime 10 10 5 20", "move slime 2 3", "hp slime 20", "tag slime boss")

	if obj := c.obj(t, "slime"); obj.X != 12 || obj.Y != 13 || obj.HP != 20 || len(obj.Tags) != 1 {
		t.Fatalf("slime = %+v", obj)
	}
	c.run(t, "undo", "undo", "undo")
	if obj := c.obj(t, "slime"); obj.X != 10 || obj.HP != 5 || len(obj.Tags) != 0 {
		t.Fatalf("after undo: %+v", obj)
	}
	c.run(t, "undo")
	if _, ok := c.deps.Scene.Find("slime"); ok {
		t.Fatal("undoing the spawn should remove slime")
	}
	c.run(t, "redo", "redo")
	if obj := c.obj(t, "slime"); obj.X != 12 {
		t.Errorf("after redo: %+v", obj)
	}
}

func TestDragMerges(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn crate 0 0", "drag crate 1 0", "drag crate 1 0", "drag crate 0 1")
	h := c.deps.History.History()
	if h.DoneLen() != 2 {
		t.Fatalf("DoneLen() = %d, want spawn + one drag", h.DoneLen())
	}
	c.run(t, "undo")
	if obj := c.obj(t, "crate"); obj.X != 0 || obj.Y != 0 {
		t.Errorf("crate = %+v", obj)
	}
}

func TestBeginEndGroupsCommands(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn crate 0 0", "begin shove twice", "move crate 1 0", "move crate 1 0")
	if obj := c.obj(t, "crate"); obj.X != 0 {
		t.Fatal("operations must not run before end")
	}
	c.run(t, "end")
	if obj := c.obj(t, "crate"); obj.X != 2 {
		t.Fatalf("X = %d after end", obj.X)
	}
	if label, _ := c.deps.History.History().PeekUndo(); label != "shove twice" {
		t.Errorf("PeekUndo = %q", label)
	}
	c.run(t, "undo")
	if obj := c.obj(t, "crate"); obj.X != 0 {
		t.Errorf("X = %d after undo", obj.X)
	}

	c.run(t, "begin nothing", "cancel")
	if c.deps.History.History().Building() {
		t.Error("cancel should leave the history idle")
	}
	if err := c.reg.Dispatch("end"); !errors.Is(err, undo.ErrNotBuilding) {
		t.Errorf("end while idle = %v", err)
	}
}

func TestSetUsesReflection(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn guard 0 0 10 50", "set guard health hp 42", "set guard transform map_id 4")
	obj := c.obj(t, "guard")
	if obj.HP != 42 || obj.MapID != 4 {
		t.Fatalf("guard = %+v", obj)
	}
	c.run(t, "undo", "undo")
	obj = c.obj(t, "guard")
	if obj.HP != 10 || obj.MapID != 0 {
		t.Errorf("after undo: %+v", obj)
	}

	if err := c.reg.Dispatch("set guard health nope 1"); err == nil {
		t.Error("unknown field should fail")
	}
	if err := c.reg.Dispatch("set guard armor ac 1"); err == nil {
		t.Error("unknown component should fail")
	}
}

func TestDispatchErrors(t *testing.T) {
	c := newConsole(t)
	if err := c.reg.Dispatch("dance"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("dance = %v", err)
	}
	if err := c.reg.Dispatch("move"); !errors.Is(err, ErrUsage) {
		t.Errorf("move = %v", err)
	}
	if err := c.reg.Dispatch("move ghost 1 1"); err == nil {
		t.Error("missing entity should fail")
	}
	if err := c.reg.Dispatch("undo"); !errors.Is(err, undo.ErrNothingToUndo) {
		t.Errorf("undo = %v", err)
	}
	if err := c.reg.Dispatch("save x"); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("save = %v", err)
	}
	if err := c.reg.Dispatch("script heal x"); !errors.Is(err, ErrNoScripting) {
		t.Errorf("script = %v", err)
	}
	if err := c.reg.Dispatch("queue undo"); !errors.Is(err, ErrNotEdit) {
		t.Errorf("queue undo = %v", err)
	}
	if err := c.reg.Dispatch("   "); err != nil {
		t.Errorf("blank line = %v", err)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	c := newConsole(t)
	c.reg.Register([]string{"boom"}, 0, "boom", func([]string, *Deps) error { panic("bad handler") })
	err := c.reg.Dispatch("boom")
	if err == nil || !strings.Contains(err.Error(), "bad handler") {
		t.Errorf("Dispatch(boom) = %v", err)
	}
}

func TestQueueAndKeyBindingsAreDeferred(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn crate 0 0", "queue move crate 5 0")
	if obj := c.obj(t, "crate"); obj.X != 0 {
		t.Fatal("queued move ran early")
	}
	c.deps.History.Update()
	if obj := c.obj(t, "crate"); obj.X != 5 {
		t.Fatalf("X = %d after update", obj.X)
	}

	c.run(t, "ctrl+z")
	if obj := c.obj(t, "crate"); obj.X != 5 {
		t.Fatal("key binding must not undo synchronously")
	}
	c.bus.SwapBuffers()
	c.bus.DispatchAll()
	c.deps.History.Update()
	if obj := c.obj(t, "crate"); obj.X != 0 {
		t.Errorf("X = %d after ctrl+z tick", obj.X)
	}
}

func TestKillIsDeferredToCleanup(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn crate 0 0", "kill crate")
	if c.deps.Scene.World.PendingDestruction() != 1 {
		t.Fatal("kill should queue destruction")
	}
	c.deps.Scene.World.FlushDestroyQueue()
	if _, ok := c.deps.Scene.Find("crate"); ok {
		t.Error("crate should be gone after flush")
	}
}

func TestExportImport(t *testing.T) {
	c := newConsole(t)
	path := filepath.Join(t.TempDir(), "scene.yaml")
	c.run(t, "spawn 守衛 1 2 30 30", "spawn crate 3 4", "export "+path, "despawn crate")

	c.run(t, "import "+path)
	if c.deps.History.History().CanUndo() {
		t.Error("import should drop the history")
	}
	if obj := c.obj(t, "crate"); obj.X != 3 || obj.Y != 4 {
		t.Errorf("crate = %+v", obj)
	}
	if obj := c.obj(t, "守衛"); obj.HP != 30 {
		t.Errorf("守衛 = %+v", obj)
	}
}

func TestHistoryListing(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn crate 0 0", "drag crate 1 0", "undo")
	c.out.Reset()
	c.run(t, "history")
	out := c.out.String()
	if !strings.Contains(out, "● spawn crate") || !strings.Contains(out, "○ drag crate") {
		t.Errorf("history output:\n%s", out)
	}
	if !strings.Contains(out, "[drag:") {
		t.Errorf("merge key missing:\n%s", out)
	}
}

func TestLimitEvicts(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn a 0 0", "spawn b 0 0", "spawn c 0 0", "limit 2")
	if c.deps.History.History().DoneLen() != 2 {
		t.Errorf("DoneLen() = %d", c.deps.History.History().DoneLen())
	}
}

func TestPadRight(t *testing.T) {
	if w := DisplayWidth("守衛ab"); w != 6 {
		t.Errorf("DisplayWidth = %d, want 6", w)
	}
	if got := PadRight("守衛", 6); got != "守衛  " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadRight("toolong", 3); got != "toolong" {
		t.Errorf("PadRight = %q", got)
	}
}

func TestSetInsideActionSeesEarlierEdits(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn slime 0 0 100 100", "begin heal", "hp slime 50", "set slime health hp 100", "end")
	if obj := c.obj(t, "slime"); obj.HP != 100 {
		t.Fatalf("HP = %d after end, want 100", obj.HP)
	}
	c.run(t, "undo")
	if obj := c.obj(t, "slime"); obj.HP != 100 {
		t.Errorf("HP = %d after undo, want 100", obj.HP)
	}
	c.run(t, "redo")
	if obj := c.obj(t, "slime"); obj.HP != 100 {
		t.Errorf("HP = %d after redo, want 100", obj.HP)
	}
}

func TestQueuedSetRevertsToValueItReplaced(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn slime 0 0 100 100", "queue set slime health hp 70", "hp slime 50")
	c.deps.History.Update()
	if obj := c.obj(t, "slime"); obj.HP != 70 {
		t.Fatalf("HP = %d after update, want 70", obj.HP)
	}
	c.run(t, "undo")
	if obj := c.obj(t, "slime"); obj.HP != 50 {
		t.Errorf("HP = %d after undo, want 50", obj.HP)
	}
	c.run(t, "undo")
	if obj := c.obj(t, "slime"); obj.HP != 100 {
		t.Errorf("HP = %d after second undo, want 100", obj.HP)
	}
}

func TestPlaceWithoutHeadingKeepsCurrentOne(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn crate 0 0", "begin walk", "place crate 1 1 6", "place crate 2 2", "end")
	if obj := c.obj(t, "crate"); obj.X != 2 || obj.Heading != 6 {
		t.Errorf("crate = %+v, want x=2 heading=6", obj)
	}
}

func TestUnknownComponentListsKinds(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn guard 0 0")
	err := c.reg.Dispatch("set guard armor ac 1")
	if !errors.Is(err, ErrUsage) || !strings.Contains(err.Error(), "transform") {
		t.Errorf("set unknown component = %v", err)
	}
}

func TestForgetDropsRedo(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn crate 0 0", "move crate 1 0", "undo", "forget")
	if c.deps.History.History().CanRedo() {
		t.Fatal("forget should drop the redo stack")
	}
	if err := c.reg.Dispatch("redo"); !errors.Is(err, undo.ErrNothingToRedo) {
		t.Errorf("redo = %v", err)
	}
	if !c.deps.History.History().CanUndo() {
		t.Error("forget must keep the done stack")
	}
}

func TestClearDropsQueue(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn crate 0 0", "queue move crate 5 0", "clear")
	c.deps.History.Update()
	if obj := c.obj(t, "crate"); obj.X != 0 {
		t.Errorf("X = %d, queued move survived clear", obj.X)
	}
}

type memSnapshots map[string][]scene.Object

func (m memSnapshots) SaveSnapshot(_ context.Context, name string, objs []scene.Object) error {
	m[name] = objs
	return nil
}

func (m memSnapshots) LoadSnapshot(_ context.Context, name string) ([]scene.Object, error) {
	objs, ok := m[name]
	if !ok {
		return nil, persist.ErrSnapshotNotFound
	}
	return objs, nil
}

func (m memSnapshots) ListSnapshots(context.Context) ([]persist.SnapshotInfo, error) {
	var out []persist.SnapshotInfo
	for name, objs := range m {
		out = append(out, persist.SnapshotInfo{Name: name, Objects: int32(len(objs))})
	}
	return out, nil
}

func (m memSnapshots) DeleteSnapshot(_ context.Context, name string) error {
	if _, ok := m[name]; !ok {
		return persist.ErrSnapshotNotFound
	}
	delete(m, name)
	return nil
}

func TestSnapshotCommands(t *testing.T) {
	c := newConsole(t)
	store := memSnapshots{}
	c.deps.Scenes = store

	c.run(t, "spawn crate 3 4", "save before", "move crate 1 1", "load before")
	if obj := c.obj(t, "crate"); obj.X != 3 || obj.Y != 4 {
		t.Errorf("crate = %+v after load", obj)
	}
	if c.deps.History.History().CanUndo() {
		t.Error("load should drop the history")
	}

	c.out.Reset()
	c.run(t, "snapshots")
	if !strings.Contains(c.out.String(), "before") {
		t.Errorf("snapshots output:\n%s", c.out.String())
	}

	c.run(t, "drop before")
	if _, ok := store["before"]; ok {
		t.Error("drop should delete the snapshot")
	}
	if err := c.reg.Dispatch("drop before"); !errors.Is(err, persist.ErrSnapshotNotFound) {
		t.Errorf("drop missing = %v", err)
	}
}

func TestTagSeveralIsOneOperation(t *testing.T) {
	c := newConsole(t)
	c.run(t, "spawn crate 0 0", "tag crate heavy wooden heavy")
	if obj := c.obj(t, "crate"); !slices.Equal(obj.Tags, []string{"heavy", "wooden"}) {
		t.Fatalf("tags = %v", obj.Tags)
	}
	var ops int
	for e := range c.deps.History.History().All() {
		ops = e.Operations
	}
	if ops != 1 {
		t.Errorf("tag action has %d operations, want 1", ops)
	}
	c.run(t, "undo")
	if obj := c.obj(t, "crate"); len(obj.Tags) != 0 {
		t.Errorf("tags after undo = %v", obj.Tags)
	}
}
