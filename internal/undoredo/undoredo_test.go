package undoredo

import (
	"errors"
	"testing"

	"github.com/l1jgo/undoredo/internal/config"
	"github.com/l1jgo/undoredo/internal/core/event"
	"github.com/l1jgo/undoredo/internal/core/undo"
	"github.com/l1jgo/undoredo/internal/edit"
	"github.com/l1jgo/undoredo/internal/scene"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var testKeys = config.KeysConfig{Undo: []string{"ctrl+z"}, Redo: []string{"ctrl+y"}}

type fixture struct {
	u       *UndoRedo
	bus     *event.Bus
	scene   *scene.Scene
	changes []event.HistoryChanged
}

func newFixture(t *testing.T, policy string, log *zap.Logger) *fixture {
	t.Helper()
	if log == nil {
		log = zaptest.NewLogger(t)
	}
	f := &fixture{bus: event.NewBus(), scene: scene.New()}
	u, err := New(f.scene, f.bus, config.HistoryConfig{Capacity: 10, BeginPolicy: policy}, testKeys, log)
	if err != nil {
		t.Fatal(err)
	}
	f.u = u
	event.Subscribe(f.bus, func(e event.HistoryChanged) { f.changes = append(f.changes, e) })
	return f
}

// tick mirrors one runner tick: deliver last tick's events, then update.
func (f *fixture) tick() {
	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	f.u.Update()
}

func (f *fixture) deliver() {
	f.bus.SwapBuffers()
	f.bus.DispatchAll()
}

func TestPushAndApplyEmitsChange(t *testing.T) {
	f := newFixture(t, "fail", nil)
	id := f.scene.Spawn(scene.Object{Name: "crate"})

	if err := f.u.PushAndApply("move crate", "", edit.Move(id, 1, 1)); err != nil {
		t.Fatal(err)
	}
	f.deliver()
	if len(f.changes) != 1 {
		t.Fatalf("changes = %v", f.changes)
	}
	c := f.changes[0]
	if c.Change != event.ChangeCommit || c.Label != "move crate" || !c.CanUndo() || c.CanRedo() {
		t.Errorf("change = %+v", c)
	}
}

func TestEmptyCommitEmitsNothing(t *testing.T) {
	f := newFixture(t, "fail", nil)
	if err := f.u.Begin("nothing", ""); err != nil {
		t.Fatal(err)
	}
	if err := f.u.Commit(); err != nil {
		t.Fatal(err)
	}
	f.deliver()
	if len(f.changes) != 0 {
		t.Errorf("changes = %v, want none", f.changes)
	}
}

func TestBeginPolicies(t *testing.T) {
	t.Run("fail", func(t *testing.T) {
		f := newFixture(t, "fail", nil)
		_ = f.u.Begin("a", "")
		if err := f.u.Begin("b", ""); !errors.Is(err, undo.ErrAlreadyBuilding) {
			t.Errorf("Begin = %v", err)
		}
	})
	t.Run("cancel", func(t *testing.T) {
		f := newFixture(t, "cancel", nil)
		id := f.scene.Spawn(scene.Object{Name: "crate"})
		_ = f.u.Begin("a", "")
		_ = f.u.Add(edit.Move(id, 5, 0))
		if err := f.u.Begin("b", ""); err != nil {
			t.Fatal(err)
		}
		if label, _ := f.u.History().PendingLabel(); label != "b" {
			t.Errorf("pending = %q", label)
		}
		if f.u.History().DoneLen() != 0 {
			t.Error("cancelled action must not be recorded")
		}
	})
	t.Run("commit", func(t *testing.T) {
		f := newFixture(t, "commit", nil)
		id := f.scene.Spawn(scene.Object{Name: "crate"})
		_ = f.u.Begin("a", "")
		_ = f.u.Add(edit.Move(id, 5, 0))
		if err := f.u.Begin("b", ""); err != nil {
			t.Fatal(err)
		}
		if label, _ := f.u.History().PeekUndo(); label != "a" {
			t.Errorf("PeekUndo = %q, want a", label)
		}
		obj, _ := f.scene.Describe(id)
		if obj.X != 5 {
			t.Errorf("X = %d, pending action should have run", obj.X)
		}
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := New(scene.New(), event.NewBus(), config.HistoryConfig{BeginPolicy: "merge"}, testKeys, zap.NewNop())
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestQueueAppliedBySystem(t *testing.T) {
	f := newFixture(t, "fail", nil)
	id := f.scene.Spawn(scene.Object{Name: "slime", HP: 5, MaxHP: 10, HasHealth: true})
	sys := NewSystem(f.u)

	if err := f.u.ApplyQueue(); !errors.Is(err, ErrNoQueuedWork) {
		t.Errorf("ApplyQueue on empty = %v", err)
	}

	f.u.Enqueue("move", "", edit.Move(id, 1, 0))
	f.u.Enqueue("overheal", "", edit.SetHP(id, 99))
	f.u.Enqueue("rename", "", edit.Rename(id, "king slime"))
	if f.u.QueueLen() != 3 {
		t.Fatalf("QueueLen() = %d", f.u.QueueLen())
	}

	sys.Update(0)
	if f.u.QueueLen() != 0 {
		t.Error("queue should be drained")
	}
	if f.u.History().DoneLen() != 2 {
		t.Errorf("DoneLen() = %d, want 2 (failed request skipped)", f.u.History().DoneLen())
	}
	obj, _ := f.scene.Describe(id)
	if obj.X != 1 || obj.Name != "king slime" || obj.HP != 5 {
		t.Errorf("scene = %+v", obj)
	}
}

func TestQueueWaitsForInteractiveAction(t *testing.T) {
	f := newFixture(t, "fail", nil)
	id := f.scene.Spawn(scene.Object{Name: "crate"})
	_ = f.u.Begin("interactive", "")
	f.u.Enqueue("queued", "", edit.Move(id, 1, 0))

	f.u.Update()
	if f.u.QueueLen() != 1 {
		t.Fatal("queue must wait while building")
	}
	_ = f.u.Cancel()
	f.u.Update()
	if f.u.QueueLen() != 0 || f.u.History().DoneLen() != 1 {
		t.Errorf("queue = %d done = %d", f.u.QueueLen(), f.u.History().DoneLen())
	}
}

func TestClearQueue(t *testing.T) {
	f := newFixture(t, "fail", nil)
	f.u.Enqueue("a", "")
	f.u.ClearQueue()
	if err := f.u.ApplyQueue(); !errors.Is(err, ErrNoQueuedWork) {
		t.Errorf("ApplyQueue = %v", err)
	}
}

func TestRequestsAreDeferredToNextTick(t *testing.T) {
	f := newFixture(t, "fail", nil)
	id := f.scene.Spawn(scene.Object{Name: "crate"})
	_ = f.u.PushAndApply("move", "", edit.Move(id, 3, 0))

	if !f.u.Trigger("Ctrl+Z") {
		t.Fatal("ctrl+z should be bound")
	}
	if f.u.Trigger("ctrl+q") {
		t.Error("ctrl+q should not be bound")
	}
	if f.u.History().DoneLen() != 1 {
		t.Fatal("trigger must not undo synchronously")
	}

	f.tick()
	if f.u.History().DoneLen() != 0 || f.u.History().UndoneLen() != 1 {
		t.Fatalf("after tick: done=%d undone=%d", f.u.History().DoneLen(), f.u.History().UndoneLen())
	}

	f.u.RequestRedo("test")
	f.tick()
	obj, _ := f.scene.Describe(id)
	if obj.X != 3 {
		t.Errorf("X = %d after redo, want 3", obj.X)
	}

	f.deliver()
	var kinds []event.HistoryChange
	for _, c := range f.changes {
		kinds = append(kinds, c.Change)
	}
	want := []event.HistoryChange{event.ChangeCommit, event.ChangeUndo, event.ChangeRedo}
	if len(kinds) != len(want) {
		t.Fatalf("changes = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("changes[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestUndoFailureLogsAndEmits(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(t, "fail", zap.New(core))
	id := f.scene.Spawn(scene.Object{Name: "crate"})
	_ = f.u.PushAndApply("move", "", edit.Move(id, 1, 0))

	// remove the entity behind the history's back so the inverse fails
	_, _ = f.scene.Despawn(id)

	err := f.u.Undo()
	if !errors.Is(err, undo.ErrOperationFailed) || !errors.Is(err, edit.ErrNoEntity) {
		t.Fatalf("Undo = %v", err)
	}
	if f.u.History().UndoneLen() != 1 {
		t.Error("failed undo still moves the action")
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Errorf("error logs = %d", logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	}

	f.deliver()
	last := f.changes[len(f.changes)-1]
	if last.Change != event.ChangeUndo || last.Err == nil {
		t.Errorf("last change = %+v", last)
	}
}

func TestNothingToUndoDoesNotEmit(t *testing.T) {
	f := newFixture(t, "fail", nil)
	if err := f.u.Undo(); !errors.Is(err, undo.ErrNothingToUndo) {
		t.Errorf("Undo = %v", err)
	}
	if err := f.u.Redo(); !errors.Is(err, undo.ErrNothingToRedo) {
		t.Errorf("Redo = %v", err)
	}
	f.deliver()
	if len(f.changes) != 0 {
		t.Errorf("changes = %v", f.changes)
	}
}

func TestClearAndClose(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, "fail", zap.New(core))
	id := f.scene.Spawn(scene.Object{Name: "crate"})
	_ = f.u.PushAndApply("move", "", edit.Move(id, 1, 0))

	if err := f.u.Clear(); err != nil {
		t.Fatal(err)
	}
	if f.u.History().CanUndo() {
		t.Error("Clear should empty the history")
	}
	obj, _ := f.scene.Describe(id)
	if obj.X != 1 {
		t.Error("Clear must not touch the scene")
	}

	_ = f.u.PushAndApply("move", "", edit.Move(id, 1, 0))
	f.u.Enqueue("later", "")
	f.u.Close()
	if f.u.History().DoneLen() != 0 || f.u.QueueLen() != 0 {
		t.Error("Close should drop history and queue")
	}
	entries := logs.FilterMessage("關閉歷史紀錄").All()
	if len(entries) != 1 || entries[0].ContextMap()["done"] != int64(1) {
		t.Errorf("close log = %+v", entries)
	}
}

func TestEmptyCommitClearsRedo(t *testing.T) {
	f := newFixture(t, "fail", nil)
	id := f.scene.Spawn(scene.Object{Name: "crate"})
	_ = f.u.PushAndApply("move", "", edit.Move(id, 1, 0))
	_ = f.u.Undo()

	_ = f.u.Begin("nothing", "")
	if err := f.u.Commit(); err != nil {
		t.Fatal(err)
	}
	if f.u.History().CanRedo() {
		t.Error("empty commit should drop the redo stack")
	}
	f.deliver()
	last := f.changes[len(f.changes)-1]
	if last.Change != event.ChangeCommit || last.CanRedo() || last.CanUndo() {
		t.Errorf("last change = %+v", last)
	}
}

func TestClearDropsQueuedEdits(t *testing.T) {
	f := newFixture(t, "fail", nil)
	id := f.scene.Spawn(scene.Object{Name: "crate"})
	f.u.Enqueue("stale move", "", edit.Move(id, 4, 0))

	if err := f.u.Clear(); err != nil {
		t.Fatal(err)
	}
	f.tick()
	obj, _ := f.scene.Describe(id)
	if obj.X != 0 || f.u.History().CanUndo() {
		t.Errorf("queued edit ran after Clear: x=%d", obj.X)
	}
}

func TestClearRedo(t *testing.T) {
	f := newFixture(t, "fail", nil)
	id := f.scene.Spawn(scene.Object{Name: "crate"})
	_ = f.u.PushAndApply("a", "", edit.Move(id, 1, 0))
	_ = f.u.PushAndApply("b", "", edit.Move(id, 1, 0))
	_ = f.u.Undo()

	if err := f.u.ClearRedo(); err != nil {
		t.Fatal(err)
	}
	if f.u.History().CanRedo() || f.u.History().DoneLen() != 1 {
		t.Errorf("done=%d undone=%d", f.u.History().DoneLen(), f.u.History().UndoneLen())
	}
	obj, _ := f.scene.Describe(id)
	if obj.X != 1 {
		t.Errorf("X = %d, ClearRedo must not touch the scene", obj.X)
	}

	f.deliver()
	n := len(f.changes)
	_ = f.u.ClearRedo()
	f.deliver()
	if len(f.changes) != n {
		t.Error("clearing an empty redo stack should not emit")
	}
}

func TestPolicyName(t *testing.T) {
	for _, p := range []string{"fail", "cancel", "commit"} {
		if got := newFixture(t, p, nil).u.Policy(); got != p {
			t.Errorf("Policy() = %q, want %q", got, p)
		}
	}
}
