// Package undoredo is the runtime's undo/redo resource: one history over the
// scene, a queue of edits applied by the update system, deferred undo/redo
// requests and the HistoryChanged notifications that go with them.
package undoredo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l1jgo/undoredo/internal/config"
	"github.com/l1jgo/undoredo/internal/core/event"
	"github.com/l1jgo/undoredo/internal/core/undo"
	"github.com/l1jgo/undoredo/internal/edit"
	"github.com/l1jgo/undoredo/internal/scene"
	"go.uber.org/zap"
)

// ErrNoQueuedWork is returned by ApplyQueue when nothing is queued.
var ErrNoQueuedWork = errors.New("no queued operations")

type request struct {
	label string
	key   undo.MergeKey
	ops   []edit.Op
}

// UndoRedo owns the history for one scene. Game loop goroutine only.
type UndoRedo struct {
	history *undo.History[*scene.Scene]
	scene   *scene.Scene
	bus     *event.Bus
	log     *zap.Logger

	commitOnBegin bool
	undoKeys      map[string]bool
	redoKeys      map[string]bool

	queue    []request
	triggers []bool // true = undo, in arrival order
}

// New creates the resource and subscribes it to undo/redo requests on bus.
func New(s *scene.Scene, bus *event.Bus, hc config.HistoryConfig, keys config.KeysConfig, log *zap.Logger) (*UndoRedo, error) {
	var (
		policy        undo.BeginPolicy
		commitOnBegin bool
	)
	switch strings.ToLower(hc.BeginPolicy) {
	case "", "fail":
		policy = undo.BeginFail
	case "cancel":
		policy = undo.BeginCancel
	case "commit":
		policy, commitOnBegin = undo.BeginFail, true
	default:
		return nil, fmt.Errorf("unknown begin policy %q", hc.BeginPolicy)
	}

	u := &UndoRedo{
		history:       undo.New[*scene.Scene](hc.Capacity, undo.WithBeginPolicy(policy), undo.WithLogger(log.Named("history"))),
		scene:         s,
		bus:           bus,
		log:           log,
		commitOnBegin: commitOnBegin,
		undoKeys:      keySet(keys.Undo),
		redoKeys:      keySet(keys.Redo),
	}
	event.Subscribe(bus, func(e event.UndoRequested) {
		u.log.Debug("收到復原請求", zap.String("source", e.Source))
		u.triggers = append(u.triggers, true)
	})
	event.Subscribe(bus, func(e event.RedoRequested) {
		u.log.Debug("收到重做請求", zap.String("source", e.Source))
		u.triggers = append(u.triggers, false)
	})
	return u, nil
}

func keySet(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[normalizeKey(k)] = true
	}
	return m
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(k), " ", ""))
}

// History exposes the history for read-only inspection.
func (u *UndoRedo) History() *undo.History[*scene.Scene] { return u.history }

// Scene returns the scene the history mutates.
func (u *UndoRedo) Scene() *scene.Scene { return u.scene }

// QueueLen returns the number of queued edit requests.
func (u *UndoRedo) QueueLen() int { return len(u.queue) }

// Begin starts an interactive action. With the "commit" begin policy a
// pending action is committed first; if that commit fails, its error is
// returned and no new action is started.
func (u *UndoRedo) Begin(label string, key undo.MergeKey) error {
	if u.commitOnBegin && u.history.Building() {
		if err := u.Commit(); err != nil {
			return fmt.Errorf("commit pending action: %w", err)
		}
	}
	return u.history.BeginAction(label, key)
}

// Add appends an operation to the pending action.
func (u *UndoRedo) Add(op edit.Op) error {
	return u.history.AddOperation(op)
}

// Commit runs and records the pending action.
func (u *UndoRedo) Commit() error {
	label, _ := u.history.PendingLabel()
	unchanged := u.history.PendingLen() == 0 && !u.history.CanRedo()
	if err := u.history.CommitAction(u.scene); err != nil {
		u.log.Warn("動作提交失敗", zap.String("label", label), zap.Error(err))
		return err
	}
	if unchanged {
		return nil
	}
	u.log.Debug("動作已提交", zap.String("label", label), zap.Int("done", u.history.DoneLen()))
	u.emit(event.ChangeCommit, label, nil)
	return nil
}

// Cancel drops the pending action.
func (u *UndoRedo) Cancel() error {
	label, _ := u.history.PendingLabel()
	if err := u.history.CancelAction(); err != nil {
		return err
	}
	u.log.Debug("動作已取消", zap.String("label", label))
	return nil
}

// PushAndApply records ops as one action and runs them now.
func (u *UndoRedo) PushAndApply(label string, key undo.MergeKey, ops ...edit.Op) error {
	if err := u.Begin(label, key); err != nil {
		return err
	}
	for _, op := range ops {
		if err := u.history.AddOperation(op); err != nil {
			_ = u.history.CancelAction()
			return err
		}
	}
	return u.Commit()
}

// Enqueue defers ops as one action until the next ApplyQueue.
func (u *UndoRedo) Enqueue(label string, key undo.MergeKey, ops ...edit.Op) {
	u.queue = append(u.queue, request{label: label, key: key, ops: ops})
}

// ClearQueue drops every queued request without running it.
func (u *UndoRedo) ClearQueue() {
	clear(u.queue)
	u.queue = u.queue[:0]
}

// ApplyQueue commits every queued request in order, each as its own action.
// A failing request does not stop the ones after it; all failures are
// returned joined.
func (u *UndoRedo) ApplyQueue() error {
	if len(u.queue) == 0 {
		return ErrNoQueuedWork
	}
	queue := u.queue
	u.queue = nil

	var errs []error
	for _, r := range queue {
		if err := u.PushAndApply(r.label, r.key, r.ops...); err != nil {
			u.log.Warn("佇列動作失敗", zap.String("label", r.label), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", r.label, err))
		}
	}
	return errors.Join(errs...)
}

// Undo reverts the most recent action.
func (u *UndoRedo) Undo() error {
	label, _ := u.history.PeekUndo()
	err := u.history.Undo(u.scene)
	if errors.Is(err, undo.ErrNothingToUndo) || errors.Is(err, undo.ErrReentrantCall) {
		return err
	}
	if err != nil {
		u.log.Error("復原失敗，場景可能只復原了一部分", zap.String("label", label), zap.Error(err))
	} else {
		u.log.Info("復原", zap.String("label", label))
	}
	u.emit(event.ChangeUndo, label, err)
	return err
}

// Redo re-applies the most recently undone action.
func (u *UndoRedo) Redo() error {
	label, _ := u.history.PeekRedo()
	err := u.history.Redo(u.scene)
	if errors.Is(err, undo.ErrNothingToRedo) || errors.Is(err, undo.ErrReentrantCall) {
		return err
	}
	if err != nil {
		u.log.Error("重做失敗，場景可能只重做了一部分", zap.String("label", label), zap.Error(err))
	} else {
		u.log.Info("重做", zap.String("label", label))
	}
	u.emit(event.ChangeRedo, label, err)
	return err
}

// Clear forgets all history and drops queued edits. The scene is left as it
// is.
func (u *UndoRedo) Clear() error {
	if err := u.history.Clear(); err != nil {
		return err
	}
	dropped := len(u.queue)
	u.ClearQueue()
	u.log.Info("歷史已清除", zap.Int("dropped_queued", dropped))
	u.emit(event.ChangeClear, "", nil)
	return nil
}

// ClearRedo drops the undone actions only.
func (u *UndoRedo) ClearRedo() error {
	n := u.history.UndoneLen()
	if err := u.history.ClearUndone(); err != nil {
		return err
	}
	if n > 0 {
		u.log.Info("重做紀錄已清除", zap.Int("dropped", n))
		u.emit(event.ChangeClear, "", nil)
	}
	return nil
}

// Policy names the begin policy in effect.
func (u *UndoRedo) Policy() string {
	if u.commitOnBegin {
		return "commit"
	}
	return u.history.Policy().String()
}

// RequestUndo asks for an undo on the next update. source is logged.
func (u *UndoRedo) RequestUndo(source string) {
	event.Emit(u.bus, event.UndoRequested{Source: source})
}

// RequestRedo asks for a redo on the next update.
func (u *UndoRedo) RequestRedo(source string) {
	event.Emit(u.bus, event.RedoRequested{Source: source})
}

// Trigger turns a configured key chord into an undo or redo request.
// It reports whether key was bound.
func (u *UndoRedo) Trigger(key string) bool {
	k := normalizeKey(key)
	switch {
	case u.undoKeys[k]:
		u.RequestUndo(k)
	case u.redoKeys[k]:
		u.RequestRedo(k)
	default:
		return false
	}
	return true
}

// Update applies queued edits, then any undo/redo requests delivered since
// the last update, in arrival order. Queued edits wait while an interactive
// action is being built.
func (u *UndoRedo) Update() {
	if len(u.queue) > 0 && !u.history.Building() {
		_ = u.ApplyQueue() // failures already logged
	}
	triggers := u.triggers
	u.triggers = nil
	for _, isUndo := range triggers {
		var err error
		if isUndo {
			err = u.Undo()
		} else {
			err = u.Redo()
		}
		if errors.Is(err, undo.ErrNothingToUndo) || errors.Is(err, undo.ErrNothingToRedo) {
			u.log.Debug("沒有可執行的歷史", zap.Error(err))
		}
	}
}

// Close clears the history at shutdown.
func (u *UndoRedo) Close() {
	u.log.Info("關閉歷史紀錄",
		zap.Int("done", u.history.DoneLen()),
		zap.Int("undone", u.history.UndoneLen()),
		zap.Int("queued", len(u.queue)),
	)
	u.ClearQueue()
	_ = u.history.Clear()
}

func (u *UndoRedo) emit(change event.HistoryChange, label string, err error) {
	event.Emit(u.bus, event.HistoryChanged{
		Change:    change,
		Label:     label,
		DoneLen:   u.history.DoneLen(),
		UndoneLen: u.history.UndoneLen(),
		Err:       err,
	})
}
