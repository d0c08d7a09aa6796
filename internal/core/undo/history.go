package undo

import (
	"iter"

	"go.uber.org/zap"
)

// BeginPolicy decides what BeginAction does while another action is pending.
type BeginPolicy int

const (
	// BeginFail rejects the call with ErrAlreadyBuilding.
	BeginFail BeginPolicy = iota
	// BeginCancel discards the pending action without running it.
	BeginCancel
)

func (p BeginPolicy) String() string {
	switch p {
	case BeginFail:
		return "fail"
	case BeginCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

type options struct {
	policy BeginPolicy
	log    *zap.Logger
}

// Option configures a History.
type Option func(*options)

// WithBeginPolicy sets the policy for BeginAction while building.
func WithBeginPolicy(p BeginPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger makes the history log merges and evictions at debug level.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// Entry describes one action held by a History.
type Entry struct {
	Label      string
	MergeKey   MergeKey
	Operations int
	Undone     bool
}

// History is the undo/redo stack for actions over state S.
// It is not safe for concurrent use; one goroutine owns it.
type History[S any] struct {
	done    []*Action[S] // top = most recent
	undone  []*Action[S] // top = most recently undone
	pending *Action[S]

	capacity int // <= 0: unlimited
	policy   BeginPolicy
	log      *zap.Logger

	// mergeable is set by a successful commit and cleared by anything that
	// breaks contiguity with the next commit (undo, redo, clear, failure).
	mergeable bool
	running   bool
}

// New creates an empty history. A capacity <= 0 keeps every action.
func New[S any](capacity int, opts ...Option) *History[S] {
	o := options{policy: BeginFail, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &History[S]{
		capacity: capacity,
		policy:   o.policy,
		log:      o.log,
	}
}

// BeginAction starts assembling a new action.
func (h *History[S]) BeginAction(label string, key MergeKey) error {
	if h.running {
		return ErrReentrantCall
	}
	if h.pending != nil {
		if h.policy != BeginCancel {
			return ErrAlreadyBuilding
		}
		h.log.Debug("discarding pending action",
			zap.String("label", h.pending.label),
			zap.Int("operations", h.pending.Len()),
		)
	}
	h.pending = NewAction[S](label, key)
	return nil
}

// AddOperation appends an operation to the pending action. Nothing runs yet.
func (h *History[S]) AddOperation(op Operation[S]) error {
	if h.running {
		return ErrReentrantCall
	}
	if h.pending == nil {
		return ErrNotBuilding
	}
	return h.pending.Push(op)
}

// CommitAction runs the pending action's forward procedures and records it.
// If a procedure fails the action is discarded, both stacks are left as they
// were and the history returns to idle. Procedures that already ran stay
// applied. An empty action is not recorded but still clears the undone
// stack.
func (h *History[S]) CommitAction(state S) error {
	if h.running {
		return ErrReentrantCall
	}
	if h.pending == nil {
		return ErrNotBuilding
	}
	a := h.pending
	h.pending = nil

	if a.IsEmpty() {
		h.log.Debug("empty action discarded", zap.String("label", a.label))
		clear(h.undone)
		h.undone = h.undone[:0]
		h.mergeable = false
		return nil
	}

	if err := h.exec(func() error { return a.Commit(state) }); err != nil {
		h.mergeable = false
		return err
	}

	h.push(a)
	clear(h.undone)
	h.undone = h.undone[:0]
	h.mergeable = true
	return nil
}

// CancelAction drops the pending action without running anything.
func (h *History[S]) CancelAction() error {
	if h.running {
		return ErrReentrantCall
	}
	if h.pending == nil {
		return ErrNotBuilding
	}
	h.pending = nil
	return nil
}

// Record begins, fills and commits an action in one call.
func (h *History[S]) Record(state S, label string, key MergeKey, ops ...Operation[S]) error {
	if err := h.BeginAction(label, key); err != nil {
		return err
	}
	for _, op := range ops {
		if err := h.AddOperation(op); err != nil {
			_ = h.CancelAction()
			return err
		}
	}
	return h.CommitAction(state)
}

// Undo reverts the most recent action, running inverse procedures in reverse
// order. On failure it stops at the failing procedure, still moves the action
// onto the undone stack and returns an *OperationError; state may then be
// partially reverted.
func (h *History[S]) Undo(state S) error {
	if h.running {
		return ErrReentrantCall
	}
	if len(h.done) == 0 {
		return ErrNothingToUndo
	}
	a := h.done[len(h.done)-1]
	h.done[len(h.done)-1] = nil
	h.done = h.done[:len(h.done)-1]
	h.mergeable = false

	err := h.exec(func() error { return a.revert(state) })
	h.undone = append(h.undone, a)
	return err
}

// Redo re-applies the most recently undone action, running forward
// procedures in recorded order. Failures are handled as in Undo: the action
// still moves back onto the done stack.
func (h *History[S]) Redo(state S) error {
	if h.running {
		return ErrReentrantCall
	}
	if len(h.undone) == 0 {
		return ErrNothingToRedo
	}
	a := h.undone[len(h.undone)-1]
	h.undone[len(h.undone)-1] = nil
	h.undone = h.undone[:len(h.undone)-1]
	h.mergeable = false

	err := h.exec(func() error { return a.apply(state, StageRedo) })
	h.done = append(h.done, a)
	h.evict()
	return err
}

// Clear forgets every action, including a pending one. State is not touched.
func (h *History[S]) Clear() error {
	if h.running {
		return ErrReentrantCall
	}
	h.done = nil
	h.undone = nil
	h.pending = nil
	h.mergeable = false
	return nil
}

// ClearUndone drops the redo stack.
func (h *History[S]) ClearUndone() error {
	if h.running {
		return ErrReentrantCall
	}
	h.undone = nil
	h.mergeable = false
	return nil
}

// SetCapacity changes the maximum number of undoable actions and evicts the
// oldest ones if the done stack is now too deep.
func (h *History[S]) SetCapacity(capacity int) error {
	if h.running {
		return ErrReentrantCall
	}
	h.capacity = capacity
	h.evict()
	return nil
}

func (h *History[S]) Capacity() int       { return h.capacity }
func (h *History[S]) Policy() BeginPolicy { return h.policy }
func (h *History[S]) CanUndo() bool       { return len(h.done) > 0 }
func (h *History[S]) CanRedo() bool       { return len(h.undone) > 0 }
func (h *History[S]) DoneLen() int        { return len(h.done) }
func (h *History[S]) UndoneLen() int      { return len(h.undone) }
func (h *History[S]) Building() bool      { return h.pending != nil }

// PendingLen returns the number of operations in the action being built.
func (h *History[S]) PendingLen() int {
	if h.pending == nil {
		return 0
	}
	return h.pending.Len()
}

// PendingLabel returns the label of the action being built, if any.
func (h *History[S]) PendingLabel() (string, bool) {
	if h.pending == nil {
		return "", false
	}
	return h.pending.label, true
}

// PeekUndo returns the label Undo would revert next.
func (h *History[S]) PeekUndo() (string, bool) {
	if len(h.done) == 0 {
		return "", false
	}
	return h.done[len(h.done)-1].label, true
}

// PeekRedo returns the label Redo would re-apply next.
func (h *History[S]) PeekRedo() (string, bool) {
	if len(h.undone) == 0 {
		return "", false
	}
	return h.undone[len(h.undone)-1].label, true
}

// All yields every recorded action: the done stack from oldest to newest,
// then the undone stack from most recently undone to least.
func (h *History[S]) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, a := range h.done {
			if !yield(entryOf(a, false)) {
				return
			}
		}
		for i := len(h.undone) - 1; i >= 0; i-- {
			if !yield(entryOf(h.undone[i], true)) {
				return
			}
		}
	}
}

func entryOf[S any](a *Action[S], undone bool) Entry {
	return Entry{Label: a.label, MergeKey: a.key, Operations: a.Len(), Undone: undone}
}

// exec marks the history busy while procedures run so that nested calls
// fail with ErrReentrantCall.
func (h *History[S]) exec(fn func() error) error {
	h.running = true
	defer func() { h.running = false }()
	return fn()
}

// push records a freshly committed action, coalescing it into the top of the
// done stack when the merge keys allow it.
func (h *History[S]) push(a *Action[S]) {
	if h.mergeable && len(h.done) > 0 {
		top := h.done[len(h.done)-1]
		if merged, ok := a.TryMergeInto(top); ok {
			h.done[len(h.done)-1] = merged
			h.log.Debug("merged action",
				zap.String("label", merged.label),
				zap.String("merge_key", string(merged.key)),
				zap.Int("operations", merged.Len()),
			)
			return
		}
	}
	h.done = append(h.done, a)
	h.evict()
}

// evict drops the oldest done actions beyond capacity. Nothing is executed.
func (h *History[S]) evict() {
	if h.capacity <= 0 || len(h.done) <= h.capacity {
		return
	}
	excess := len(h.done) - h.capacity
	for _, a := range h.done[:excess] {
		h.log.Debug("evicted action", zap.String("label", a.label))
	}
	clear(h.done[:excess])
	h.done = h.done[excess:]
}
