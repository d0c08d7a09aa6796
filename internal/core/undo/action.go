package undo

// MergeKey tags actions that may coalesce into one undo step.
// The empty key never merges.
type MergeKey string

// Action is a labelled, ordered group of operations committed as one undo step.
type Action[S any] struct {
	label     string
	key       MergeKey
	ops       []Operation[S]
	committed bool
}

// NewAction creates an uncommitted action.
func NewAction[S any](label string, key MergeKey) *Action[S] {
	return &Action[S]{label: label, key: key}
}

func (a *Action[S]) Label() string      { return a.label }
func (a *Action[S]) MergeKey() MergeKey { return a.key }
func (a *Action[S]) Len() int           { return len(a.ops) }
func (a *Action[S]) Committed() bool    { return a.committed }
func (a *Action[S]) IsEmpty() bool      { return len(a.ops) == 0 }

// OperationNames lists the operation names in recorded order.
func (a *Action[S]) OperationNames() []string {
	names := make([]string, len(a.ops))
	for i, op := range a.ops {
		names[i] = op.name
	}
	return names
}

// Push appends an operation. Fails with ErrNotPending once committed.
func (a *Action[S]) Push(op Operation[S]) error {
	if a.committed {
		return ErrNotPending
	}
	a.ops = append(a.ops, op)
	return nil
}

// Commit runs every forward procedure in order and seals the action.
// On failure the procedures already run stay applied and the action stays
// unsealed; rolling back a partial commit is the caller's responsibility.
func (a *Action[S]) Commit(state S) error {
	if a.committed {
		return ErrNotPending
	}
	if err := a.apply(state, StageCommit); err != nil {
		return err
	}
	a.committed = true
	return nil
}

// TryMergeInto returns a new committed action running other's operations and
// then this action's, when both share the same non-empty merge key. The
// merged action takes this action's label.
func (a *Action[S]) TryMergeInto(other *Action[S]) (*Action[S], bool) {
	if other == nil || a.key == "" || a.key != other.key {
		return nil, false
	}
	ops := make([]Operation[S], 0, len(other.ops)+len(a.ops))
	ops = append(ops, other.ops...)
	ops = append(ops, a.ops...)
	return &Action[S]{
		label:     a.label,
		key:       a.key,
		ops:       ops,
		committed: true,
	}, true
}

// apply runs forward procedures in recorded order, stopping at the first failure.
func (a *Action[S]) apply(state S, stage Stage) error {
	for i, op := range a.ops {
		if err := op.Apply(state); err != nil {
			return &OperationError{Stage: stage, Label: a.label, Index: i, Name: op.name, Applied: i, Err: err}
		}
	}
	return nil
}

// revert runs inverse procedures in reverse order, stopping at the first failure.
func (a *Action[S]) revert(state S) error {
	for i := len(a.ops) - 1; i >= 0; i-- {
		op := a.ops[i]
		if err := op.Revert(state); err != nil {
			return &OperationError{
				Stage:   StageUndo,
				Label:   a.label,
				Index:   i,
				Name:    op.name,
				Applied: len(a.ops) - 1 - i,
				Err:     err,
			}
		}
	}
	return nil
}
