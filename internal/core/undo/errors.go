package undo

import (
	"errors"
	"fmt"
)

// Named failure kinds returned by History and Action.
var (
	ErrAlreadyBuilding = errors.New("an action is already being built")
	ErrNotBuilding     = errors.New("no action is being built")
	ErrNotPending      = errors.New("action is already committed")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrNothingToRedo   = errors.New("nothing to redo")
	ErrReentrantCall   = errors.New("history called from inside a running operation")
	ErrOperationFailed = errors.New("operation failed")
)

// Stage identifies which pass over an action was running when a procedure failed.
type Stage int

const (
	StageCommit Stage = iota
	StageUndo
	StageRedo
)

func (s Stage) String() string {
	switch s {
	case StageCommit:
		return "commit"
	case StageUndo:
		return "undo"
	case StageRedo:
		return "redo"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// OperationError reports a forward or inverse procedure that returned an error.
// Index is the position of the failing operation in recorded order, Applied is
// how many procedures of the same pass completed before it. The cause is
// carried opaquely and available through errors.Unwrap.
type OperationError struct {
	Stage   Stage
	Label   string
	Index   int
	Name    string
	Applied int
	Err     error
}

func (e *OperationError) Error() string {
	op := fmt.Sprintf("#%d", e.Index)
	if e.Name != "" {
		op = fmt.Sprintf("#%d (%s)", e.Index, e.Name)
	}
	return fmt.Sprintf("%s %q: operation %s: %v", e.Stage, e.Label, op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrOperationFailed) hold for every OperationError.
func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

// Dirty reports whether the failed pass left state partially modified.
func (e *OperationError) Dirty() bool { return e.Applied > 0 }
