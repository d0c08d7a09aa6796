package event

// UndoRequested asks the history resource to undo on its next update.
// Source is the binding or command that raised it, for logging.
type UndoRequested struct {
	Source string
}

// RedoRequested asks the history resource to redo on its next update.
type RedoRequested struct {
	Source string
}

// HistoryChange names what moved the history stacks.
type HistoryChange string

const (
	ChangeCommit HistoryChange = "commit"
	ChangeUndo   HistoryChange = "undo"
	ChangeRedo   HistoryChange = "redo"
	ChangeClear  HistoryChange = "clear"
)

// HistoryChanged is emitted after every change to the undo/redo stacks so
// menus and status lines can refresh CanUndo/CanRedo.
type HistoryChanged struct {
	Change    HistoryChange
	Label     string
	DoneLen   int
	UndoneLen int
	Err       error // non-nil when a procedure failed during the change
}

func (e HistoryChanged) CanUndo() bool { return e.DoneLen > 0 }
func (e HistoryChanged) CanRedo() bool { return e.UndoneLen > 0 }

// EntitiesDestroyed reports entities removed outside the history, such as a
// kill flushed at the end of a tick.
type EntitiesDestroyed struct {
	Count int
}
