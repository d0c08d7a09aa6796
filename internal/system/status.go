package system

import (
	"fmt"
	"io"
	"time"

	"github.com/l1jgo/undoredo/internal/core/event"
	coresys "github.com/l1jgo/undoredo/internal/core/system"
)

// StatusSystem prints one status line per tick in which the history
// changed. Phase 4 (Output).
type StatusSystem struct {
	out    io.Writer
	latest *event.HistoryChanged
}

func NewStatusSystem(bus *event.Bus, out io.Writer) *StatusSystem {
	s := &StatusSystem{out: out}
	event.Subscribe(bus, func(e event.HistoryChanged) {
		s.latest = &e
	})
	return s
}

func (s *StatusSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *StatusSystem) Update(_ time.Duration) {
	if s.latest == nil {
		return
	}
	e := s.latest
	s.latest = nil
	fmt.Fprintln(s.out, StatusLine(*e))
}

// StatusLine renders a history change for the console.
func StatusLine(e event.HistoryChanged) string {
	undo, redo := "·", "·"
	if e.CanUndo() {
		undo = "↶"
	}
	if e.CanRedo() {
		redo = "↷"
	}
	line := fmt.Sprintf("  \033[90m[%s %d | %s %d] %s", undo, e.DoneLen, redo, e.UndoneLen, e.Change)
	if e.Label != "" {
		line += " " + e.Label
	}
	if e.Err != nil {
		line += fmt.Sprintf(" \033[31m(失敗: %v)", e.Err)
	}
	return line + "\033[0m"
}
