package undoredo

import (
	"time"

	coresys "github.com/l1jgo/undoredo/internal/core/system"
)

// System applies queued edits and deferred undo/redo requests once per tick.
// Phase 2 (Update).
type System struct {
	u *UndoRedo
}

func NewSystem(u *UndoRedo) *System {
	return &System{u: u}
}

func (s *System) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *System) Update(_ time.Duration) {
	s.u.Update()
}
