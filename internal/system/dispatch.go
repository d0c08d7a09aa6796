package system

import (
	"time"

	"github.com/l1jgo/undoredo/internal/core/event"
	coresys "github.com/l1jgo/undoredo/internal/core/system"
)

// EventDispatchSystem swaps the bus buffers and delivers everything emitted
// since the previous dispatch. Phase 1 (PreUpdate): requests raised by input
// reach the history before the update system runs, and changes made during
// update are reported on the next tick.
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
