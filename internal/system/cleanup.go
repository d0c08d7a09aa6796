package system

import (
	"time"

	"github.com/l1jgo/undoredo/internal/core/ecs"
	"github.com/l1jgo/undoredo/internal/core/event"
	coresys "github.com/l1jgo/undoredo/internal/core/system"
	"go.uber.org/zap"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end and
// announces what it removed. Phase 6 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
	bus   *event.Bus
	log   *zap.Logger
}

func NewCleanupSystem(world *ecs.World, bus *event.Bus, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: world, bus: bus, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if n := s.world.FlushDestroyQueue(); n > 0 {
		s.log.Debug("已移除實體", zap.Int("count", n))
		event.Emit(s.bus, event.EntitiesDestroyed{Count: n})
	}
}
