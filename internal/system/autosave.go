package system

import (
	"context"
	"time"

	"github.com/l1jgo/undoredo/internal/core/event"
	coresys "github.com/l1jgo/undoredo/internal/core/system"
	"github.com/l1jgo/undoredo/internal/scene"
	"go.uber.org/zap"
)

// AutosaveSnapshot is the snapshot name the autosave writes to.
const AutosaveSnapshot = "autosave"

// SnapshotSaver stores scene snapshots. *persist.SceneRepo satisfies it.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, name string, objs []scene.Object) error
}

// AutosaveSystem periodically saves the scene when the history changed or
// entities were destroyed since the last save. Phase 5 (Persist).
type AutosaveSystem struct {
	scene     *scene.Scene
	repo      SnapshotSaver
	log       *zap.Logger
	tickCount int
	interval  int // save every N ticks
	dirty     bool
}

func NewAutosaveSystem(bus *event.Bus, sc *scene.Scene, repo SnapshotSaver, intervalTicks int, log *zap.Logger) *AutosaveSystem {
	s := &AutosaveSystem{
		scene:    sc,
		repo:     repo,
		log:      log,
		interval: intervalTicks,
	}
	event.Subscribe(bus, func(event.HistoryChanged) { s.dirty = true })
	event.Subscribe(bus, func(event.EntitiesDestroyed) { s.dirty = true })
	return s
}

func (s *AutosaveSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *AutosaveSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	if s.dirty {
		s.save()
	}
}

// SaveNow saves regardless of the dirty flag. Called on shutdown.
func (s *AutosaveSystem) SaveNow() {
	s.save()
}

func (s *AutosaveSystem) save() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	objs := s.scene.Objects()
	if err := s.repo.SaveSnapshot(ctx, AutosaveSnapshot, objs); err != nil {
		s.log.Error("自動存檔失敗", zap.Error(err))
		return
	}
	s.dirty = false
	s.log.Info("自動存檔完成", zap.Int("objects", len(objs)))
}
