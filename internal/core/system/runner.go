package system

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// keep their registration order. A panicking system is logged and skipped
// for that tick; the rest of the tick still runs.
type Runner struct {
	systems []System
	sorted  bool
	budget  time.Duration // 0: never warn
	log     *zap.Logger
	ticks   uint64
}

// NewRunner creates a runner that warns when a tick takes longer than budget.
func NewRunner(budget time.Duration, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		systems: make([]System, 0, 16),
		budget:  budget,
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Len() int      { return len(r.systems) }
func (r *Runner) Ticks() uint64 { return r.ticks }

// Tick runs every system once and returns how long the tick took.
func (r *Runner) Tick(dt time.Duration) time.Duration {
	r.ensureSorted()
	start := time.Now()
	for _, s := range r.systems {
		if err := r.run(s, dt); err != nil {
			r.log.Error("系統執行失敗",
				zap.Uint64("tick", r.ticks),
				zap.Stringer("phase", s.Phase()),
				zap.String("system", fmt.Sprintf("%T", s)),
				zap.Error(err),
			)
		}
	}
	r.ticks++
	elapsed := time.Since(start)
	if r.budget > 0 && elapsed > r.budget {
		r.log.Warn("tick 超時",
			zap.Uint64("tick", r.ticks-1),
			zap.Duration("elapsed", elapsed),
			zap.Duration("budget", r.budget),
		)
	}
	return elapsed
}

func (r *Runner) run(s System, dt time.Duration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	s.Update(dt)
	return nil
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		slices.SortStableFunc(r.systems, func(a, b System) int {
			return int(a.Phase()) - int(b.Phase())
		})
		r.sorted = true
	}
}
