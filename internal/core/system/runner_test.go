package system

import (
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase { return r.phase }

func (r recorder) Update(time.Duration) { *r.log = append(*r.log, r.name) }

type panicker struct{}

func (panicker) Phase() Phase         { return PhaseUpdate }
func (panicker) Update(time.Duration) { panic("broken system") }

type sleeper struct{ d time.Duration }

func (s sleeper) Phase() Phase         { return PhaseOutput }
func (s sleeper) Update(time.Duration) { time.Sleep(s.d) }

func TestRunnerOrdersByPhase(t *testing.T) {
	var log []string
	r := NewRunner(0, nil)
	r.Register(recorder{"cleanup", PhaseCleanup, &log})
	r.Register(recorder{"history", PhaseUpdate, &log})
	r.Register(recorder{"input", PhaseInput, &log})
	r.Register(recorder{"history-2", PhaseUpdate, &log})
	r.Register(recorder{"events", PhasePreUpdate, &log})

	r.Tick(time.Millisecond)
	want := []string{"input", "events", "history", "history-2", "cleanup"}
	if !slices.Equal(log, want) {
		t.Errorf("tick order = %v, want %v", log, want)
	}
	if r.Len() != 5 || r.Ticks() != 1 {
		t.Errorf("Len() = %d, Ticks() = %d", r.Len(), r.Ticks())
	}
}

func TestRunnerSurvivesPanic(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var log []string
	r := NewRunner(0, zap.New(core))
	r.Register(panicker{})
	r.Register(recorder{"cleanup", PhaseCleanup, &log})

	r.Tick(0)
	r.Tick(0)
	if !slices.Equal(log, []string{"cleanup", "cleanup"}) {
		t.Errorf("systems after the panic ran %v", log)
	}
	if logs.Len() != 2 {
		t.Fatalf("logged %d errors, want 2", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["phase"]; got != "update" {
		t.Errorf("phase field = %v", got)
	}
}

func TestRunnerWarnsOverBudget(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRunner(time.Millisecond, zap.New(core))
	r.Register(sleeper{5 * time.Millisecond})

	if elapsed := r.Tick(0); elapsed < 5*time.Millisecond {
		t.Errorf("elapsed = %s", elapsed)
	}
	if logs.Len() != 1 {
		t.Errorf("logged %d warnings, want 1", logs.Len())
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseUpdate.String() != "update" || Phase(42).String() != "unknown" {
		t.Error("unexpected phase names")
	}
}
