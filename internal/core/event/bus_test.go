package event

import "testing"

func TestEventsArriveNextTick(t *testing.T) {
	b := NewBus()
	var got []string
	Subscribe(b, func(e UndoRequested) { got = append(got, "undo:"+e.Source) })
	Subscribe(b, func(e RedoRequested) { got = append(got, "redo:"+e.Source) })

	Emit(b, UndoRequested{Source: "ctrl+z"})
	Emit(b, RedoRequested{Source: "ctrl+y"})
	Emit(b, UndoRequested{Source: "menu"})
	if n := b.DispatchAll(); n != 0 {
		t.Fatalf("events dispatched before swap: %d", n)
	}

	b.SwapBuffers()
	if n := b.DispatchAll(); n != 3 {
		t.Errorf("DispatchAll() = %d, want 3", n)
	}
	want := []string{"undo:ctrl+z", "redo:ctrl+y", "undo:menu"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	b.SwapBuffers()
	if n := b.DispatchAll(); n != 0 {
		t.Errorf("events delivered twice: %d", n)
	}
}

func TestHandlerEmitsIntoNextTick(t *testing.T) {
	b := NewBus()
	changes := 0
	Subscribe(b, func(UndoRequested) {
		Emit(b, HistoryChanged{Change: ChangeUndo})
	})
	Subscribe(b, func(HistoryChanged) { changes++ })

	Emit(b, UndoRequested{})
	b.SwapBuffers()
	b.DispatchAll()
	if changes != 0 || b.Pending() != 1 {
		t.Fatalf("changes=%d pending=%d, want 0/1", changes, b.Pending())
	}
	b.SwapBuffers()
	b.DispatchAll()
	if changes != 1 {
		t.Errorf("changes = %d, want 1", changes)
	}
}
