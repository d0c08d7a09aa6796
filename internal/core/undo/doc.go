// Package undo is the history engine behind undo/redo in the scene runtime.
//
// # Operations
//
// An Operation is one reversible unit of work: a forward procedure and an
// inverse procedure, both receiving the state they mutate. Running forward
// and then inverse with nothing else in between must leave the state as it
// was. The engine relies on that contract but never checks it.
//
// # Actions
//
// An Action is a labelled, ordered list of operations committed as one undo
// step. Forward procedures run in recorded order, inverse procedures run in
// reverse order.
//
// # History
//
// History keeps two stacks of committed actions plus at most one pending
// action being assembled:
//
//	h := undo.New[*scene.Scene](100)
//
//	h.BeginAction("Move crate", "")
//	h.AddOperation(moveOp)
//	h.CommitAction(sc) // runs forward procedures, pushes onto done
//
//	h.Undo(sc) // inverse procedures in reverse order
//	h.Redo(sc) // forward procedures again
//
// Committing a new action clears the redo stack. Two consecutive commits
// sharing a non-empty merge key become a single undo step, which is how
// continuous drags undo in one go.
//
// History is single-writer. Calling a mutator from inside a running
// procedure fails with ErrReentrantCall.
package undo
