package undo

import "fmt"

// Procedure mutates the state it is given and reports whether it succeeded.
type Procedure[S any] func(state S) error

// Operation pairs a forward procedure with its inverse.
// The zero value is a valid no-op.
type Operation[S any] struct {
	name    string
	forward Procedure[S]
	inverse Procedure[S]
}

// NewOperation creates an operation. A nil procedure does nothing.
func NewOperation[S any](forward, inverse Procedure[S]) Operation[S] {
	return Operation[S]{forward: forward, inverse: inverse}
}

// Named returns a copy of the operation carrying a display name, e.g. "move".
func (op Operation[S]) Named(name string) Operation[S] {
	op.name = name
	return op
}

// Name returns the display name, or "" if none was set.
func (op Operation[S]) Name() string { return op.name }

// Invert returns an operation whose forward is this operation's inverse.
func (op Operation[S]) Invert() Operation[S] {
	return Operation[S]{name: op.name, forward: op.inverse, inverse: op.forward}
}

// Apply runs the forward procedure.
func (op Operation[S]) Apply(state S) error {
	return call(op.forward, state)
}

// Revert runs the inverse procedure.
func (op Operation[S]) Revert(state S) error {
	return call(op.inverse, state)
}

// call runs a procedure, turning a panic into an error so a bad procedure
// cannot leave an action stranded between the two stacks.
func call[S any](p Procedure[S], state S) (err error) {
	if p == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("procedure panic: %v", rec)
		}
	}()
	return p(state)
}

// Group combines operations into a single operation. Forward runs them in
// order and stops at the first error; inverse runs them in reverse order.
func Group[S any](name string, ops ...Operation[S]) Operation[S] {
	list := make([]Operation[S], len(ops))
	copy(list, ops)
	return Operation[S]{
		name: name,
		forward: func(state S) error {
			for i, op := range list {
				if err := op.Apply(state); err != nil {
					return fmt.Errorf("group %q step %d: %w", name, i, err)
				}
			}
			return nil
		},
		inverse: func(state S) error {
			for i := len(list) - 1; i >= 0; i-- {
				if err := list[i].Revert(state); err != nil {
					return fmt.Errorf("undo group %q step %d: %w", name, i, err)
				}
			}
			return nil
		},
	}
}
