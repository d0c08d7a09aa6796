// Package patch builds undoable operations from reflected field changes on
// component structs. It is a producer only: the history never sees reflect
// values, just the operations made here.
package patch

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/l1jgo/undoredo/internal/core/undo"
)

var (
	ErrNotStruct    = errors.New("patch target is not a struct")
	ErrNoField      = errors.New("no such field")
	ErrTypeMismatch = errors.New("patch values have different types")
	ErrUnsupported  = errors.New("unsupported field type")
)

// Change is one exported field going from Old to New.
type Change struct {
	Field string
	Old   any
	New   any
}

func (c Change) String() string {
	return fmt.Sprintf("%s: %v -> %v", c.Field, c.Old, c.New)
}

// Diff compares the exported fields of two values of the same struct type
// (or pointers to it) and returns the fields that differ, in declaration order.
func Diff(before, after any) ([]Change, error) {
	bv, err := structValue(before)
	if err != nil {
		return nil, err
	}
	av, err := structValue(after)
	if err != nil {
		return nil, err
	}
	if bv.Type() != av.Type() {
		return nil, fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, bv.Type(), av.Type())
	}
	var changes []Change
	t := bv.Type()
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}
		old, cur := bv.Field(i), av.Field(i)
		if reflect.DeepEqual(old.Interface(), cur.Interface()) {
			continue
		}
		changes = append(changes, Change{Field: t.Field(i).Name, Old: snapshot(old), New: snapshot(cur)})
	}
	return changes, nil
}

// Assign parses text into the named field of the struct ptr points to.
// Field names match case-insensitively. Slices of strings take a
// comma-separated list.
func Assign(ptr any, field, text string) error {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("assign %s: %w", field, ErrNotStruct)
	}
	fv, name, ok := fieldByName(v.Elem(), field)
	if !ok {
		return fmt.Errorf("assign %s on %s: %w", field, v.Elem().Type(), ErrNoField)
	}
	if err := parseInto(fv, text); err != nil {
		return fmt.Errorf("assign %s: %w", name, err)
	}
	return nil
}

// Apply writes each change's New value into target, or its Old value when
// revert is set. target must be a pointer to the struct the changes came from.
func Apply(target any, changes []Change, revert bool) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrNotStruct
	}
	sv := v.Elem()
	for _, c := range changes {
		fv := sv.FieldByName(c.Field)
		if !fv.IsValid() || !fv.CanSet() {
			return fmt.Errorf("%s.%s: %w", sv.Type(), c.Field, ErrNoField)
		}
		val := c.New
		if revert {
			val = c.Old
		}
		rv := reflect.ValueOf(val)
		if !rv.IsValid() {
			fv.SetZero()
			continue
		}
		if !rv.Type().AssignableTo(fv.Type()) {
			return fmt.Errorf("%s.%s: %w: %s into %s", sv.Type(), c.Field, ErrTypeMismatch, rv.Type(), fv.Type())
		}
		fv.Set(reflect.ValueOf(snapshot(rv)))
	}
	return nil
}

// Field builds an operation that sets one field of the struct resolve yields
// to the value parsed from text. The forward procedure snapshots the field
// when it runs and the inverse restores that snapshot, so the operation stays
// correct when other edits touch the field between building and running.
//
// ptr is only used to check that field exists and text parses; the returned
// Change previews the edit against ptr's current value.
func Field[S any](name string, ptr any, field, text string, resolve func(S) (any, error)) (undo.Operation[S], Change, error) {
	cur, err := structValue(ptr)
	if err != nil {
		return undo.Operation[S]{}, Change{}, err
	}
	edited := reflect.New(cur.Type())
	edited.Elem().Set(cur)
	if err := Assign(edited.Interface(), field, text); err != nil {
		return undo.Operation[S]{}, Change{}, err
	}
	changes, err := Diff(ptr, edited.Interface())
	if err != nil {
		return undo.Operation[S]{}, Change{}, err
	}
	f, fname, _ := fieldByName(cur, field)
	preview := Change{Field: fname, Old: snapshot(f), New: snapshot(f)}
	if len(changes) > 0 {
		preview = changes[0]
	}

	var applied []Change
	forward := func(state S) error {
		target, err := resolve(state)
		if err != nil {
			return err
		}
		sv, err := structValue(target)
		if err != nil {
			return err
		}
		fv, _, ok := fieldByName(sv, fname)
		if !ok || !fv.CanSet() {
			return fmt.Errorf("%s.%s: %w", sv.Type(), fname, ErrNoField)
		}
		old := snapshot(fv)
		if err := parseInto(fv, text); err != nil {
			return fmt.Errorf("assign %s: %w", fname, err)
		}
		applied = []Change{{Field: fname, Old: old, New: snapshot(fv)}}
		return nil
	}
	inverse := func(state S) error {
		target, err := resolve(state)
		if err != nil {
			return err
		}
		return Apply(target, applied, true)
	}
	return undo.NewOperation(forward, inverse).Named(name), preview, nil
}

func structValue(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, ErrNotStruct
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrNotStruct, rv.Kind())
	}
	return rv, nil
}

func fieldByName(sv reflect.Value, name string) (reflect.Value, string, bool) {
	t := sv.Type()
	want := strings.ReplaceAll(name, "_", "")
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, want) {
			return sv.Field(i), f.Name, true
		}
	}
	return reflect.Value{}, "", false
}

// snapshot copies slices so later appends to the live value cannot leak
// into a recorded change.
func snapshot(v reflect.Value) any {
	if v.Kind() == reflect.Slice && !v.IsNil() {
		cp := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(cp, v)
		return cp.Interface()
	}
	return v.Interface()
}

func parseInto(fv reflect.Value, text string) error {
	text = strings.TrimSpace(text)
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(text)
	case reflect.Bool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(text, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(text, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("%w: %s", ErrUnsupported, fv.Type())
		}
		var parts []string
		for _, p := range strings.Split(text, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		out := reflect.MakeSlice(fv.Type(), len(parts), len(parts))
		for i, p := range parts {
			out.Index(i).SetString(p)
		}
		fv.Set(out)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, fv.Type())
	}
	return nil
}
