package handler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/l1jgo/undoredo/internal/core/undo"
	"github.com/l1jgo/undoredo/internal/edit"
	"go.uber.org/zap"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrNotEdit        = errors.New("command does not edit the scene")
)

// CommandFunc runs a console command that is not itself recorded.
type CommandFunc func(args []string, deps *Deps) error

// EditFunc turns a console command into operations without running them.
type EditFunc func(args []string, deps *Deps) (Edit, error)

// Edit is one recordable change built by an EditFunc.
type Edit struct {
	Label string
	Key   undo.MergeKey
	Ops   []edit.Op
}

type commandEntry struct {
	name    string
	usage   string
	minArgs int
	run     CommandFunc
	build   EditFunc
}

// Registry maps console command names to handlers.
type Registry struct {
	commands map[string]*commandEntry
	deps     *Deps
	log      *zap.Logger
}

func NewRegistry(deps *Deps) *Registry {
	return &Registry{
		commands: make(map[string]*commandEntry),
		deps:     deps,
		log:      deps.Log,
	}
}

// Register adds a command. Aliases share the entry.
func (reg *Registry) Register(names []string, minArgs int, usage string, fn CommandFunc) {
	reg.add(names, &commandEntry{name: names[0], usage: usage, minArgs: minArgs, run: fn})
}

// RegisterEdit adds a command whose result is recorded in the history.
func (reg *Registry) RegisterEdit(names []string, minArgs int, usage string, fn EditFunc) {
	reg.add(names, &commandEntry{name: names[0], usage: usage, minArgs: minArgs, build: fn})
}

func (reg *Registry) add(names []string, e *commandEntry) {
	for _, n := range names {
		reg.commands[strings.ToLower(n)] = e
	}
}

// Usages lists one usage line per command, sorted by name.
func (reg *Registry) Usages() []string {
	seen := make(map[*commandEntry]bool)
	var out []string
	for _, e := range reg.commands {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e.usage)
	}
	slices.Sort(out)
	return out
}

// Dispatch parses and runs one console line. A line that matches a key
// binding becomes a deferred undo/redo request instead.
func (reg *Registry) Dispatch(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if reg.deps.History.Trigger(line) {
		reg.log.Debug("快捷鍵", zap.String("key", line))
		return nil
	}

	e, args, err := reg.lookup(line)
	if err != nil {
		return err
	}
	reg.log.Debug("收到指令", zap.String("command", e.name), zap.Strings("args", args))
	return reg.safeCall(e, args)
}

// Build parses a line naming an edit command and returns its operations
// without running or recording them.
func (reg *Registry) Build(line string) (Edit, error) {
	e, args, err := reg.lookup(line)
	if err != nil {
		return Edit{}, err
	}
	if e.build == nil {
		return Edit{}, fmt.Errorf("%w: %s", ErrNotEdit, e.name)
	}
	return e.build(args, reg.deps)
}

func (reg *Registry) lookup(line string) (*commandEntry, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}
	name := strings.ToLower(fields[0])
	e, ok := reg.commands[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	args := fields[1:]
	if len(args) < e.minArgs {
		return nil, nil, fmt.Errorf("%w: %s", ErrUsage, e.usage)
	}
	return e, args, nil
}

// safeCall executes a handler with panic recovery so one bad command cannot
// take down the game loop.
func (reg *Registry) safeCall(e *commandEntry, args []string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("指令 panic 已恢復",
				zap.String("command", e.name),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("command %s panic: %v", e.name, rec)
		}
	}()
	if e.build == nil {
		return e.run(args, reg.deps)
	}
	ed, err := e.build(args, reg.deps)
	if err != nil {
		return err
	}
	return reg.deps.apply(ed)
}
