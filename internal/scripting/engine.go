package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/l1jgo/undoredo/internal/core/ecs"
	"github.com/l1jgo/undoredo/internal/core/undo"
	"github.com/l1jgo/undoredo/internal/scene"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

var (
	ErrUnknownOp     = errors.New("unknown script operation")
	ErrNotReversible = errors.New("script operation has no revert function")
	ErrRejected      = errors.New("script operation rejected")
)

// Engine wraps a single gopher-lua VM holding scripted scene operations.
// Single-goroutine access only (game loop).
//
// A script registers an operation by adding a table to the global ops:
//
//	ops.nudge = {
//	  apply  = function(world, ctx) ... end,
//	  revert = function(world, ctx) ... end,
//	}
//
// Both functions get the same ctx table, so apply can stash whatever revert
// needs. Returning false (optionally followed by a message) fails the call.
type Engine struct {
	vm    *lua.LState
	log   *zap.Logger
	world *lua.LTable
	scene *scene.Scene // set only while a procedure runs
}

// NewEngine creates a Lua engine and loads all scripts from scriptsDir/ops.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("ops", vm.NewTable())

	e := &Engine{vm: vm, log: log}
	e.world = vm.SetFuncs(vm.NewTable(), map[string]lua.LGFunction{
		"exists":   e.luaExists,
		"find":     e.luaFind,
		"get_pos":  e.luaGetPos,
		"set_pos":  e.luaSetPos,
		"get_name": e.luaGetName,
		"set_name": e.luaSetName,
		"get_hp":   e.luaGetHP,
		"set_hp":   e.luaSetHP,
		"log":      e.luaLog,
	})

	if err := e.loadDir(filepath.Join(scriptsDir, "ops")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load op scripts: %w", err)
	}
	return e, nil
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// loadDir loads all .lua files in a directory, in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua, e.g. to register an op from the console.
func (e *Engine) LoadString(src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("load lua chunk: %w", err)
	}
	return nil
}

// Names lists the registered operation names, sorted.
func (e *Engine) Names() []string {
	var names []string
	if ops, ok := e.vm.GetGlobal("ops").(*lua.LTable); ok {
		ops.ForEach(func(k, v lua.LValue) {
			if _, ok := v.(*lua.LTable); ok {
				names = append(names, k.String())
			}
		})
	}
	slices.Sort(names)
	return names
}

// Op builds an undoable operation from the script registered as name.
// target is passed to the script as ctx.target and args as ctx.args.
func (e *Engine) Op(name, target string, args []string) (undo.Operation[*scene.Scene], error) {
	def, ok := e.vm.GetGlobal("ops").(*lua.LTable)
	if !ok {
		return undo.Operation[*scene.Scene]{}, fmt.Errorf("%w: %s", ErrUnknownOp, name)
	}
	tbl, ok := def.RawGetString(name).(*lua.LTable)
	if !ok {
		return undo.Operation[*scene.Scene]{}, fmt.Errorf("%w: %s", ErrUnknownOp, name)
	}
	apply, ok := tbl.RawGetString("apply").(*lua.LFunction)
	if !ok {
		return undo.Operation[*scene.Scene]{}, fmt.Errorf("%w: %s has no apply function", ErrUnknownOp, name)
	}
	revert, ok := tbl.RawGetString("revert").(*lua.LFunction)
	if !ok {
		return undo.Operation[*scene.Scene]{}, fmt.Errorf("%w: %s", ErrNotReversible, name)
	}

	ctx := e.vm.NewTable()
	ctx.RawSetString("target", lua.LString(target))
	argt := e.vm.NewTable()
	for _, a := range args {
		argt.Append(lua.LString(a))
	}
	ctx.RawSetString("args", argt)

	return undo.NewOperation(
		func(s *scene.Scene) error { return e.call(s, name, "apply", apply, ctx) },
		func(s *scene.Scene) error { return e.call(s, name, "revert", revert, ctx) },
	).Named("script:" + name), nil
}

func (e *Engine) call(s *scene.Scene, name, stage string, fn *lua.LFunction, ctx *lua.LTable) error {
	e.scene = s
	defer func() { e.scene = nil }()

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, e.world, ctx); err != nil {
		e.log.Debug("lua 操作執行錯誤",
			zap.String("op", name),
			zap.String("stage", stage),
			zap.Error(err),
		)
		return fmt.Errorf("lua %s %s: %w", name, stage, err)
	}

	ok := e.vm.Get(-2)
	msg := e.vm.Get(-1)
	e.vm.Pop(2)

	if ok == lua.LFalse {
		if msg != lua.LNil {
			return fmt.Errorf("lua %s %s: %w: %s", name, stage, ErrRejected, msg.String())
		}
		return fmt.Errorf("lua %s %s: %w", name, stage, ErrRejected)
	}
	return nil
}

// --- world API ---

func (e *Engine) entity(L *lua.LState) ecs.EntityID {
	if e.scene == nil {
		L.RaiseError("world used outside an operation")
		return 0
	}
	ref := L.CheckString(1)
	id, ok := e.scene.Find(ref)
	if !ok {
		L.RaiseError("entity %q not found", ref)
	}
	return id
}

func (e *Engine) luaExists(L *lua.LState) int {
	if e.scene == nil {
		L.Push(lua.LFalse)
		return 1
	}
	_, ok := e.scene.Find(L.CheckString(1))
	L.Push(lua.LBool(ok))
	return 1
}

func (e *Engine) luaFind(L *lua.LState) int {
	if e.scene == nil {
		L.Push(lua.LNil)
		return 1
	}
	id, ok := e.scene.Find(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(id.String()))
	return 1
}

func (e *Engine) luaGetPos(L *lua.LState) int {
	id := e.entity(L)
	t, ok := e.scene.Transforms.Get(id)
	if !ok {
		L.RaiseError("entity %s has no position", id)
	}
	L.Push(lua.LNumber(t.X))
	L.Push(lua.LNumber(t.Y))
	return 2
}

func (e *Engine) luaSetPos(L *lua.LState) int {
	id := e.entity(L)
	t, ok := e.scene.Transforms.Get(id)
	if !ok {
		L.RaiseError("entity %s has no position", id)
	}
	t.X = int32(L.CheckInt(2))
	t.Y = int32(L.CheckInt(3))
	return 0
}

func (e *Engine) luaGetName(L *lua.LState) int {
	id := e.entity(L)
	n, ok := e.scene.Names.Get(id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(n.Value))
	return 1
}

func (e *Engine) luaSetName(L *lua.LState) int {
	id := e.entity(L)
	name := strings.TrimSpace(L.CheckString(2))
	if name == "" {
		L.ArgError(2, "name must not be empty")
	}
	n, ok := e.scene.Names.Get(id)
	if !ok {
		L.RaiseError("entity %s has no name", id)
	}
	n.Value = name
	return 0
}

func (e *Engine) luaGetHP(L *lua.LState) int {
	id := e.entity(L)
	h, ok := e.scene.Healths.Get(id)
	if !ok {
		L.RaiseError("entity %s has no health", id)
	}
	L.Push(lua.LNumber(h.HP))
	L.Push(lua.LNumber(h.MaxHP))
	return 2
}

func (e *Engine) luaSetHP(L *lua.LState) int {
	id := e.entity(L)
	h, ok := e.scene.Healths.Get(id)
	if !ok {
		L.RaiseError("entity %s has no health", id)
	}
	hp := L.CheckInt(2)
	if hp > int(h.MaxHP) {
		L.ArgError(2, fmt.Sprintf("hp %d above max %d", hp, h.MaxHP))
	}
	h.HP = int16(hp)
	return 0
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
