package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

const selfKey = "__behavior"

// Engine wraps a single gopher-lua VM holding behavior definitions.
// Single-goroutine access only (frame loop).
//
// Scripts declare behaviors with the global behavior(name, def), where def is
// a table of optional hooks: awake(self), start(self), update(self, dt),
// fixed_update(self, dt), late_update(self, dt), attach(self), detach(self).
// dt is in seconds.
type Engine struct {
	vm        *lua.LState
	log       *zap.Logger
	container *ecs.Container
	defs      map[string]*lua.LTable
	meta      *lua.LTable
}

// NewEngine creates a Lua engine bound to c and loads every script in dir.
// An empty dir loads nothing.
func NewEngine(dir string, c *ecs.Container, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:        vm,
		log:       log,
		container: c,
		defs:      make(map[string]*lua.LTable, 16),
	}
	e.openAPI()

	if dir != "" {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory and its subdirectories, in
// lexical order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := e.loadDir(path); err != nil {
				return err
			}
			continue
		}
		if filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source, typically behavior declarations.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

// Has reports whether a behavior named name was declared.
func (e *Engine) Has(name string) bool {
	_, ok := e.defs[name]
	return ok
}

// Names lists the declared behaviors, sorted.
func (e *Engine) Names() []string {
	out := make([]string, 0, len(e.defs))
	for n := range e.defs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NewBehavior instantiates a declared behavior. Each instance gets its own
// self table for script state.
func (e *Engine) NewBehavior(name string) (*Behavior, error) {
	def, ok := e.defs[name]
	if !ok {
		return nil, fmt.Errorf("lua behavior %q not declared", name)
	}
	b := &Behavior{Script: name, Enabled: true, engine: e, def: def}
	self := e.vm.NewTable()
	ud := e.vm.NewUserData()
	ud.Value = b
	self.RawSetString(selfKey, ud)
	e.vm.SetMetatable(self, e.meta)
	b.self = self
	return b, nil
}

func (e *Engine) openAPI() {
	e.vm.SetGlobal("behavior", e.vm.NewFunction(e.luaBehavior))
	e.vm.SetGlobal("log", e.vm.NewFunction(e.luaLog))

	methods := e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"entity": e.luaEntity,
		"has":    e.luaHas,
		"get":    e.luaGet,
		"set":    e.luaSet,
		"kill":   e.luaKill,
	})
	e.meta = e.vm.NewTable()
	e.meta.RawSetString("__index", methods)
}

// behavior(name, def)
func (e *Engine) luaBehavior(L *lua.LState) int {
	name := L.CheckString(1)
	def := L.CheckTable(2)
	if _, dup := e.defs[name]; dup {
		e.log.Warn("lua behavior redeclared", zap.String("behavior", name))
	}
	e.defs[name] = def
	return 0
}

// log(msg)
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

func (e *Engine) checkSelf(L *lua.LState) *Behavior {
	self := L.CheckTable(1)
	ud, ok := self.RawGetString(selfKey).(*lua.LUserData)
	if !ok {
		L.ArgError(1, "behavior expected")
		return nil
	}
	b, ok := ud.Value.(*Behavior)
	if !ok {
		L.ArgError(1, "behavior expected")
		return nil
	}
	return b
}

// self:entity() → string
func (e *Engine) luaEntity(L *lua.LState) int {
	b := e.checkSelf(L)
	L.Push(lua.LString(b.entity.String()))
	return 1
}

// self:has(component) → bool
func (e *Engine) luaHas(L *lua.LState) int {
	b := e.checkSelf(L)
	ti, ok := e.container.Catalog().Lookup(L.CheckString(2))
	L.Push(lua.LBool(ok && e.container.HasComponent(b.entity, ti.Type)))
	return 1
}

// self:get(component, field) → value, or nil when absent
func (e *Engine) luaGet(L *lua.LState) int {
	b := e.checkSelf(L)
	f, err := e.field(b.entity, L.CheckString(2), L.CheckString(3))
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	v, err := toLua(f)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(v)
	return 1
}

// self:set(component, field, value)
func (e *Engine) luaSet(L *lua.LState) int {
	b := e.checkSelf(L)
	f, err := e.field(b.entity, L.CheckString(2), L.CheckString(3))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if err := fromLua(L.CheckAny(4), f); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// self:kill() queues the entity for destruction at the end of the frame.
func (e *Engine) luaKill(L *lua.LState) int {
	b := e.checkSelf(L)
	e.container.MarkForDestruction(b.entity)
	return 0
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}
