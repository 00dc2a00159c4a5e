package scripting

import (
	"fmt"
	"reflect"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

// Behavior is a behavior component whose lifecycle hooks are Lua functions.
// Register it once per catalog with ecs.RegisterBehavior[scripting.Behavior];
// like any behavior type, an entity holds at most one.
//
// A Lua error inside a scheduled hook panics with a *HookError so the
// scheduler can evict the instance; errors in attach and detach are logged.
type Behavior struct {
	Script  string
	Enabled bool

	engine *Engine
	def    *lua.LTable
	self   *lua.LTable
	entity ecs.Entity
}

// HookError wraps a Lua runtime error raised by a hook.
type HookError struct {
	Script string
	Hook   string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("lua %s.%s: %v", e.Script, e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

func (b *Behavior) Entity() ecs.Entity { return b.entity }
func (b *Behavior) Active() bool       { return b.Enabled }

// Self exposes the per-instance script table, for tests and tooling.
func (b *Behavior) Self() *lua.LTable { return b.self }

func (b *Behavior) OnAttach(e ecs.Entity) {
	b.entity = e
	b.logged("attach")
}

func (b *Behavior) OnDetach(ecs.Entity) { b.logged("detach") }

func (b *Behavior) Awake()                       { b.must("awake") }
func (b *Behavior) Start()                       { b.must("start") }
func (b *Behavior) Update(dt time.Duration)      { b.must("update", seconds(dt)) }
func (b *Behavior) FixedUpdate(dt time.Duration) { b.must("fixed_update", seconds(dt)) }
func (b *Behavior) LateUpdate(dt time.Duration)  { b.must("late_update", seconds(dt)) }

func seconds(dt time.Duration) lua.LValue { return lua.LNumber(dt.Seconds()) }

func (b *Behavior) must(hook string, args ...lua.LValue) {
	if err := b.call(hook, args...); err != nil {
		panic(err)
	}
}

func (b *Behavior) logged(hook string) {
	if err := b.call(hook); err != nil {
		b.engine.log.Error("lua hook failed", zap.Stringer("entity", b.entity), zap.Error(err))
	}
}

// call runs hook if the definition has one.
func (b *Behavior) call(hook string, args ...lua.LValue) error {
	if b.engine == nil {
		return nil
	}
	fn, ok := b.def.RawGetString(hook).(*lua.LFunction)
	if !ok {
		return nil
	}
	err := b.engine.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, append([]lua.LValue{b.self}, args...)...)
	if err != nil {
		return &HookError{Script: b.Script, Hook: hook, Err: err}
	}
	return nil
}

// field resolves component.field on e to a settable value.
func (e *Engine) field(ent ecs.Entity, component, name string) (reflect.Value, error) {
	ti, ok := e.container.Catalog().Lookup(component)
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown component %q", component)
	}
	comp, ok := e.container.Component(ent, ti.Type)
	if !ok {
		return reflect.Value{}, fmt.Errorf("entity %s has no %s", ent, component)
	}
	f := reflect.ValueOf(comp).Elem().FieldByName(name)
	if !f.IsValid() || !f.CanSet() {
		return reflect.Value{}, fmt.Errorf("%s has no exported field %q", component, name)
	}
	return f, nil
}

func toLua(v reflect.Value) (lua.LValue, error) {
	switch v.Kind() {
	case reflect.Bool:
		return lua.LBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(v.Float()), nil
	case reflect.String:
		return lua.LString(v.String()), nil
	}
	return lua.LNil, fmt.Errorf("field of kind %s is not scriptable", v.Kind())
}

func fromLua(lv lua.LValue, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(lua.LVAsBool(lv))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return fmt.Errorf("number expected, got %s", lv.Type())
		}
		v.SetInt(int64(n))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := lv.(lua.LNumber)
		if !ok || n < 0 {
			return fmt.Errorf("non-negative number expected, got %s", lv.String())
		}
		v.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return fmt.Errorf("number expected, got %s", lv.Type())
		}
		v.SetFloat(float64(n))
		return nil
	case reflect.String:
		s, ok := lv.(lua.LString)
		if !ok {
			return fmt.Errorf("string expected, got %s", lv.Type())
		}
		v.SetString(string(s))
		return nil
	}
	return fmt.Errorf("field of kind %s is not scriptable", v.Kind())
}
