package data

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/inject"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/scripting"
)

// compiled is a blueprint resolved against a catalog: inheritance flattened,
// data decoded once into prototypes that every spawn clones.
type compiled struct {
	name      string
	data      []any
	behaviors []*ecs.TypeInfo
	script    string
	children  []string
}

// Spawner instantiates blueprints into a container through the public Add
// API, the same way any other caller composes entities.
type Spawner struct {
	table     *BlueprintTable
	container *ecs.Container
	scripts   *scripting.Engine
	log       *zap.Logger
	compiled  map[string]*compiled
}

// NewSpawner compiles every blueprint of t against c's catalog. Unknown
// types, unsatisfiable behavior dependencies, unknown scripts and
// inheritance or child cycles are all reported up front. scripts may be nil
// when no blueprint uses a script.
func NewSpawner(t *BlueprintTable, c *ecs.Container, scripts *scripting.Engine, log *zap.Logger) (*Spawner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Spawner{
		table:     t,
		container: c,
		scripts:   scripts,
		log:       log,
		compiled:  make(map[string]*compiled, t.Count()),
	}
	var errs []error
	for _, name := range t.Names() {
		if _, err := s.compile(name, nil); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range t.Names() {
		if err := s.checkChildren(name, nil); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Spawner) compile(name string, chain []string) (*compiled, error) {
	if cb, ok := s.compiled[name]; ok {
		return cb, nil
	}
	for _, n := range chain {
		if n == name {
			return nil, fmt.Errorf("blueprint %s: inheritance cycle %v", name, append(chain, name))
		}
	}
	bp := s.table.Get(name)
	if bp == nil {
		return nil, fmt.Errorf("blueprint %q not found", name)
	}

	cb := &compiled{name: name}
	if bp.Extends != "" {
		base, err := s.compile(bp.Extends, append(chain, name))
		if err != nil {
			return nil, fmt.Errorf("blueprint %s: %w", name, err)
		}
		cb.data = append(cb.data, base.data...)
		cb.behaviors = append(cb.behaviors, base.behaviors...)
		cb.script = base.script
		cb.children = append(cb.children, base.children...)
	}

	cat := s.container.Catalog()
	for i := 0; i+1 < len(bp.Data.Content); i += 2 {
		key, body := bp.Data.Content[i], bp.Data.Content[i+1]
		proto, err := decodeData(cat, key.Value, body)
		if err != nil {
			return nil, fmt.Errorf("blueprint %s: %w", name, err)
		}
		cb.data = override(cb.data, proto)
	}

	for _, bname := range bp.Behaviors {
		ti, ok := cat.Lookup(bname)
		if !ok {
			return nil, fmt.Errorf("blueprint %s: unknown behavior %q", name, bname)
		}
		if ti.Kind != ecs.KindBehavior {
			return nil, fmt.Errorf("blueprint %s: %s is %s, not a behavior", name, bname, ti.Kind)
		}
		if !containsType(cb.behaviors, ti) {
			cb.behaviors = append(cb.behaviors, ti)
		}
	}

	if bp.Script != "" {
		cb.script = bp.Script
	}
	if cb.script != "" {
		if s.scripts == nil || !s.scripts.Has(cb.script) {
			return nil, fmt.Errorf("blueprint %s: unknown script %q", name, cb.script)
		}
		if _, ok := cat.Info(reflect.TypeFor[scripting.Behavior]()); !ok {
			return nil, fmt.Errorf("blueprint %s: scripted behaviors are not registered", name)
		}
	}

	for _, child := range bp.Children {
		if s.table.Get(child) == nil {
			return nil, fmt.Errorf("blueprint %s: unknown child %q", name, child)
		}
		cb.children = append(cb.children, child)
	}

	if err := checkDependencies(cat, cb); err != nil {
		return nil, fmt.Errorf("blueprint %s: %w", name, err)
	}
	s.compiled[name] = cb
	return cb, nil
}

func decodeData(cat *ecs.Catalog, typeName string, body *yaml.Node) (any, error) {
	ti, ok := cat.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown data %q", typeName)
	}
	if ti.Kind != ecs.KindData {
		return nil, fmt.Errorf("%s is %s, not data", typeName, ti.Kind)
	}
	proto := ti.New()
	if body.Tag != "!!null" {
		if err := body.Decode(proto); err != nil {
			return nil, fmt.Errorf("decode %s (line %d): %w", typeName, body.Line, err)
		}
	}
	return proto, nil
}

// override replaces the prototype of the same type, keeping its position, or
// appends.
func override(list []any, proto any) []any {
	t := ecs.TypeOf(proto)
	for i, p := range list {
		if ecs.TypeOf(p) == t {
			out := append([]any(nil), list...)
			out[i] = proto
			return out
		}
	}
	return append(list, proto)
}

func containsType(list []*ecs.TypeInfo, ti *ecs.TypeInfo) bool {
	for _, x := range list {
		if x == ti {
			return true
		}
	}
	return false
}

// checkDependencies verifies that every entity-scoped dependency of each
// behavior is satisfied by the blueprint's data or an earlier behavior, so
// that Spawn never hits a composition failure.
func checkDependencies(cat *ecs.Catalog, cb *compiled) error {
	have := make(map[reflect.Type]bool, len(cb.data)+len(cb.behaviors))
	for _, d := range cb.data {
		have[ecs.TypeOf(d)] = true
	}
	for _, ti := range cb.behaviors {
		for _, f := range cat.Injector().Fields(ti.Type) {
			if f.Scope == inject.ScopeEntity && !have[f.Type] {
				return fmt.Errorf("behavior %s requires %s", ti.Name, f.Type)
			}
		}
		have[ti.Type] = true
	}
	return nil
}

func (s *Spawner) checkChildren(name string, chain []string) error {
	for _, n := range chain {
		if n == name {
			return fmt.Errorf("blueprint %s: child cycle %v", name, append(chain, name))
		}
	}
	cb := s.compiled[name]
	if cb == nil {
		return nil
	}
	for _, child := range cb.children {
		if err := s.checkChildren(child, append(chain, name)); err != nil {
			return err
		}
	}
	return nil
}

// Table returns the blueprints the spawner was compiled from.
func (s *Spawner) Table() *BlueprintTable { return s.table }

// Has reports whether a blueprint compiled successfully.
func (s *Spawner) Has(name string) bool {
	_, ok := s.compiled[name]
	return ok
}

// Spawn creates an entity from the named blueprint: data first, then
// behaviors in order, then the script, then children parented under it. On
// failure the partial entity is removed.
func (s *Spawner) Spawn(name string) (ecs.Entity, error) {
	cb, ok := s.compiled[name]
	if !ok {
		return ecs.Empty, fmt.Errorf("spawn: blueprint %q not found", name)
	}
	c := s.container
	e := c.CreateNew()
	if e.IsEmpty() {
		// fresh identities only fail to register once the scope is closed
		return ecs.Empty, fmt.Errorf("spawn %s: %w", name, ecs.ErrRegistryClosed)
	}
	fail := func(err error) (ecs.Entity, error) {
		c.Remove(e)
		return ecs.Empty, fmt.Errorf("spawn %s: %w", name, err)
	}

	for _, proto := range cb.data {
		d, err := ecs.CloneData(c.Catalog(), proto)
		if err != nil {
			return fail(err)
		}
		if !c.AddData(e, d) {
			return fail(fmt.Errorf("add %T", d))
		}
	}
	for _, ti := range cb.behaviors {
		if !c.AddBehavior(e, ti.New()) {
			return fail(fmt.Errorf("add behavior %s", ti.Name))
		}
	}
	if cb.script != "" {
		b, err := s.scripts.NewBehavior(cb.script)
		if err != nil {
			return fail(err)
		}
		if !c.AddBehavior(e, b) {
			return fail(fmt.Errorf("add script %s", cb.script))
		}
	}
	for _, child := range cb.children {
		ce, err := s.Spawn(child)
		if err != nil {
			return fail(err)
		}
		if !ecs.SetParent(c, ce, e) {
			c.Remove(ce)
			return fail(fmt.Errorf("parent %s", child))
		}
	}
	s.log.Debug("spawned blueprint", zap.String("blueprint", name), zap.Stringer("entity", e))
	return e, nil
}

// SpawnN spawns n entities from one blueprint, stopping at the first error.
func (s *Spawner) SpawnN(name string, n int) ([]ecs.Entity, error) {
	out := make([]ecs.Entity, 0, n)
	for i := 0; i < n; i++ {
		e, err := s.Spawn(name)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
