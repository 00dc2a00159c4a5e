package ecs

import (
	"fmt"
	"reflect"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/inject"
)

// Catalog is the explicit registration step for component types: every type a
// Container accepts is registered once, which resolves its kind, capability
// flags and injection fields up front. Lookups afterwards are map hits only.
type Catalog struct {
	types    map[reflect.Type]*TypeInfo
	names    map[string]*TypeInfo
	injector *inject.Injector
}

// NewCatalog returns a catalog with the relationship components registered.
func NewCatalog() *Catalog {
	c := &Catalog{
		types:    make(map[reflect.Type]*TypeInfo, 64),
		names:    make(map[string]*TypeInfo, 64),
		injector: inject.New(),
	}
	RegisterData[Parent](c)
	RegisterData[Children](c)
	return c
}

// RegisterData registers T as a Data component.
func RegisterData[T any](c *Catalog) *TypeInfo {
	return c.register(reflect.TypeFor[T](), KindData)
}

// RegisterBehavior registers T as a Behavior component.
func RegisterBehavior[T any](c *Catalog) *TypeInfo {
	return c.register(reflect.TypeFor[T](), KindBehavior)
}

// RegisterObject registers T as an attachable higher-level object.
func RegisterObject[T any](c *Catalog) *TypeInfo {
	return c.register(reflect.TypeFor[T](), KindObject)
}

// RegisterSubComponent registers T as a component owned by objects.
func RegisterSubComponent[T any](c *Catalog) *TypeInfo {
	return c.register(reflect.TypeFor[T](), KindSubComponent)
}

// register panics on invalid registrations: they are wiring bugs found at
// startup, not runtime conditions.
func (c *Catalog) register(t reflect.Type, kind Kind) *TypeInfo {
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("ecs: cannot register %s: components must be struct types", t))
	}
	if ti, ok := c.types[t]; ok {
		if ti.Kind != kind {
			panic(fmt.Sprintf("ecs: %s already registered as %s", t, ti.Kind))
		}
		return ti
	}
	if other, ok := c.names[t.Name()]; ok {
		panic(fmt.Sprintf("ecs: name %q of %s already used by %s", t.Name(), t, other.Type))
	}
	if err := c.injector.Register(t); err != nil {
		panic(fmt.Sprintf("ecs: register %s: %v", t, err))
	}

	ti := &TypeInfo{
		Type: t,
		Name: t.Name(),
		Kind: kind,
		Caps: CapsOf(reflect.New(t).Interface()),
	}
	if ti.Caps.Has(CapClone) {
		ti.clone = func(v any) any { return v.(Cloner).Clone() }
	} else {
		ti.clone = func(v any) any {
			dst := reflect.New(t)
			dst.Elem().Set(reflect.ValueOf(v).Elem())
			return dst.Interface()
		}
	}
	c.types[t] = ti
	c.names[ti.Name] = ti
	return ti
}

// Info returns the metadata of a registered type.
func (c *Catalog) Info(t reflect.Type) (*TypeInfo, bool) {
	ti, ok := c.types[t]
	return ti, ok
}

// InfoOf returns the metadata of the type of v (a pointer to a registered struct).
func (c *Catalog) InfoOf(v any) (*TypeInfo, bool) {
	t := TypeOf(v)
	if t == nil {
		return nil, false
	}
	return c.Info(t)
}

// Lookup resolves a registered type by its short name.
func (c *Catalog) Lookup(name string) (*TypeInfo, bool) {
	ti, ok := c.names[name]
	return ti, ok
}

// Injector exposes the shared dependency cache.
func (c *Catalog) Injector() *inject.Injector { return c.injector }

// RequiredTypes lists the injected dependencies declared by t.
func (c *Catalog) RequiredTypes(t reflect.Type) []reflect.Type {
	return c.injector.RequiredTypes(t)
}

// Each visits every registered type.
func (c *Catalog) Each(fn func(*TypeInfo)) {
	for _, ti := range c.types {
		fn(ti)
	}
}

// CloneData copies a registered Data component. Types implementing Cloner
// control their own copy; others are copied shallowly.
func CloneData(c *Catalog, d any) (any, error) {
	ti, ok := c.InfoOf(d)
	if !ok {
		return nil, fmt.Errorf("clone %T: %w", d, ErrUnknownType)
	}
	if ti.Kind != KindData {
		return nil, fmt.Errorf("clone %T: %s is not data", d, ti.Kind)
	}
	if reflect.ValueOf(d).IsNil() {
		return nil, fmt.Errorf("clone %T: nil component", d)
	}
	return ti.clone(d), nil
}
