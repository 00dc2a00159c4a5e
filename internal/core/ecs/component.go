package ecs

import (
	"fmt"
	"reflect"
	"time"
)

// Kind classifies a registered component type.
type Kind uint8

const (
	// KindData is a passive, cloneable data fragment.
	KindData Kind = iota + 1
	// KindBehavior is a stateful fragment that may be scheduled and may
	// declare injected dependencies.
	KindBehavior
	// KindObject is a higher-level object attached to an entity (at most one).
	KindObject
	// KindSubComponent is a component owned by an attached object.
	KindSubComponent
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindBehavior:
		return "behavior"
	case KindObject:
		return "object"
	case KindSubComponent:
		return "sub-component"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Lifecycle contracts. A type's capabilities are resolved once, when it is
// registered, and recorded as Caps.
type (
	Awaker       interface{ Awake() }
	Starter      interface{ Start() }
	Updater      interface{ Update(dt time.Duration) }
	FixedUpdater interface{ FixedUpdate(dt time.Duration) }
	LateUpdater  interface{ LateUpdate(dt time.Duration) }

	// Activatable items reporting false are skipped by the scheduler and the
	// event router, but stay registered.
	Activatable interface{ Active() bool }

	Attacher interface{ OnAttach(e Entity) }
	Detacher interface{ OnDetach(e Entity) }

	// Cloner overrides the default shallow copy used by CloneData.
	Cloner interface{ Clone() any }
)

// Object is a higher-level object mirrored onto an entity. Components returns
// its own sub-components, each a pointer to a registered sub-component type.
type Object interface {
	Components() []any
}

// Caps is the set of lifecycle contracts a type implements.
type Caps uint16

const (
	CapAwake Caps = 1 << iota
	CapStart
	CapUpdate
	CapFixedUpdate
	CapLateUpdate
	CapActivatable
	CapAttach
	CapDetach
	CapClone
)

// Has reports whether every bit of mask is set.
func (c Caps) Has(mask Caps) bool { return c&mask == mask }

// Scheduled reports whether any phase capability is set.
func (c Caps) Scheduled() bool {
	return c&(CapAwake|CapStart|CapUpdate|CapFixedUpdate|CapLateUpdate) != 0
}

// CapsOf resolves the capabilities of a value. Catalog registration uses it
// once per type; the scheduler uses it once per manually registered item.
func CapsOf(v any) Caps {
	var c Caps
	if _, ok := v.(Awaker); ok {
		c |= CapAwake
	}
	if _, ok := v.(Starter); ok {
		c |= CapStart
	}
	if _, ok := v.(Updater); ok {
		c |= CapUpdate
	}
	if _, ok := v.(FixedUpdater); ok {
		c |= CapFixedUpdate
	}
	if _, ok := v.(LateUpdater); ok {
		c |= CapLateUpdate
	}
	if _, ok := v.(Activatable); ok {
		c |= CapActivatable
	}
	if _, ok := v.(Attacher); ok {
		c |= CapAttach
	}
	if _, ok := v.(Detacher); ok {
		c |= CapDetach
	}
	if _, ok := v.(Cloner); ok {
		c |= CapClone
	}
	return c
}

// TypeInfo is the cached metadata of one registered component type.
type TypeInfo struct {
	Type reflect.Type
	Name string
	Kind Kind
	Caps Caps

	clone func(any) any
}

// New returns a pointer to a fresh zero value of the type.
func (ti *TypeInfo) New() any {
	return reflect.New(ti.Type).Interface()
}

// TypeOf returns the registration key of a component value (*T → T).
func TypeOf(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}
