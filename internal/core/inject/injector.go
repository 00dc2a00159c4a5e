package inject

import (
	"fmt"
	"reflect"
)

// Tag is the struct tag that marks a field for resolution at attach time.
//
//	Health *Health `inject:""`       // sibling component on the same entity
//	Sprite *Sprite `inject:"object"` // component of the attached object
const Tag = "inject"

// Scope says which component map a field is resolved against.
type Scope uint8

const (
	ScopeEntity Scope = iota
	ScopeObject
)

func (s Scope) String() string {
	if s == ScopeObject {
		return "object"
	}
	return "entity"
}

// Field is one cached injection point of a registered type.
type Field struct {
	Name  string
	Index []int
	// Type is the component type looked up (the pointer's element type).
	Type  reflect.Type
	Scope Scope
}

// Resolver looks up a component instance by its concrete (non-pointer) type.
type Resolver interface {
	Resolve(t reflect.Type) (any, bool)
}

// Components is a Resolver over a plain type → instance map.
type Components map[reflect.Type]any

func (c Components) Resolve(t reflect.Type) (any, bool) {
	v, ok := c[t]
	return v, ok
}

// Injector caches declared dependency fields per type. Types are scanned once,
// when registered; Inject and RequiredTypes only read the cache.
type Injector struct {
	fields map[reflect.Type][]Field
}

func New() *Injector {
	return &Injector{fields: make(map[reflect.Type][]Field, 64)}
}

// Register scans t (a struct type) for tagged fields. Registering a type twice
// is a no-op. Tagged fields must be pointers to structs.
func (in *Injector) Register(t reflect.Type) error {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("inject: %s is not a struct type", t)
	}
	if _, ok := in.fields[t]; ok {
		return nil
	}
	fields, err := scan(t, nil)
	if err != nil {
		return err
	}
	in.fields[t] = fields
	return nil
}

func scan(t reflect.Type, prefix []int) ([]Field, error) {
	var out []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			nested, err := scan(sf.Type, index)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		tag, ok := sf.Tag.Lookup(Tag)
		if !ok {
			continue
		}
		if !sf.IsExported() {
			return nil, fmt.Errorf("inject: %s.%s is unexported", t, sf.Name)
		}
		if sf.Type.Kind() != reflect.Pointer || sf.Type.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("inject: %s.%s must be a pointer to a struct, got %s", t, sf.Name, sf.Type)
		}
		var scope Scope
		switch tag {
		case "", "entity":
			scope = ScopeEntity
		case "object":
			scope = ScopeObject
		default:
			return nil, fmt.Errorf("inject: %s.%s has unknown scope %q", t, sf.Name, tag)
		}
		out = append(out, Field{Name: sf.Name, Index: index, Type: sf.Type.Elem(), Scope: scope})
	}
	return out, nil
}

// Registered reports whether t has been scanned.
func (in *Injector) Registered(t reflect.Type) bool {
	_, ok := in.fields[t]
	return ok
}

// Fields returns the cached injection points of t.
func (in *Injector) Fields(t reflect.Type) []Field {
	return in.fields[t]
}

// RequiredTypes returns the component types t depends on, in declaration order.
func (in *Injector) RequiredTypes(t reflect.Type) []reflect.Type {
	fields := in.fields[t]
	if len(fields) == 0 {
		return nil
	}
	out := make([]reflect.Type, len(fields))
	for i, f := range fields {
		out[i] = f.Type
	}
	return out
}

// Inject resolves every cached field of target (a pointer to a registered
// struct). entity serves entity-scoped fields, object serves object-scoped
// ones; a nil resolver resolves nothing. Nothing is written unless every
// field resolves.
func (in *Injector) Inject(target any, entity, object Resolver) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("inject: target must be a non-nil pointer, got %T", target)
	}
	t := v.Elem().Type()
	fields, ok := in.fields[t]
	if !ok {
		return fmt.Errorf("inject: %s is not registered", t)
	}
	if len(fields) == 0 {
		return nil
	}

	resolved := make([]any, len(fields))
	for i, f := range fields {
		r := entity
		if f.Scope == ScopeObject {
			r = object
		}
		var dep any
		if r != nil {
			dep, ok = r.Resolve(f.Type)
		}
		if r == nil || !ok {
			return &MissingDependencyError{Target: t, Field: f.Name, Type: f.Type, Scope: f.Scope}
		}
		resolved[i] = dep
	}

	elem := v.Elem()
	for i, f := range fields {
		elem.FieldByIndex(f.Index).Set(reflect.ValueOf(resolved[i]))
	}
	return nil
}

// MissingDependencyError reports a declared dependency absent at attach time.
// It signals a composition bug rather than a transient condition.
type MissingDependencyError struct {
	Target reflect.Type
	Field  string
	Type   reflect.Type
	Scope  Scope
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("inject: %s.%s requires %s in %s scope", e.Target, e.Field, e.Type, e.Scope)
}
