package group

import (
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// FilterKind selects what an atomic filter tests for.
type FilterKind uint8

const (
	// KindComponent: the entity has a data or behavior component of the type.
	KindComponent FilterKind = iota + 1
	// KindObject: the entity's attached object is of the type.
	KindObject
	// KindSubComponent: the entity's attached object owns a sub-component of the type.
	KindSubComponent
)

func (k FilterKind) String() string {
	switch k {
	case KindComponent:
		return "component"
	case KindObject:
		return "object"
	case KindSubComponent:
		return "sub-component"
	}
	return fmt.Sprintf("filter(%d)", uint8(k))
}

// Filter is one atomic predicate. Each distinct Filter backs exactly one Group.
type Filter struct {
	Kind FilterKind
	Type reflect.Type
}

func Component[T any]() Filter    { return Filter{Kind: KindComponent, Type: reflect.TypeFor[T]()} }
func Object[T any]() Filter       { return Filter{Kind: KindObject, Type: reflect.TypeFor[T]()} }
func SubComponent[T any]() Filter { return Filter{Kind: KindSubComponent, Type: reflect.TypeFor[T]()} }

func (f Filter) String() string {
	return f.Kind.String() + ":" + f.Type.String()
}

// hash is stable per filter; summing the hashes of a set gives an
// order-independent key for it.
func (f Filter) hash() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%d|%s|%s", f.Kind, f.Type.PkgPath(), f.Type.String()))
}

// setHash accumulates the hashes of a de-duplicated filter set.
func setHash(filters []Filter) uint64 {
	var h uint64
	for _, f := range filters {
		h += f.hash()
	}
	return h
}

func dedupe(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	seen := make(map[Filter]struct{}, len(filters))
	for _, f := range filters {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func sameSet(a, b []Filter) bool {
	if len(a) != len(b) {
		return false
	}
	in := make(map[Filter]struct{}, len(a))
	for _, f := range a {
		in[f] = struct{}{}
	}
	for _, f := range b {
		if _, ok := in[f]; !ok {
			return false
		}
	}
	return true
}
