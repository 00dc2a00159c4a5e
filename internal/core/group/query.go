package group

import "github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"

// EachOf iterates a group with its values typed as *T. Entries of another
// type (a group built from a different filter) are skipped.
func EachOf[T any](g *Group, fn func(ecs.Entity, *T) bool) {
	g.Each(func(e ecs.Entity, v any) bool {
		t, ok := v.(*T)
		if !ok {
			return true
		}
		return fn(e, t)
	})
}

// Each2 iterates the entities of cg that have both components A and B.
// cg is usually built from Component[A]() and Component[B]().
func Each2[A, B any](c *ecs.Container, cg *CustomGroup, fn func(ecs.Entity, *A, *B) bool) {
	cg.Each(func(e ecs.Entity) bool {
		a, ok := ecs.Get[A](c, e)
		if !ok {
			return true
		}
		b, ok := ecs.Get[B](c, e)
		if !ok {
			return true
		}
		return fn(e, a, b)
	})
}

// Each3 iterates the entities of cg that have components A, B and C.
func Each3[A, B, C any](c *ecs.Container, cg *CustomGroup, fn func(ecs.Entity, *A, *B, *C) bool) {
	cg.Each(func(e ecs.Entity) bool {
		a, ok := ecs.Get[A](c, e)
		if !ok {
			return true
		}
		b, ok := ecs.Get[B](c, e)
		if !ok {
			return true
		}
		cc, ok := ecs.Get[C](c, e)
		if !ok {
			return true
		}
		return fn(e, a, b, cc)
	})
}

// With2 builds (or returns the memoized) CustomGroup over components A and B.
func With2[A, B any](s *Systems) *CustomGroup {
	return s.Build(Component[A](), Component[B]())
}

// With3 builds (or returns the memoized) CustomGroup over components A, B and C.
func With3[A, B, C any](s *Systems) *CustomGroup {
	return s.Build(Component[A](), Component[B](), Component[C]())
}
