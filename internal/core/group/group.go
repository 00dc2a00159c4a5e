package group

import (
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/collection"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

// Group is the live set of entities satisfying one atomic filter, each mapped
// to the matching value (component, object or sub-component).
type Group struct {
	sys      *Systems
	filter   Filter
	values   map[ecs.Entity]any
	members  *collection.IndexedSet[ecs.Entity]
	trackers []*CustomGroup
	depth    int
}

func newGroup(sys *Systems, f Filter) *Group {
	return &Group{
		sys:     sys,
		filter:  f,
		values:  make(map[ecs.Entity]any, 64),
		members: collection.NewIndexedSet[ecs.Entity](64),
	}
}

func (g *Group) Filter() Filter { return g.filter }

func (g *Group) Contains(e ecs.Entity) bool {
	_, ok := g.values[e]
	return ok
}

// Get returns the value e matched with.
func (g *Group) Get(e ecs.Entity) (any, bool) {
	v, ok := g.values[e]
	return v, ok
}

func (g *Group) Len() int { return len(g.values) }

// Each visits members with their values. Members added during the pass are
// visited at least once; members removed during it are skipped.
func (g *Group) Each(fn func(ecs.Entity, any) bool) {
	if g.depth == 0 {
		g.members.ApplyChanges()
	}
	g.depth++
	defer func() { g.depth-- }()
	g.members.Each(func(e ecs.Entity) bool {
		v, ok := g.values[e]
		if !ok {
			return true
		}
		return fn(e, v)
	})
}

// Entities returns a snapshot of the members.
func (g *Group) Entities() []ecs.Entity {
	out := make([]ecs.Entity, 0, len(g.values))
	g.Each(func(e ecs.Entity, _ any) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (g *Group) add(e ecs.Entity, v any) {
	if _, ok := g.values[e]; ok {
		g.values[e] = v
		return
	}
	g.values[e] = v
	g.members.Add(e)
	g.sys.joined(e, g)
	for _, cg := range g.trackers {
		cg.inc(e)
	}
}

func (g *Group) remove(e ecs.Entity) {
	if _, ok := g.values[e]; !ok {
		return
	}
	delete(g.values, e)
	g.members.Remove(e)
	g.sys.left(e, g)
	for _, cg := range g.trackers {
		cg.dec(e)
	}
}
