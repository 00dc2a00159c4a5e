package group

import (
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/collection"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

// CustomGroup is the live set of entities satisfying every filter of a fixed
// set. Each tracked Group forwards ±1 per membership change; an entity is
// matched exactly while its score equals the number of tracked groups.
type CustomGroup struct {
	filters []Filter
	groups  []*Group
	hash    uint64
	scores  map[ecs.Entity]int
	matched *collection.IndexedSet[ecs.Entity]
	depth   int
}

func newCustomGroup(filters []Filter, groups []*Group, hash uint64) *CustomGroup {
	cg := &CustomGroup{
		filters: filters,
		groups:  groups,
		hash:    hash,
		scores:  make(map[ecs.Entity]int, 64),
		matched: collection.NewIndexedSet[ecs.Entity](64),
	}
	for _, g := range groups {
		for e := range g.values {
			cg.inc(e)
		}
		g.trackers = append(g.trackers, cg)
	}
	cg.matched.ApplyChanges()
	return cg
}

// Filters returns a copy of the tracked filters.
func (cg *CustomGroup) Filters() []Filter {
	return append([]Filter(nil), cg.filters...)
}

func (cg *CustomGroup) Contains(e ecs.Entity) bool { return cg.matched.Contains(e) }
func (cg *CustomGroup) Len() int                   { return cg.matched.Len() }

// Each visits matched entities with IndexedSet iteration semantics.
func (cg *CustomGroup) Each(fn func(ecs.Entity) bool) {
	if cg.depth == 0 {
		cg.matched.ApplyChanges()
	}
	cg.depth++
	defer func() { cg.depth-- }()
	cg.matched.Each(fn)
}

// Entities returns a snapshot of the matched entities.
func (cg *CustomGroup) Entities() []ecs.Entity {
	out := make([]ecs.Entity, 0, cg.matched.Len())
	cg.Each(func(e ecs.Entity) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (cg *CustomGroup) inc(e ecs.Entity) {
	s := cg.scores[e] + 1
	cg.scores[e] = s
	if s == len(cg.groups) {
		cg.matched.Add(e)
	}
}

func (cg *CustomGroup) dec(e ecs.Entity) {
	s, ok := cg.scores[e]
	if !ok {
		return
	}
	if s == len(cg.groups) {
		cg.matched.Remove(e)
	}
	if s <= 1 {
		delete(cg.scores, e)
		return
	}
	cg.scores[e] = s - 1
}
