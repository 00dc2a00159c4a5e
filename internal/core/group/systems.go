package group

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

// Systems keeps every Group and CustomGroup of one container consistent by
// observing its structural events. It never writes storage.
//
// Groups are created lazily, back-filled once from the container, and from
// then on updated incrementally: a mutation costs time proportional to the
// groups it touches, not to the number of entities.
type Systems struct {
	ecs.NopObserver

	log       *zap.Logger
	container *ecs.Container
	groups    map[Filter]*Group
	custom    map[uint64][]*CustomGroup
	// groups each entity currently belongs to, for removal on death
	membership map[ecs.Entity][]*Group
	validate   bool
}

type Option func(*Systems)

// WithValidation re-checks every CustomGroup against the container after each
// structural event and logs divergence. Costs a full scan per event.
func WithValidation(on bool) Option {
	return func(s *Systems) { s.validate = on }
}

// New attaches a group system to c.
func New(c *ecs.Container, log *zap.Logger, opts ...Option) *Systems {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Systems{
		log:        log,
		container:  c,
		groups:     make(map[Filter]*Group, 32),
		custom:     make(map[uint64][]*CustomGroup, 16),
		membership: make(map[ecs.Entity][]*Group, 1024),
	}
	for _, opt := range opts {
		opt(s)
	}
	c.Observe(s)
	return s
}

// Close stops observing the container. Existing groups stop updating.
func (s *Systems) Close() {
	s.container.Unobserve(s)
}

// Group returns the group for f, creating and back-filling it on first use.
func (s *Systems) Group(f Filter) *Group {
	if g, ok := s.groups[f]; ok {
		return g
	}
	g := newGroup(s, f)
	s.groups[f] = g
	s.container.EachEntity(func(e ecs.Entity) bool {
		if v, ok := s.match(f, e); ok {
			g.add(e, v)
		}
		return true
	})
	g.members.ApplyChanges()
	return g
}

// Build returns the CustomGroup for the conjunction of filters. The same set
// in any order, duplicates included, yields the same instance.
func (s *Systems) Build(filters ...Filter) *CustomGroup {
	set := dedupe(filters)
	if len(set) == 0 {
		panic("group: custom group needs at least one filter")
	}
	h := setHash(set)
	for _, cg := range s.custom[h] {
		if sameSet(cg.filters, set) {
			return cg
		}
	}
	groups := make([]*Group, len(set))
	for i, f := range set {
		groups[i] = s.Group(f)
	}
	cg := newCustomGroup(set, groups, h)
	s.custom[h] = append(s.custom[h], cg)
	return cg
}

// Filter starts a fluent CustomGroup definition.
func (s *Systems) Filter() *Builder {
	return &Builder{sys: s}
}

// Builder accumulates filters for Build.
type Builder struct {
	sys     *Systems
	filters []Filter
}

func (b *Builder) With(f Filter) *Builder {
	b.filters = append(b.filters, f)
	return b
}

func (b *Builder) Build() *CustomGroup {
	return b.sys.Build(b.filters...)
}

// GroupCount and CustomGroupCount report how many groups exist.
func (s *Systems) GroupCount() int { return len(s.groups) }

func (s *Systems) CustomGroupCount() int {
	n := 0
	for _, b := range s.custom {
		n += len(b)
	}
	return n
}

func (s *Systems) match(f Filter, e ecs.Entity) (any, bool) {
	switch f.Kind {
	case KindComponent:
		return s.container.Component(e, f.Type)
	case KindObject:
		o, ok := s.container.Object(e)
		if !ok || ecs.TypeOf(o) != f.Type {
			return nil, false
		}
		return o, true
	case KindSubComponent:
		return s.container.ObjectComponent(e, f.Type)
	}
	return nil, false
}

func (s *Systems) joined(e ecs.Entity, g *Group) {
	s.membership[e] = append(s.membership[e], g)
}

func (s *Systems) left(e ecs.Entity, g *Group) {
	gs := s.membership[e]
	for i, m := range gs {
		if m == g {
			gs[i] = gs[len(gs)-1]
			gs[len(gs)-1] = nil
			gs = gs[:len(gs)-1]
			break
		}
	}
	if len(gs) == 0 {
		delete(s.membership, e)
		return
	}
	s.membership[e] = gs
}

func (s *Systems) ComponentAdded(_ *ecs.Container, e ecs.Entity, comp any) {
	if g, ok := s.groups[Filter{Kind: KindComponent, Type: ecs.TypeOf(comp)}]; ok {
		g.add(e, comp)
	}
	s.check()
}

func (s *Systems) ComponentRemoved(_ *ecs.Container, e ecs.Entity, comp any) {
	if g, ok := s.groups[Filter{Kind: KindComponent, Type: ecs.TypeOf(comp)}]; ok {
		g.remove(e)
	}
	s.check()
}

func (s *Systems) ObjectAttached(_ *ecs.Container, e ecs.Entity, o ecs.Object) {
	if g, ok := s.groups[Filter{Kind: KindObject, Type: ecs.TypeOf(o)}]; ok {
		g.add(e, o)
	}
	for _, sub := range o.Components() {
		if g, ok := s.groups[Filter{Kind: KindSubComponent, Type: ecs.TypeOf(sub)}]; ok {
			g.add(e, sub)
		}
	}
	s.check()
}

// ObjectDetached drops e from the object and sub-component groups it joined at
// attach time. The object's Components may have changed since, so membership
// is taken from the index rather than from o.
func (s *Systems) ObjectDetached(_ *ecs.Container, e ecs.Entity, _ ecs.Object) {
	for _, g := range append([]*Group(nil), s.membership[e]...) {
		if k := g.filter.Kind; k == KindObject || k == KindSubComponent {
			g.remove(e)
		}
	}
	s.check()
}

// EntityRemoved drops e from every group it is still in, whatever per-component
// events preceded it.
func (s *Systems) EntityRemoved(_ *ecs.Container, e ecs.Entity) {
	for _, g := range append([]*Group(nil), s.membership[e]...) {
		g.remove(e)
	}
	delete(s.membership, e)
	s.check()
}

func (s *Systems) check() {
	if !s.validate {
		return
	}
	if err := s.Validate(); err != nil {
		s.log.Error("group invariant violated", zap.Error(err))
	}
}

// Validate recomputes every group from the container and reports entities
// whose membership disagrees with their current components.
func (s *Systems) Validate() error {
	var errs []error
	for f, g := range s.groups {
		s.container.EachEntity(func(e ecs.Entity) bool {
			_, want := s.match(f, e)
			if want != g.Contains(e) {
				errs = append(errs, fmt.Errorf("group %s: entity %s member=%t want %t", f, e, g.Contains(e), want))
			}
			return true
		})
		for e := range g.values {
			if !s.container.Registered(e) {
				errs = append(errs, fmt.Errorf("group %s: dead entity %s", f, e))
			}
		}
	}
	for _, bucket := range s.custom {
		for _, cg := range bucket {
			s.container.EachEntity(func(e ecs.Entity) bool {
				want := true
				for _, f := range cg.filters {
					if _, ok := s.match(f, e); !ok {
						want = false
						break
					}
				}
				if want != cg.Contains(e) {
					errs = append(errs, fmt.Errorf("custom group %v: entity %s member=%t want %t", cg.filters, e, cg.Contains(e), want))
				}
				return true
			})
		}
	}
	return errors.Join(errs...)
}
