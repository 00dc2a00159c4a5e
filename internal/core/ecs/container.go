package ecs

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/collection"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/inject"
)

// Container is the authoritative component storage of one scope and the only
// writer of it. Every structural change is reported synchronously to the
// registered Observers.
//
// Misuse (unregistered entity, duplicate or unknown component, removing what
// is not there) is logged and turns the call into a no-op returning false.
// Attaching a behavior or object whose declared dependencies are absent
// panics with *inject.MissingDependencyError: that is a composition bug.
type Container struct {
	log       *zap.Logger
	catalog   *Catalog
	registry  *Registry
	entities  map[Entity]*record
	order     *collection.IndexedSet[Entity]
	observers *collection.IndexedSet[Observer]

	destroyQueue []Entity
	queued       map[Entity]struct{}

	delivering int
}

type record struct {
	components inject.Components
	// attach order of every component, used for deterministic iteration
	order     []reflect.Type
	data      map[reflect.Type]any
	behaviors map[reflect.Type]any

	object           Object
	objectComponents inject.Components

	removing bool
}

func newRecord() *record {
	return &record{
		components: make(inject.Components, 8),
		data:       make(map[reflect.Type]any, 4),
		behaviors:  make(map[reflect.Type]any, 4),
	}
}

// NewContainer creates a container owned by registry.
func NewContainer(registry *Registry, catalog *Catalog, log *zap.Logger) *Container {
	return NewContainerSize(registry, catalog, log, 1024)
}

// NewContainerSize is NewContainer with storage preallocated for capacity
// entities.
func NewContainerSize(registry *Registry, catalog *Catalog, log *zap.Logger, capacity int) *Container {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Container{
		log:       log,
		catalog:   catalog,
		registry:  registry,
		entities:  make(map[Entity]*record, capacity),
		order:     collection.NewIndexedSet[Entity](capacity),
		observers: collection.NewIndexedSet[Observer](8),
	}
	registry.addContainer(c)
	return c
}

func (c *Container) Catalog() *Catalog   { return c.catalog }
func (c *Container) Registry() *Registry { return c.registry }

// Observe registers o for structural events. An observer registered while an
// event is being delivered does not receive that event, nor the events its
// delivery triggers; it receives the next one.
func (c *Container) Observe(o Observer) {
	c.observers.Add(o)
	if c.delivering == 0 {
		c.observers.ApplyChanges()
	}
}

func (c *Container) Unobserve(o Observer) {
	c.observers.Remove(o)
}

func (c *Container) notify(fn func(Observer)) {
	if c.delivering == 0 {
		c.observers.ApplyChanges()
	}
	c.delivering++
	defer func() { c.delivering-- }()
	c.observers.Committed(func(o Observer) bool {
		fn(o)
		return true
	})
}

// CreateNew registers a fresh random identity.
func (c *Container) CreateNew() Entity {
	for {
		e := NewEntity()
		if _, taken := c.registry.Container(e); taken {
			continue
		}
		if c.Register(e) {
			return e
		}
		return Empty
	}
}

// Register adds a caller-supplied identity. It fails when the identity is
// empty or already registered anywhere in the registry chain.
func (c *Container) Register(e Entity) bool {
	if err := c.registry.register(e, c); err != nil {
		c.log.Error("register entity", zap.Stringer("entity", e), zap.Error(err))
		return false
	}
	c.entities[e] = newRecord()
	c.order.Add(e)
	c.notify(func(o Observer) { o.EntityAdded(c, e) })
	return true
}

// Alive reports whether e is currently registered in this container and not
// being removed.
func (c *Container) Alive(e Entity) bool {
	rec, ok := c.entities[e]
	return ok && !rec.removing
}

// Registered reports whether e is still stored here, including while its
// removal is in progress.
func (c *Container) Registered(e Entity) bool {
	_, ok := c.entities[e]
	return ok
}

// Len is the number of stored entities.
func (c *Container) Len() int { return len(c.entities) }

// EachEntity visits live entities in registration order. Entities created or
// removed by fn are handled per IndexedSet iteration rules.
func (c *Container) EachEntity(fn func(Entity) bool) {
	c.order.ApplyChanges()
	c.order.Each(func(e Entity) bool {
		if !c.Alive(e) {
			return true
		}
		return fn(e)
	})
}

// Entities returns a snapshot of the live entities.
func (c *Container) Entities() []Entity {
	out := make([]Entity, 0, len(c.entities))
	c.EachEntity(func(e Entity) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (c *Container) live(op string, e Entity) (*record, bool) {
	rec, ok := c.entities[e]
	if !ok || rec.removing {
		c.log.Error(op+": entity not registered", zap.Stringer("entity", e))
		return nil, false
	}
	return rec, true
}

func (c *Container) typeInfo(op string, e Entity, comp any) (*TypeInfo, bool) {
	if comp == nil {
		c.log.Error(op+": nil component", zap.Stringer("entity", e))
		return nil, false
	}
	v := reflect.ValueOf(comp)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		c.log.Error(op+": component must be a non-nil pointer",
			zap.Stringer("entity", e), zap.String("type", fmt.Sprintf("%T", comp)))
		return nil, false
	}
	ti, ok := c.catalog.Info(v.Type().Elem())
	if !ok {
		c.log.Error(op+": type not registered",
			zap.Stringer("entity", e), zap.Stringer("type", v.Type().Elem()))
		return nil, false
	}
	return ti, true
}

// Add attaches a Data or Behavior component, whichever kind its type was
// registered as.
func (c *Container) Add(e Entity, comp any) bool {
	ti, ok := c.typeInfo("add component", e, comp)
	if !ok {
		return false
	}
	switch ti.Kind {
	case KindData:
		return c.AddData(e, comp)
	case KindBehavior:
		return c.AddBehavior(e, comp)
	}
	c.log.Error("add component: not a data or behavior type",
		zap.Stringer("entity", e), zap.Stringer("type", ti.Type), zap.Stringer("kind", ti.Kind))
	return false
}

// AddData attaches a Data component.
func (c *Container) AddData(e Entity, d any) bool {
	rec, ti, ok := c.checkAdd("add data", e, d, KindData)
	if !ok {
		return false
	}
	rec.data[ti.Type] = d
	c.store(rec, ti.Type, d)
	c.notify(func(o Observer) { o.ComponentAdded(c, e, d) })
	return true
}

// AddBehavior attaches a Behavior component after resolving its declared
// dependencies against the entity's current components (and the attached
// object's, for object-scoped fields). A missing dependency panics.
func (c *Container) AddBehavior(e Entity, b any) bool {
	rec, ti, ok := c.checkAdd("add behavior", e, b, KindBehavior)
	if !ok {
		return false
	}
	if err := c.catalog.injector.Inject(b, rec.components, resolverOf(rec.objectComponents)); err != nil {
		panic(err)
	}
	rec.behaviors[ti.Type] = b
	c.store(rec, ti.Type, b)
	if ti.Caps.Has(CapAttach) {
		b.(Attacher).OnAttach(e)
	}
	c.notify(func(o Observer) { o.ComponentAdded(c, e, b) })
	return true
}

func resolverOf(m inject.Components) inject.Resolver {
	if m == nil {
		return nil
	}
	return m
}

func (c *Container) checkAdd(op string, e Entity, comp any, kind Kind) (*record, *TypeInfo, bool) {
	rec, ok := c.live(op, e)
	if !ok {
		return nil, nil, false
	}
	ti, ok := c.typeInfo(op, e, comp)
	if !ok {
		return nil, nil, false
	}
	if ti.Kind != kind {
		c.log.Error(op+": wrong component kind",
			zap.Stringer("entity", e), zap.Stringer("type", ti.Type),
			zap.Stringer("want", kind), zap.Stringer("got", ti.Kind))
		return nil, nil, false
	}
	if _, dup := rec.components[ti.Type]; dup {
		c.log.Error(op+": component already exists",
			zap.Stringer("entity", e), zap.Stringer("type", ti.Type))
		return nil, nil, false
	}
	return rec, ti, true
}

func (c *Container) store(rec *record, t reflect.Type, comp any) {
	rec.components[t] = comp
	rec.order = append(rec.order, t)
}

func (rec *record) drop(t reflect.Type) {
	delete(rec.components, t)
	delete(rec.data, t)
	delete(rec.behaviors, t)
	for i, ot := range rec.order {
		if ot == t {
			rec.order = append(rec.order[:i], rec.order[i+1:]...)
			break
		}
	}
}

// RemoveComponent detaches the component of type t (the struct type, not the
// pointer). Behaviors implementing Detacher get OnDetach first.
func (c *Container) RemoveComponent(e Entity, t reflect.Type) bool {
	rec, ok := c.live("remove component", e)
	if !ok {
		return false
	}
	comp, ok := rec.components[t]
	if !ok {
		c.log.Error("remove component: not found", zap.Stringer("entity", e), zap.Stringer("type", t))
		return false
	}
	c.detach(e, rec, t, comp)
	return true
}

func (c *Container) detach(e Entity, rec *record, t reflect.Type, comp any) {
	if _, isBehavior := rec.behaviors[t]; isBehavior {
		if d, ok := comp.(Detacher); ok {
			d.OnDetach(e)
		}
	}
	rec.drop(t)
	c.notify(func(o Observer) { o.ComponentRemoved(c, e, comp) })
}

// Component returns the component of type t.
func (c *Container) Component(e Entity, t reflect.Type) (any, bool) {
	rec, ok := c.entities[e]
	if !ok {
		return nil, false
	}
	comp, ok := rec.components[t]
	return comp, ok
}

// HasComponent reports whether e has a component of type t.
func (c *Container) HasComponent(e Entity, t reflect.Type) bool {
	_, ok := c.Component(e, t)
	return ok
}

// Components returns e's components in attach order.
func (c *Container) Components(e Entity) []any {
	rec, ok := c.entities[e]
	if !ok {
		return nil
	}
	out := make([]any, 0, len(rec.order))
	for _, t := range rec.order {
		out = append(out, rec.components[t])
	}
	return out
}

// Data returns e's Data components in attach order.
func (c *Container) Data(e Entity) []any {
	return c.filterKind(e, func(rec *record, t reflect.Type) bool {
		_, ok := rec.data[t]
		return ok
	})
}

// Behaviors returns e's Behavior components in attach order.
func (c *Container) Behaviors(e Entity) []any {
	return c.filterKind(e, func(rec *record, t reflect.Type) bool {
		_, ok := rec.behaviors[t]
		return ok
	})
}

func (c *Container) filterKind(e Entity, keep func(*record, reflect.Type) bool) []any {
	rec, ok := c.entities[e]
	if !ok {
		return nil
	}
	var out []any
	for _, t := range rec.order {
		if keep(rec, t) {
			out = append(out, rec.components[t])
		}
	}
	return out
}

// AttachObject attaches a higher-level object. The object and each of its
// sub-components are injected: entity-scoped fields from e's components,
// object-scoped fields from the object's own components.
func (c *Container) AttachObject(e Entity, obj Object) bool {
	rec, ok := c.live("attach object", e)
	if !ok {
		return false
	}
	ti, ok := c.typeInfo("attach object", e, obj)
	if !ok {
		return false
	}
	if ti.Kind != KindObject {
		c.log.Error("attach object: not an object type", zap.Stringer("entity", e), zap.Stringer("type", ti.Type))
		return false
	}
	if rec.object != nil {
		c.log.Error("attach object: entity already has an object",
			zap.Stringer("entity", e), zap.Stringer("existing", TypeOf(rec.object)))
		return false
	}

	subs := obj.Components()
	own := make(inject.Components, len(subs))
	for _, sub := range subs {
		sti, ok := c.typeInfo("attach object", e, sub)
		if !ok {
			return false
		}
		if sti.Kind != KindSubComponent {
			c.log.Error("attach object: not a sub-component type",
				zap.Stringer("entity", e), zap.Stringer("type", sti.Type))
			return false
		}
		if _, dup := own[sti.Type]; dup {
			c.log.Error("attach object: duplicate sub-component",
				zap.Stringer("entity", e), zap.Stringer("type", sti.Type))
			return false
		}
		own[sti.Type] = sub
	}

	if err := c.catalog.injector.Inject(obj, rec.components, own); err != nil {
		panic(err)
	}
	for _, sub := range subs {
		if err := c.catalog.injector.Inject(sub, rec.components, own); err != nil {
			panic(err)
		}
	}

	rec.object = obj
	rec.objectComponents = own
	c.notify(func(o Observer) { o.ObjectAttached(c, e, obj) })
	return true
}

// DetachObject detaches e's object, if any.
func (c *Container) DetachObject(e Entity) bool {
	rec, ok := c.live("detach object", e)
	if !ok {
		return false
	}
	if rec.object == nil {
		c.log.Error("detach object: no object attached", zap.Stringer("entity", e))
		return false
	}
	c.detachObject(e, rec)
	return true
}

func (c *Container) detachObject(e Entity, rec *record) {
	obj := rec.object
	rec.object = nil
	rec.objectComponents = nil
	c.notify(func(o Observer) { o.ObjectDetached(c, e, obj) })
}

// Object returns the object attached to e.
func (c *Container) Object(e Entity) (Object, bool) {
	rec, ok := c.entities[e]
	if !ok || rec.object == nil {
		return nil, false
	}
	return rec.object, true
}

// ObjectComponent returns the sub-component of type t of e's object.
func (c *Container) ObjectComponent(e Entity, t reflect.Type) (any, bool) {
	rec, ok := c.entities[e]
	if !ok || rec.objectComponents == nil {
		return nil, false
	}
	sub, ok := rec.objectComponents[t]
	return sub, ok
}

// Remove kills e. Descendants recorded in Children go first. Observers get
// BeforeEntityRemoved while e is intact, then each behavior is detached, the
// object is detached, storage is purged, and EntityRemoved fires last.
func (c *Container) Remove(e Entity) bool {
	rec, ok := c.live("remove entity", e)
	if !ok {
		return false
	}
	rec.removing = true

	if ch, ok := rec.components[reflect.TypeFor[Children]()]; ok {
		for _, child := range append([]Entity(nil), ch.(*Children).Entities...) {
			if owner, ok := c.registry.Container(child); ok && owner.Alive(child) {
				owner.Remove(child)
			}
		}
	}
	if p, ok := rec.components[reflect.TypeFor[Parent]()]; ok {
		unlinkChild(c.registry, p.(*Parent).Entity, e)
	}

	c.notify(func(o Observer) { o.BeforeEntityRemoved(c, e) })

	for i := len(rec.order) - 1; i >= 0; i-- {
		t := rec.order[i]
		if b, ok := rec.behaviors[t]; ok {
			c.detach(e, rec, t, b)
		}
	}
	if rec.object != nil {
		c.detachObject(e, rec)
	}

	clear(rec.components)
	clear(rec.data)
	rec.order = nil
	delete(c.entities, e)
	c.order.Remove(e)
	c.registry.unregister(e)

	c.notify(func(o Observer) { o.EntityRemoved(c, e) })
	return true
}

// Clear removes every entity.
func (c *Container) Clear() {
	for _, e := range c.Entities() {
		if c.Alive(e) {
			c.Remove(e)
		}
	}
}

// Add attaches comp, typed.
func Add[T any](c *Container, e Entity, comp *T) bool {
	return c.Add(e, comp)
}

// Get returns e's component of type T.
func Get[T any](c *Container, e Entity) (*T, bool) {
	comp, ok := c.Component(e, reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	return comp.(*T), true
}

// Has reports whether e has a component of type T.
func Has[T any](c *Container, e Entity) bool {
	return c.HasComponent(e, reflect.TypeFor[T]())
}

// RemoveOf detaches e's component of type T.
func RemoveOf[T any](c *Container, e Entity) bool {
	return c.RemoveComponent(e, reflect.TypeFor[T]())
}

// GetSub returns the sub-component of type T of e's attached object.
func GetSub[T any](c *Container, e Entity) (*T, bool) {
	sub, ok := c.ObjectComponent(e, reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	return sub.(*T), true
}
