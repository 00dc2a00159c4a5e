package event

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/collection"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

// ErrNotListener is returned by SubscribeAll/UnsubscribeAll for objects whose
// concrete type was never declared with Listens.
var ErrNotListener = errors.New("type has no declared listeners")

// EventContext is what a listener receives: the event and the entity it was
// raised on (ecs.Empty for global events).
type EventContext[T any] struct {
	Event  T
	Entity ecs.Entity
}

// Listener handles events of type T. Implementations must be comparable,
// usually pointers.
type Listener[T any] interface {
	HandleEvent(ctx EventContext[T])
}

// AnyListener is notified after every Raise, whatever the event type.
type AnyListener interface {
	EventRaised(ev any, e ecs.Entity)
}

// EntityKilled is raised on an entity right before it is torn down, while all
// its components are still attached, and then globally.
type EntityKilled struct {
	Entity ecs.Entity
}

// PanicError reports a listener that panicked during Raise.
type PanicError struct {
	Event    reflect.Type
	Entity   ecs.Entity
	Listener any
	Value    any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("event %s on %s: listener %T panicked: %v", e.Event, e.Entity, e.Listener, e.Value)
}

type key struct {
	event  reflect.Type
	entity ecs.Entity
}

type subscribers struct {
	set   *collection.IndexedSet[any]
	depth int
}

// op is the precomputed subscribe/unsubscribe pair for one event type of a
// concrete listener type.
type op struct {
	event       reflect.Type
	subscribe   func(l any, e ecs.Entity) bool
	unsubscribe func(l any, e ecs.Entity) bool
}

// Router delivers typed events to listeners subscribed for a (type, entity)
// pair. It is single-threaded like the container it observes; listeners may
// subscribe, unsubscribe or kill entities from inside HandleEvent.
type Router struct {
	ecs.NopObserver

	log      *zap.Logger
	subs     map[key]*subscribers
	byEntity map[ecs.Entity]map[reflect.Type]struct{}
	ops      map[reflect.Type][]op
	any      *collection.IndexedSet[AnyListener]
}

func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		log:      log,
		subs:     make(map[key]*subscribers, 256),
		byEntity: make(map[ecs.Entity]map[reflect.Type]struct{}, 256),
		ops:      make(map[reflect.Type][]op, 32),
		any:      collection.NewIndexedSet[AnyListener](4),
	}
}

// Attach makes r observe c: behaviors whose type declared listeners are
// subscribed to their entity on attach, EntityKilled is raised before
// removal, and subscriptions of removed entities are dropped.
func (r *Router) Attach(c *ecs.Container) {
	c.Observe(r)
}

// Listens declares that listener type L handles events of type T. It must be
// called once per pair before SubscribeAll can route L.
func Listens[T any, L Listener[T]](r *Router) {
	lt, et := reflect.TypeFor[L](), reflect.TypeFor[T]()
	for _, o := range r.ops[lt] {
		if o.event == et {
			return
		}
	}
	r.ops[lt] = append(r.ops[lt], op{
		event:       et,
		subscribe:   func(l any, e ecs.Entity) bool { return Subscribe[T](r, l.(L), e) },
		unsubscribe: func(l any, e ecs.Entity) bool { return Unsubscribe[T](r, l.(L), e) },
	})
}

// EventTypes lists the event types declared for l's concrete type.
func (r *Router) EventTypes(l any) []reflect.Type {
	ops := r.ops[reflect.TypeOf(l)]
	out := make([]reflect.Type, len(ops))
	for i, o := range ops {
		out[i] = o.event
	}
	return out
}

// SubscribeAll subscribes l to e for every event type its concrete type
// declared.
func (r *Router) SubscribeAll(l any, e ecs.Entity) error {
	ops, ok := r.ops[reflect.TypeOf(l)]
	if !ok {
		return fmt.Errorf("subscribe %T: %w", l, ErrNotListener)
	}
	for _, o := range ops {
		o.subscribe(l, e)
	}
	return nil
}

func (r *Router) UnsubscribeAll(l any, e ecs.Entity) error {
	ops, ok := r.ops[reflect.TypeOf(l)]
	if !ok {
		return fmt.Errorf("unsubscribe %T: %w", l, ErrNotListener)
	}
	for _, o := range ops {
		o.unsubscribe(l, e)
	}
	return nil
}

// TrySubscribe is SubscribeAll that silently ignores non-listeners.
func (r *Router) TrySubscribe(obj any, e ecs.Entity) bool {
	return r.SubscribeAll(obj, e) == nil
}

func (r *Router) TryUnsubscribe(obj any, e ecs.Entity) bool {
	return r.UnsubscribeAll(obj, e) == nil
}

// Subscribe adds l for events of type T on e. It returns false when l is
// already subscribed.
func Subscribe[T any](r *Router, l Listener[T], e ecs.Entity) bool {
	if l == nil {
		return false
	}
	t := reflect.TypeFor[T]()
	k := key{event: t, entity: e}
	s, ok := r.subs[k]
	if !ok {
		s = &subscribers{set: collection.NewIndexedSet[any](4)}
		r.subs[k] = s
	}
	types, ok := r.byEntity[e]
	if !ok {
		types = make(map[reflect.Type]struct{}, 2)
		r.byEntity[e] = types
	}
	types[t] = struct{}{}
	return s.set.Add(l)
}

func Unsubscribe[T any](r *Router, l Listener[T], e ecs.Entity) bool {
	s, ok := r.subs[key{event: reflect.TypeFor[T](), entity: e}]
	if !ok {
		return false
	}
	return s.set.Remove(l)
}

// SubscribeGlobal and UnsubscribeGlobal are Subscribe and Unsubscribe on
// ecs.Empty.
func SubscribeGlobal[T any](r *Router, l Listener[T]) bool {
	return Subscribe[T](r, l, ecs.Empty)
}

func UnsubscribeGlobal[T any](r *Router, l Listener[T]) bool {
	return Unsubscribe[T](r, l, ecs.Empty)
}

// Subscribed reports whether l is subscribed for T on e.
func Subscribed[T any](r *Router, l Listener[T], e ecs.Entity) bool {
	s, ok := r.subs[key{event: reflect.TypeFor[T](), entity: e}]
	return ok && s.set.Contains(l)
}

// Len is the number of live (event type, entity) subscription sets.
func (r *Router) Len() int { return len(r.subs) }

// ListenerCount is the number of listeners subscribed for T on e.
func ListenerCount[T any](r *Router, e ecs.Entity) int {
	s, ok := r.subs[key{event: reflect.TypeFor[T](), entity: e}]
	if !ok {
		return 0
	}
	return s.set.Len()
}

func (r *Router) AddAnyListener(l AnyListener) bool    { return r.any.Add(l) }
func (r *Router) RemoveAnyListener(l AnyListener) bool { return r.any.Remove(l) }

// Raise delivers ev to every listener subscribed for (T, e), skipping
// inactive ones. Listeners subscribed during the call are delivered to at
// most once; those removed before being reached are skipped.
//
// A panicking listener is recovered and logged; the others still run, and
// the panics are returned joined as *PanicError values.
func Raise[T any](r *Router, ev T, e ecs.Entity) error {
	t := reflect.TypeFor[T]()
	var errs []error
	if s, ok := r.subs[key{event: t, entity: e}]; ok {
		ctx := EventContext[T]{Event: ev, Entity: e}
		if s.depth == 0 {
			s.set.ApplyChanges()
		}
		s.depth++
		var invoked []any
		s.set.Each(func(l any) bool {
			// a listener removed and re-added mid-raise comes back as pending
			if s.set.IsPending(l) && slices.Contains(invoked, l) {
				return true
			}
			invoked = append(invoked, l)
			if a, ok := l.(ecs.Activatable); ok && !a.Active() {
				return true
			}
			if err := r.call(t, e, l, func() { l.(Listener[T]).HandleEvent(ctx) }); err != nil {
				errs = append(errs, err)
			}
			return true
		})
		s.depth--
		r.release(t, e, s)
	}
	r.notifyAny(t, ev, e)
	return errors.Join(errs...)
}

// release deletes a set that Drop emptied while it was being raised.
func (r *Router) release(t reflect.Type, e ecs.Entity, s *subscribers) {
	if s.depth > 0 {
		return
	}
	if _, tracked := r.byEntity[e][t]; tracked {
		return
	}
	k := key{event: t, entity: e}
	if r.subs[k] == s {
		delete(r.subs, k)
	}
}

// RaiseGlobal is Raise on ecs.Empty.
func RaiseGlobal[T any](r *Router, ev T) error {
	return Raise(r, ev, ecs.Empty)
}

func (r *Router) notifyAny(t reflect.Type, ev any, e ecs.Entity) {
	r.any.ApplyChanges()
	r.any.Each(func(l AnyListener) bool {
		if err := r.call(t, e, l, func() { l.EventRaised(ev, e) }); err != nil {
			r.log.Debug("any-listener failed", zap.Error(err))
		}
		return true
	})
}

func (r *Router) call(t reflect.Type, e ecs.Entity, l any, fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Event: t, Entity: e, Listener: l, Value: rec}
			r.log.Error("event listener panic",
				zap.Stringer("event", t),
				zap.Stringer("entity", e),
				zap.String("listener", fmt.Sprintf("%T", l)),
				zap.Any("panic", rec),
			)
		}
	}()
	fn()
	return nil
}

// ComponentAdded subscribes behaviors with declared listeners to their own
// entity.
func (r *Router) ComponentAdded(c *ecs.Container, e ecs.Entity, comp any) {
	if !r.isBehavior(c, comp) {
		return
	}
	r.TrySubscribe(comp, e)
}

func (r *Router) ComponentRemoved(c *ecs.Container, e ecs.Entity, comp any) {
	if !r.isBehavior(c, comp) {
		return
	}
	r.TryUnsubscribe(comp, e)
}

func (r *Router) isBehavior(c *ecs.Container, comp any) bool {
	if _, ok := r.ops[reflect.TypeOf(comp)]; !ok {
		return false
	}
	ti, ok := c.Catalog().InfoOf(comp)
	return ok && ti.Kind == ecs.KindBehavior
}

func (r *Router) BeforeEntityRemoved(_ *ecs.Container, e ecs.Entity) {
	killed := EntityKilled{Entity: e}
	if err := Raise(r, killed, e); err != nil {
		r.log.Warn("entity killed handlers failed", zap.Stringer("entity", e), zap.Error(err))
	}
	if err := RaiseGlobal(r, killed); err != nil {
		r.log.Warn("global entity killed handlers failed", zap.Stringer("entity", e), zap.Error(err))
	}
}

// EntityRemoved drops every subscription keyed by e.
func (r *Router) EntityRemoved(_ *ecs.Container, e ecs.Entity) {
	r.Drop(e)
}

// Drop removes all subscriptions keyed by e. Sets being raised are cleared
// in place so the ongoing iteration sees the removals.
func (r *Router) Drop(e ecs.Entity) {
	for t := range r.byEntity[e] {
		k := key{event: t, entity: e}
		s := r.subs[k]
		if s.depth > 0 {
			for _, l := range s.set.Items() {
				s.set.Remove(l)
			}
			continue
		}
		delete(r.subs, k)
	}
	delete(r.byEntity, e)
}
