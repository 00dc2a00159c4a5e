package system

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/collection"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

const tracerName = "github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/system"

type item struct {
	caps   ecs.Caps
	entity ecs.Entity
}

// Scheduler runs registered items through the five frame phases. Behaviors
// attached to an observed container are registered and unregistered
// automatically; host systems are registered with Register.
//
// A panicking item is logged and evicted from the phase it failed in; the
// rest of the phase still runs.
type Scheduler struct {
	ecs.NopObserver

	log    *zap.Logger
	tracer trace.Tracer

	items    map[any]item
	byEntity map[ecs.Entity][]any
	phases   [len(Phases)]*collection.IndexedSet[any]
	depth    [len(Phases)]int
	// start registrations arriving after the first Start call
	lateStart *collection.IndexedSet[any]
	started   bool
}

type Option func(*Scheduler)

// WithTracerProvider overrides the global OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scheduler) { s.tracer = tp.Tracer(tracerName) }
}

func NewScheduler(log *zap.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		log:       log,
		tracer:    otel.Tracer(tracerName),
		items:     make(map[any]item, 256),
		byEntity:  make(map[ecs.Entity][]any, 256),
		lateStart: collection.NewIndexedSet[any](16),
	}
	for i := range s.phases {
		s.phases[i] = collection.NewIndexedSet[any](64)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach makes s track the behaviors of c.
func (s *Scheduler) Attach(c *ecs.Container) {
	c.Observe(s)
}

// Register adds a host item to every phase it implements. It returns false
// when the item is already registered, implements no phase or is not
// comparable.
func (s *Scheduler) Register(v any) bool {
	return s.register(v, ecs.CapsOf(v), ecs.Empty)
}

// Unregister removes an item from every phase, including a pending late start.
func (s *Scheduler) Unregister(v any) bool {
	it, ok := s.items[v]
	if !ok {
		return false
	}
	delete(s.items, v)
	for _, p := range Phases {
		s.phases[p].Remove(v)
	}
	s.lateStart.Remove(v)
	if !it.entity.IsEmpty() {
		s.forget(it.entity, v)
	}
	return true
}

// Registered reports whether v is tracked.
func (s *Scheduler) Registered(v any) bool {
	_, ok := s.items[v]
	return ok
}

// Len is the number of items in phase p, pending ones included.
func (s *Scheduler) Len(p Phase) int { return s.phases[p].Len() }

// PendingStarts is the number of late start registrations not yet drained.
func (s *Scheduler) PendingStarts() int { return s.lateStart.Len() }

// Started reports whether the first Start call has happened.
func (s *Scheduler) Started() bool { return s.started }

func (s *Scheduler) register(v any, caps ecs.Caps, e ecs.Entity) bool {
	if v == nil || !caps.Scheduled() {
		return false
	}
	if !reflect.TypeOf(v).Comparable() {
		s.log.Error("scheduler: item is not comparable", zap.String("type", fmt.Sprintf("%T", v)))
		return false
	}
	if _, ok := s.items[v]; ok {
		return false
	}
	s.items[v] = item{caps: caps, entity: e}
	for _, p := range Phases {
		if !caps.Has(p.cap()) {
			continue
		}
		if p == PhaseStart && s.started {
			s.lateStart.Add(v)
			continue
		}
		s.phases[p].Add(v)
	}
	if !e.IsEmpty() {
		s.byEntity[e] = append(s.byEntity[e], v)
	}
	return true
}

func (s *Scheduler) forget(e ecs.Entity, v any) {
	vs := s.byEntity[e]
	for i, x := range vs {
		if x == v {
			vs = append(vs[:i], vs[i+1:]...)
			break
		}
	}
	if len(vs) == 0 {
		delete(s.byEntity, e)
		return
	}
	s.byEntity[e] = vs
}

// Awake awakens every item not yet awoken. Each item is awoken once.
func (s *Scheduler) Awake(ctx context.Context) {
	s.run(ctx, PhaseAwake, 0, true, func(v any) { v.(ecs.Awaker).Awake() })
}

// Start starts every item registered so far. Items registered after the first
// call are started at the next repeating phase instead.
func (s *Scheduler) Start(ctx context.Context) {
	s.started = true
	s.run(ctx, PhaseStart, 0, true, func(v any) {
		s.ensureAwake(v)
		v.(ecs.Starter).Start()
	})
}

func (s *Scheduler) Update(ctx context.Context, dt time.Duration) {
	s.drainLateStart()
	s.run(ctx, PhaseUpdate, dt, false, func(v any) { v.(ecs.Updater).Update(dt) })
}

func (s *Scheduler) FixedUpdate(ctx context.Context, dt time.Duration) {
	s.drainLateStart()
	s.run(ctx, PhaseFixedUpdate, dt, false, func(v any) { v.(ecs.FixedUpdater).FixedUpdate(dt) })
}

func (s *Scheduler) LateUpdate(ctx context.Context, dt time.Duration) {
	s.drainLateStart()
	s.run(ctx, PhaseLateUpdate, dt, false, func(v any) { v.(ecs.LateUpdater).LateUpdate(dt) })
}

// Tick runs the five phases once, in order, with fixed steps of fixed for
// every fixed-step tick owed.
func (s *Scheduler) Tick(ctx context.Context, dt time.Duration, fixedSteps int, fixed time.Duration) {
	s.Awake(ctx)
	s.Start(ctx)
	s.Update(ctx, dt)
	for i := 0; i < fixedSteps; i++ {
		s.FixedUpdate(ctx, fixed)
	}
	s.LateUpdate(ctx, dt)
}

func (s *Scheduler) run(ctx context.Context, p Phase, dt time.Duration, oneShot bool, fn func(v any)) {
	set := s.phases[p]
	if s.depth[p] == 0 {
		set.ApplyChanges()
	}
	if set.Len() == 0 {
		return
	}

	_, span := s.tracer.Start(ctx, "scheduler."+p.String(), trace.WithAttributes(
		attribute.Int("ecs.items", set.Len()),
		attribute.Int64("ecs.dt_us", dt.Microseconds()),
	))
	defer span.End()

	s.depth[p]++
	defer func() { s.depth[p]-- }()

	var ran, evicted int
	set.Each(func(v any) bool {
		if inactive(v) {
			return true
		}
		// not started yet: waits for the next drain
		if p.Repeating() && s.lateStart.Contains(v) {
			return true
		}
		ran++
		if !s.safeCall(p, v, fn) {
			set.Remove(v)
			evicted++
			return true
		}
		if oneShot {
			set.Remove(v)
		}
		return true
	})
	span.SetAttributes(attribute.Int("ecs.ran", ran), attribute.Int("ecs.evicted", evicted))
	if evicted > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d items evicted", evicted))
	}
}

// drainLateStart starts late registrations in FIFO order. An item removed
// before the drain never starts; an inactive one waits for a later drain.
func (s *Scheduler) drainLateStart() {
	if s.lateStart.CountPending() == 0 {
		return
	}
	for _, v := range s.lateStart.Pending() {
		if inactive(v) {
			continue
		}
		if !s.lateStart.Remove(v) {
			continue
		}
		s.ensureAwake(v)
		s.safeCall(PhaseStart, v, func(v any) { v.(ecs.Starter).Start() })
	}
}

// ensureAwake awakens v first when it is still waiting for the awake phase.
func (s *Scheduler) ensureAwake(v any) {
	awake := s.phases[PhaseAwake]
	if !awake.Contains(v) {
		return
	}
	awake.Remove(v)
	s.safeCall(PhaseAwake, v, func(v any) { v.(ecs.Awaker).Awake() })
}

func inactive(v any) bool {
	a, ok := v.(ecs.Activatable)
	return ok && !a.Active()
}

// safeCall invokes fn with panic recovery so that one broken item cannot take
// down the frame.
func (s *Scheduler) safeCall(p Phase, v any, fn func(any)) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			it := s.items[v]
			s.log.Error("scheduler item panicked, evicted",
				zap.Stringer("phase", p),
				zap.String("item", fmt.Sprintf("%T", v)),
				zap.Stringer("entity", it.entity),
				zap.Any("panic", rec),
			)
			ok = false
		}
	}()
	fn(v)
	return true
}

// ComponentAdded registers scheduled behaviors. Capabilities come from the
// catalog, resolved when the type was registered.
func (s *Scheduler) ComponentAdded(c *ecs.Container, e ecs.Entity, comp any) {
	ti, ok := c.Catalog().InfoOf(comp)
	if !ok || ti.Kind != ecs.KindBehavior || !ti.Caps.Scheduled() {
		return
	}
	s.register(comp, ti.Caps, e)
}

func (s *Scheduler) ComponentRemoved(_ *ecs.Container, _ ecs.Entity, comp any) {
	if _, ok := s.items[comp]; ok {
		s.Unregister(comp)
	}
}

// EntityRemoved unregisters whatever the entity still had scheduled.
func (s *Scheduler) EntityRemoved(_ *ecs.Container, e ecs.Entity) {
	for _, v := range append([]any(nil), s.byEntity[e]...) {
		s.Unregister(v)
	}
	delete(s.byEntity, e)
}
